package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/studystake/coordinator/internal/models"
	"github.com/studystake/coordinator/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BalanceReader looks up native wallet balances
type BalanceReader interface {
	Enabled() bool
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
}

// AccountService handles users and their wallets
type AccountService struct {
	ledger  storage.Ledger
	balance BalanceReader
	logger  *zap.Logger
}

// NewAccountService creates a new account service. balance may be nil.
func NewAccountService(ledger storage.Ledger, balance BalanceReader, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{ledger: ledger, balance: balance, logger: logger}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// ConnectWalletRequest links an EVM wallet to the caller
type ConnectWalletRequest struct {
	Address        string `json:"wallet_address" binding:"required"`
	Provider       string `json:"wallet_provider"`
	ProviderUserID string `json:"provider_user_id"`
}

// WalletInfo is a wallet with its live balance when the chain is reachable
type WalletInfo struct {
	models.Wallet
	Balance *decimal.Decimal `json:"balance,omitempty"`
}

// Register creates a new user
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: email and an 8 character password are required", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         req.Name,
		PasswordHash: string(hash),
	}
	if err := s.ledger.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login authenticates a user
func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*models.User, error) {
	user, err := s.ledger.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (s *AccountService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.ledger.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

// ConnectWallet links or replaces the caller's wallet. Addresses are stored checksummed.
func (s *AccountService) ConnectWallet(ctx context.Context, userID uuid.UUID, req ConnectWalletRequest) (*models.Wallet, error) {
	if !common.IsHexAddress(req.Address) {
		return nil, fmt.Errorf("%w: invalid wallet address", ErrInvalidInput)
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	provider := req.Provider
	if provider == "" {
		provider = "metamask"
	}
	wallet := &models.Wallet{
		ID:             uuid.New(),
		UserID:         userID,
		Address:        common.HexToAddress(req.Address).Hex(),
		Provider:       provider,
		ProviderUserID: req.ProviderUserID,
	}
	if err := s.ledger.UpsertWallet(ctx, wallet); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrWalletTaken
		}
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}

	s.logger.Info("wallet connected",
		zap.String("user_id", userID.String()),
		zap.String("address", wallet.Address))
	return wallet, nil
}

// GetWallet returns the caller's wallet, with a balance when the chain is reachable
func (s *AccountService) GetWallet(ctx context.Context, userID uuid.UUID) (*WalletInfo, error) {
	wallet, err := s.ledger.GetWalletByUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrWalletNotFound)
	}

	info := &WalletInfo{Wallet: *wallet}
	if s.balance != nil && s.balance.Enabled() {
		balance, err := s.balance.Balance(ctx, wallet.Address)
		if err != nil {
			s.logger.Warn("failed to fetch wallet balance", zap.String("address", wallet.Address), zap.Error(err))
		} else {
			info.Balance = &balance
		}
	}
	return info, nil
}
