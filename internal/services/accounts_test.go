package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBalance struct {
	enabled bool
	amount  decimal.Decimal
	err     error
}

func (s stubBalance) Enabled() bool { return s.enabled }

func (s stubBalance) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	return s.amount, s.err
}

func TestAccountService_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.accounts.Register(ctx, RegisterRequest{Email: "Learner@Example.com", Password: "securepassword123", Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "learner@example.com", user.Email)
	assert.NotEqual(t, "securepassword123", user.PasswordHash)

	_, err = f.accounts.Register(ctx, RegisterRequest{Email: "learner@example.com", Password: "anotherpassword"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.accounts.Register(ctx, RegisterRequest{Email: "short@example.com", Password: "123"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid credentials", email: "learner@example.com", password: "securepassword123"},
		{name: "unknown email", email: "nobody@example.com", password: "securepassword123", wantErr: ErrInvalidCredentials},
		{name: "wrong password", email: "learner@example.com", password: "wrongpassword", wantErr: ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.accounts.Login(ctx, LoginRequest{Email: tt.email, Password: tt.password})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, got.ID)
		})
	}
}

func TestAccountService_ConnectWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.user(t)

	_, err := f.accounts.ConnectWallet(ctx, userID, ConnectWalletRequest{Address: "0x1234"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.accounts.ConnectWallet(ctx, uuid.New(), ConnectWalletRequest{Address: "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	w, err := f.accounts.ConnectWallet(ctx, userID, ConnectWalletRequest{Address: "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"})
	require.NoError(t, err)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", w.Address)
	assert.Equal(t, "metamask", w.Provider)

	replaced, err := f.accounts.ConnectWallet(ctx, userID, ConnectWalletRequest{Address: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC", Provider: "privy"})
	require.NoError(t, err)
	assert.Equal(t, w.ID, replaced.ID)

	other := f.user(t)
	_, err = f.accounts.ConnectWallet(ctx, other, ConnectWalletRequest{Address: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"})
	assert.ErrorIs(t, err, ErrWalletTaken)

	info, err := f.accounts.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "privy", info.Provider)
	assert.Nil(t, info.Balance)

	_, err = f.accounts.GetWallet(ctx, other)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestAccountService_WalletBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.userWithWallet(t)

	withChain := NewAccountService(f.ledger, stubBalance{enabled: true, amount: dec("1.5")}, nil)
	info, err := withChain.GetWallet(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, info.Balance)
	assert.True(t, info.Balance.Equal(dec("1.5")))

	failing := NewAccountService(f.ledger, stubBalance{enabled: true, err: errors.New("rpc down")}, nil)
	info, err = failing.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, info.Balance)
}
