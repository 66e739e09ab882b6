package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/studystake/coordinator/internal/goals"
	"github.com/studystake/coordinator/internal/models"
	"github.com/studystake/coordinator/internal/storage"
	"go.uber.org/zap"
)

// DefaultRewardMultiplier pays back the stake plus a 10% bonus
var DefaultRewardMultiplier = decimal.RequireFromString("1.10")

// Recorder observes lifecycle events for metrics
type Recorder interface {
	CommitmentTransition(status models.CommitmentStatus)
	AttestationCreated()
	SweepItem(outcome string)
	ScholarshipCredited(amount decimal.Decimal)
}

type nopRecorder struct{}

func (nopRecorder) CommitmentTransition(models.CommitmentStatus) {}
func (nopRecorder) AttestationCreated()                          {}
func (nopRecorder) SweepItem(string)                             {}
func (nopRecorder) ScholarshipCredited(decimal.Decimal)          {}

// LifecycleOptions tunes the lifecycle manager
type LifecycleOptions struct {
	RewardMultiplier decimal.Decimal
	// PodDurationDays applies to pods created without a duration; zero
	// falls back to the goal's default
	PodDurationDays int
	// Now overrides the clock, mainly for tests
	Now      func() time.Time
	Recorder Recorder
}

// Lifecycle owns commitment and pod state transitions
type Lifecycle struct {
	ledger     storage.Ledger
	calc       *Calculator
	logger     *zap.Logger
	multiplier decimal.Decimal
	podDays    int
	now        func() time.Time
	rec        Recorder
}

// NewLifecycle creates a lifecycle manager
func NewLifecycle(ledger storage.Ledger, calc *Calculator, logger *zap.Logger, opts LifecycleOptions) *Lifecycle {
	if opts.RewardMultiplier.IsZero() {
		opts.RewardMultiplier = DefaultRewardMultiplier
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		ledger:     ledger,
		calc:       calc,
		logger:     logger,
		multiplier: opts.RewardMultiplier,
		podDays:    opts.PodDurationDays,
		now:        opts.Now,
		rec:        opts.Recorder,
	}
}

// ReferenceHash is the off-chain placeholder hash recorded for a system
// initiated transaction until the on-chain hash is reported
func ReferenceHash(kind models.TransactionType, commitmentID int64) string {
	return crypto.Keccak256Hash(
		[]byte(kind),
		common.LeftPadBytes(big.NewInt(commitmentID).Bytes(), 32),
	).Hex()
}

func notFound(err error, target error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return target
	}
	return err
}

func ownedBy(c *models.Commitment, userID uuid.UUID) error {
	if c.UserID != userID {
		return ErrCommitmentNotFound
	}
	return nil
}

// ============ Commitments ============

// CreateCommitmentRequest describes a new personal commitment
type CreateCommitmentRequest struct {
	Type            models.CommitmentType `json:"commitment_type" binding:"required"`
	StakeAmount     decimal.Decimal       `json:"stake_amount"`
	TargetValue     int64                 `json:"target_value" binding:"required,min=1"`
	DurationDays    int                   `json:"duration_days" binding:"omitempty,min=1,max=365"`
	StakeTxHash     string                `json:"stake_tx_hash"`
	ContractAddress string                `json:"contract_address"`
	Description     string                `json:"description"`
}

// CreateCommitment opens an ACTIVE commitment for a user with a linked wallet
func (l *Lifecycle) CreateCommitment(ctx context.Context, userID uuid.UUID, req CreateCommitmentRequest) (*models.Commitment, error) {
	g, err := goals.New(req.Type, req.TargetValue)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !req.StakeAmount.IsPositive() {
		return nil, fmt.Errorf("%w: stake amount must be positive", ErrInvalidInput)
	}

	duration := req.DurationDays
	if duration == 0 {
		duration = goals.DefaultDurationDays(g)
	}

	var created *models.Commitment
	err = l.ledger.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.GetWalletByUser(ctx, userID); err != nil {
			return notFound(err, ErrWalletNotFound)
		}

		now := l.now()
		c := &models.Commitment{
			UserID:          userID,
			Type:            req.Type,
			Status:          models.CommitmentActive,
			StakeAmount:     req.StakeAmount,
			TargetValue:     req.TargetValue,
			StartDate:       now,
			EndDate:         now.AddDate(0, 0, duration),
			ContractAddress: req.ContractAddress,
			StakeTxHash:     req.StakeTxHash,
			Description:     req.Description,
		}
		if err := tx.InsertCommitment(ctx, c); err != nil {
			return fmt.Errorf("failed to create commitment: %w", err)
		}

		if req.StakeTxHash != "" {
			if err := l.recordTransaction(ctx, tx, c, models.TransactionStake, req.StakeTxHash, c.StakeAmount); err != nil {
				return err
			}
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("commitment created",
		zap.Int64("commitment_id", created.ID),
		zap.String("user_id", userID.String()),
		zap.String("type", string(created.Type)),
		zap.String("stake", created.StakeAmount.String()))
	return created, nil
}

func (l *Lifecycle) recordTransaction(ctx context.Context, tx storage.Store, c *models.Commitment, kind models.TransactionType, hash string, amount decimal.Decimal) error {
	t := &models.Transaction{
		ID:              uuid.New(),
		UserID:          c.UserID,
		CommitmentID:    &c.ID,
		PodID:           c.PodID,
		Type:            kind,
		Hash:            hash,
		ContractAddress: c.ContractAddress,
		Amount:          amount,
		Status:          models.TransactionPending,
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("%w: transaction %s already recorded", ErrInvalidInput, hash)
		}
		return fmt.Errorf("failed to record %s transaction: %w", kind, err)
	}
	return nil
}

// GetCommitment returns a commitment owned by userID
func (l *Lifecycle) GetCommitment(ctx context.Context, userID uuid.UUID, id int64) (*models.Commitment, error) {
	c, err := l.ledger.GetCommitment(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCommitmentNotFound)
	}
	if err := ownedBy(c, userID); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCommitments returns a user's commitments, newest first
func (l *Lifecycle) ListCommitments(ctx context.Context, userID uuid.UUID, status *models.CommitmentStatus) ([]models.Commitment, error) {
	return l.ledger.ListCommitments(ctx, storage.CommitmentFilter{UserID: &userID, Status: status})
}

// ListAttestations returns a commitment's attestation history, newest first
func (l *Lifecycle) ListAttestations(ctx context.Context, userID uuid.UUID, id int64) ([]models.Attestation, error) {
	if _, err := l.GetCommitment(ctx, userID, id); err != nil {
		return nil, err
	}
	return l.ledger.ListAttestations(ctx, id)
}

// RecordProgress applies an attested progress value and completes the
// commitment when it reaches its target
func (l *Lifecycle) RecordProgress(ctx context.Context, id int64, progress int64) (*models.Commitment, error) {
	var c *models.Commitment
	err := l.ledger.InTx(ctx, func(tx storage.Store) error {
		var err error
		c, err = l.recordProgress(ctx, tx, id, progress, l.now())
		return err
	})
	return c, err
}

func (l *Lifecycle) recordProgress(ctx context.Context, tx storage.Store, id int64, progress int64, at time.Time) (*models.Commitment, error) {
	c, err := tx.LockCommitment(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCommitmentNotFound)
	}
	if c.Status != models.CommitmentActive {
		return c, nil
	}

	raised, err := tx.RaiseProgress(ctx, id, progress, at)
	if err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}
	if raised {
		c.CurrentProgress = progress
		c.UpdatedAt = at
	}

	if c.CurrentProgress >= c.TargetValue {
		if err := l.complete(ctx, tx, c, at); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (l *Lifecycle) complete(ctx context.Context, tx storage.Store, c *models.Commitment, at time.Time) error {
	reward := c.StakeAmount.Mul(l.multiplier)
	c.Status = models.CommitmentCompleted
	c.CompletedAt = &at
	c.RewardAmount = &reward
	c.UpdatedAt = at
	if err := tx.UpdateCommitment(ctx, c); err != nil {
		return fmt.Errorf("failed to complete commitment: %w", err)
	}

	if err := l.settleMembership(ctx, tx, c, true, at); err != nil {
		return err
	}

	l.rec.CommitmentTransition(models.CommitmentCompleted)
	l.logger.Info("commitment completed",
		zap.Int64("commitment_id", c.ID),
		zap.String("reward", reward.String()))
	return nil
}

// settleMembership marks the pod membership of a finished commitment and
// bumps the pod's outcome counters
func (l *Lifecycle) settleMembership(ctx context.Context, tx storage.Store, c *models.Commitment, succeeded bool, at time.Time) error {
	if c.PodID == nil {
		return nil
	}

	m, err := tx.GetMembershipByCommitment(ctx, c.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load membership: %w", err)
	}
	pod, err := tx.LockPod(ctx, m.PodID)
	if err != nil {
		return fmt.Errorf("failed to load pod: %w", notFound(err, ErrPodNotFound))
	}

	if succeeded {
		m.HasCompleted = true
		m.CompletedAt = &at
		pod.SuccessfulMembers++
	} else {
		m.IsActive = false
		pod.FailedMembers++
	}
	pod.UpdatedAt = at

	if err := tx.UpdateMembership(ctx, m); err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	if err := tx.UpdatePod(ctx, pod); err != nil {
		return fmt.Errorf("failed to update pod: %w", err)
	}
	return nil
}

// Claim moves a COMPLETED commitment to CLAIMED and records the reward payout
func (l *Lifecycle) Claim(ctx context.Context, userID uuid.UUID, id int64, txHash string) (*models.Commitment, error) {
	if txHash == "" {
		return nil, fmt.Errorf("%w: transaction hash required", ErrInvalidInput)
	}

	var c *models.Commitment
	err := l.ledger.InTx(ctx, func(tx storage.Store) error {
		var err error
		c, err = tx.LockCommitment(ctx, id)
		if err != nil {
			return notFound(err, ErrCommitmentNotFound)
		}
		if err := ownedBy(c, userID); err != nil {
			return err
		}
		if c.ClaimedAt != nil || c.Status == models.CommitmentClaimed {
			return ErrAlreadyClaimed
		}
		if c.Status != models.CommitmentCompleted {
			return fmt.Errorf("%w: cannot claim a %s commitment", ErrInvalidState, c.Status)
		}

		now := l.now()
		c.Status = models.CommitmentClaimed
		c.ClaimedAt = &now
		c.ClaimTxHash = txHash
		c.UpdatedAt = now
		if err := tx.UpdateCommitment(ctx, c); err != nil {
			return fmt.Errorf("failed to claim commitment: %w", err)
		}

		amount := c.StakeAmount
		if c.RewardAmount != nil {
			amount = *c.RewardAmount
		}
		return l.recordTransaction(ctx, tx, c, models.TransactionReward, txHash, amount)
	})
	if err != nil {
		return nil, err
	}

	l.rec.CommitmentTransition(models.CommitmentClaimed)
	l.logger.Info("reward claimed", zap.Int64("commitment_id", id), zap.String("tx_hash", txHash))
	return c, nil
}

// Fail forfeits an overdue ACTIVE commitment's stake to the scholarship pool.
// An empty txHash records the deterministic penalty reference hash.
func (l *Lifecycle) Fail(ctx context.Context, id int64, txHash string) (*models.Commitment, error) {
	var c *models.Commitment
	var pool *models.ScholarshipPool
	err := l.ledger.InTx(ctx, func(tx storage.Store) error {
		var err error
		c, err = tx.LockCommitment(ctx, id)
		if err != nil {
			return notFound(err, ErrCommitmentNotFound)
		}
		if c.Status != models.CommitmentActive {
			return fmt.Errorf("%w: cannot fail a %s commitment", ErrInvalidState, c.Status)
		}

		now := l.now()
		if now.Before(c.EndDate) {
			return ErrDeadlineNotPassed
		}

		penalty := c.StakeAmount
		c.Status = models.CommitmentFailed
		c.PenaltyAmount = &penalty
		c.UpdatedAt = now
		if err := tx.UpdateCommitment(ctx, c); err != nil {
			return fmt.Errorf("failed to fail commitment: %w", err)
		}

		pool, err = tx.CreditScholarshipPool(ctx, penalty, now)
		if err != nil {
			return fmt.Errorf("failed to credit scholarship pool: %w", err)
		}

		if txHash == "" {
			txHash = ReferenceHash(models.TransactionPenalty, c.ID)
		}
		if err := l.recordTransaction(ctx, tx, c, models.TransactionPenalty, txHash, penalty); err != nil {
			return err
		}
		return l.settleMembership(ctx, tx, c, false, now)
	})
	if err != nil {
		return nil, err
	}

	l.rec.CommitmentTransition(models.CommitmentFailed)
	l.rec.ScholarshipCredited(*c.PenaltyAmount)
	l.logger.Info("commitment failed",
		zap.Int64("commitment_id", id),
		zap.String("penalty", c.PenaltyAmount.String()),
		zap.String("pool_balance", pool.CurrentBalance.String()))
	return c, nil
}

// Refund returns the stake of an ACTIVE pod commitment whose pod never started
func (l *Lifecycle) Refund(ctx context.Context, userID uuid.UUID, id int64, txHash string) (*models.Commitment, error) {
	var c *models.Commitment
	err := l.ledger.InTx(ctx, func(tx storage.Store) error {
		var err error
		c, err = tx.LockCommitment(ctx, id)
		if err != nil {
			return notFound(err, ErrCommitmentNotFound)
		}
		if err := ownedBy(c, userID); err != nil {
			return err
		}
		if c.Status != models.CommitmentActive || c.PodID == nil {
			return ErrNotRefundable
		}

		pod, err := tx.LockPod(ctx, *c.PodID)
		if err != nil {
			return notFound(err, ErrPodNotFound)
		}
		if pod.Status != models.PodOpen {
			return ErrNotRefundable
		}

		now := l.now()
		c.Status = models.CommitmentRefunded
		c.UpdatedAt = now
		if err := tx.UpdateCommitment(ctx, c); err != nil {
			return fmt.Errorf("failed to refund commitment: %w", err)
		}

		if txHash == "" {
			txHash = ReferenceHash(models.TransactionRefund, c.ID)
		}
		if err := l.recordTransaction(ctx, tx, c, models.TransactionRefund, txHash, c.StakeAmount); err != nil {
			return err
		}

		m, err := tx.GetMembershipByCommitment(ctx, c.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to load membership: %w", err)
		}
		if m != nil && m.IsActive {
			m.IsActive = false
			if err := tx.UpdateMembership(ctx, m); err != nil {
				return fmt.Errorf("failed to update membership: %w", err)
			}
			pod.TotalMembers--
			pod.TotalStaked = pod.TotalStaked.Sub(c.StakeAmount)
			pod.UpdatedAt = now
			if err := tx.UpdatePod(ctx, pod); err != nil {
				return fmt.Errorf("failed to update pod: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.rec.CommitmentTransition(models.CommitmentRefunded)
	l.logger.Info("commitment refunded", zap.Int64("commitment_id", id))
	return c, nil
}

// ListExpired returns ACTIVE commitments whose deadline has passed
func (l *Lifecycle) ListExpired(ctx context.Context) ([]models.Commitment, error) {
	active := models.CommitmentActive
	now := l.now()
	return l.ledger.ListCommitments(ctx, storage.CommitmentFilter{Status: &active, EndBefore: &now})
}

// ExpireResult is the outcome of failing one overdue commitment
type ExpireResult struct {
	CommitmentID int64  `json:"commitment_id"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// ExpireOverdue fails every overdue commitment. One failure does not stop the rest.
func (l *Lifecycle) ExpireOverdue(ctx context.Context) ([]ExpireResult, error) {
	expired, err := l.ListExpired(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired commitments: %w", err)
	}

	results := make([]ExpireResult, 0, len(expired))
	for _, c := range expired {
		res := ExpireResult{CommitmentID: c.ID}
		if _, err := l.Fail(ctx, c.ID, ""); err != nil {
			res.Error = err.Error()
			l.logger.Warn("failed to expire commitment",
				zap.Int64("commitment_id", c.ID),
				zap.String("user_id", c.UserID.String()),
				zap.Error(err))
		} else {
			res.Success = true
		}
		results = append(results, res)
	}
	return results, nil
}

// ============ Pods ============

// CreatePodRequest describes a new group commitment
type CreatePodRequest struct {
	Name            string                `json:"name" binding:"required"`
	Description     string                `json:"description"`
	Type            models.CommitmentType `json:"commitment_type" binding:"required"`
	TargetValue     int64                 `json:"target_value" binding:"required,min=1"`
	StakeAmount     decimal.Decimal       `json:"stake_amount"`
	DurationDays    int                   `json:"duration_days" binding:"omitempty,min=1,max=365"`
	MaxMembers      int                   `json:"max_members" binding:"required,min=1"`
	MinMembers      int                   `json:"min_members" binding:"required,min=1"`
	ContractAddress string                `json:"contract_address"`
}

// PodDetail is a pod together with its memberships
type PodDetail struct {
	models.Pod
	Members []models.PodMembership `json:"members"`
}

// CreatePod opens an empty pod
func (l *Lifecycle) CreatePod(ctx context.Context, userID uuid.UUID, req CreatePodRequest) (*models.Pod, error) {
	g, err := goals.New(req.Type, req.TargetValue)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !req.StakeAmount.IsPositive() {
		return nil, fmt.Errorf("%w: stake amount must be positive", ErrInvalidInput)
	}
	if req.MinMembers < 1 || req.MaxMembers < req.MinMembers {
		return nil, fmt.Errorf("%w: member bounds must satisfy 1 <= min <= max", ErrInvalidInput)
	}

	duration := req.DurationDays
	if duration == 0 {
		duration = l.podDays
	}
	if duration == 0 {
		duration = goals.DefaultDurationDays(g)
	}

	now := l.now()
	pod := &models.Pod{
		Name:            req.Name,
		Description:     req.Description,
		Type:            req.Type,
		TargetValue:     req.TargetValue,
		StakeAmount:     req.StakeAmount,
		DurationDays:    duration,
		MaxMembers:      req.MaxMembers,
		MinMembers:      req.MinMembers,
		Status:          models.PodOpen,
		EndDate:         now.AddDate(0, 0, duration),
		ContractAddress: req.ContractAddress,
		TotalStaked:     decimal.Zero,
		CreatedBy:       userID,
	}
	if err := l.ledger.InsertPod(ctx, pod); err != nil {
		return nil, fmt.Errorf("failed to create pod: %w", err)
	}

	l.logger.Info("pod created", zap.Int64("pod_id", pod.ID), zap.String("name", pod.Name))
	return pod, nil
}

// JoinPod creates the member commitment and the membership as one unit.
// Any failure leaves neither behind.
func (l *Lifecycle) JoinPod(ctx context.Context, userID uuid.UUID, podID int64, stakeTxHash string) (*models.PodMembership, *models.Commitment, error) {
	var membership *models.PodMembership
	var commitment *models.Commitment
	err := l.ledger.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.GetWalletByUser(ctx, userID); err != nil {
			return notFound(err, ErrWalletNotFound)
		}

		pod, err := tx.LockPod(ctx, podID)
		if err != nil {
			return notFound(err, ErrPodNotFound)
		}
		if pod.Status != models.PodOpen {
			return ErrPodNotOpen
		}
		if pod.TotalMembers >= pod.MaxMembers {
			return ErrPodFull
		}
		if _, err := tx.GetMembership(ctx, podID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to check membership: %w", err)
		}

		now := l.now()
		c := &models.Commitment{
			UserID:          userID,
			PodID:           &pod.ID,
			Type:            pod.Type,
			Status:          models.CommitmentActive,
			StakeAmount:     pod.StakeAmount,
			TargetValue:     pod.TargetValue,
			StartDate:       now,
			EndDate:         now.AddDate(0, 0, pod.DurationDays),
			ContractAddress: pod.ContractAddress,
			StakeTxHash:     stakeTxHash,
			Description:     pod.Name,
		}
		if err := tx.InsertCommitment(ctx, c); err != nil {
			return fmt.Errorf("failed to create member commitment: %w", err)
		}
		if stakeTxHash != "" {
			if err := l.recordTransaction(ctx, tx, c, models.TransactionStake, stakeTxHash, c.StakeAmount); err != nil {
				return err
			}
		}

		m := &models.PodMembership{
			ID:           uuid.New(),
			PodID:        pod.ID,
			UserID:       userID,
			CommitmentID: &c.ID,
			IsActive:     true,
		}
		if err := tx.InsertMembership(ctx, m); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return ErrAlreadyMember
			}
			return fmt.Errorf("failed to create membership: %w", err)
		}

		pod.TotalMembers++
		pod.TotalStaked = pod.TotalStaked.Add(pod.StakeAmount)
		pod.UpdatedAt = now
		if err := tx.UpdatePod(ctx, pod); err != nil {
			return fmt.Errorf("failed to update pod: %w", err)
		}

		membership, commitment = m, c
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	l.logger.Info("pod joined",
		zap.Int64("pod_id", podID),
		zap.String("user_id", userID.String()),
		zap.Int64("commitment_id", commitment.ID))
	return membership, commitment, nil
}

// StartPod activates an OPEN pod that has reached its minimum size
func (l *Lifecycle) StartPod(ctx context.Context, userID uuid.UUID, podID int64) (*models.Pod, error) {
	var pod *models.Pod
	err := l.ledger.InTx(ctx, func(tx storage.Store) error {
		var err error
		pod, err = tx.LockPod(ctx, podID)
		if err != nil {
			return notFound(err, ErrPodNotFound)
		}
		if pod.CreatedBy != userID {
			return ErrNotPodCreator
		}
		if pod.Status != models.PodOpen {
			return ErrPodNotOpen
		}
		if pod.TotalMembers < pod.MinMembers {
			return ErrInsufficientMembers
		}

		now := l.now()
		pod.Status = models.PodActive
		pod.StartDate = &now
		pod.UpdatedAt = now
		return tx.UpdatePod(ctx, pod)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("pod started", zap.Int64("pod_id", podID), zap.Int("members", pod.TotalMembers))
	return pod, nil
}

// GetPod returns a pod and its memberships
func (l *Lifecycle) GetPod(ctx context.Context, podID int64) (*PodDetail, error) {
	pod, err := l.ledger.GetPod(ctx, podID)
	if err != nil {
		return nil, notFound(err, ErrPodNotFound)
	}
	members, err := l.ledger.ListMemberships(ctx, podID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if members == nil {
		members = []models.PodMembership{}
	}
	return &PodDetail{Pod: *pod, Members: members}, nil
}

// ListPods returns pods in the given status, newest first
func (l *Lifecycle) ListPods(ctx context.Context, status models.PodStatus) ([]models.Pod, error) {
	return l.ledger.ListPods(ctx, &status)
}

// ============ Transactions and pool ============

// ListTransactions returns a user's most recent transactions
func (l *Lifecycle) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.ledger.ListTransactions(ctx, storage.TransactionFilter{UserID: &userID, Limit: limit})
}

// ListPendingTransactions returns transactions awaiting confirmation
func (l *Lifecycle) ListPendingTransactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	pending := models.TransactionPending
	return l.ledger.ListTransactions(ctx, storage.TransactionFilter{Status: &pending, Limit: limit})
}

// UpdateTransactionStatus applies a confirmation event for a transaction hash
func (l *Lifecycle) UpdateTransactionStatus(ctx context.Context, hash string, status models.TransactionStatus, blockNumber *int64) (*models.Transaction, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown transaction status %q", ErrInvalidInput, status)
	}

	var t *models.Transaction
	err := l.ledger.InTx(ctx, func(tx storage.Store) error {
		var err error
		t, err = tx.GetTransactionByHash(ctx, hash)
		if err != nil {
			return notFound(err, ErrTransactionNotFound)
		}

		t.Status = status
		if blockNumber != nil {
			t.BlockNumber = blockNumber
		}
		if status == models.TransactionConfirmed && t.ConfirmedAt == nil {
			now := l.now()
			t.ConfirmedAt = &now
		}
		return tx.UpdateTransaction(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("transaction status updated", zap.String("tx_hash", hash), zap.String("status", string(status)))
	return t, nil
}

// ScholarshipPool returns the singleton pool
func (l *Lifecycle) ScholarshipPool(ctx context.Context) (*models.ScholarshipPool, error) {
	return l.ledger.GetScholarshipPool(ctx)
}

// ============ Summaries ============

// CommitmentSummary is a commitment with its progress and history
type CommitmentSummary struct {
	Commitment     models.Commitment    `json:"commitment"`
	Attestations   []models.Attestation `json:"attestations"`
	StoredProgress int64                `json:"stored_progress"`
	LiveProgress   int64                `json:"live_progress"`
	Percentage     float64              `json:"progress_percentage"`
	DaysRemaining  int                  `json:"days_remaining"`
	Daily          []DayActivity        `json:"daily_activity,omitempty"`
}

// Summary builds the progress view of one of a user's commitments
func (l *Lifecycle) Summary(ctx context.Context, userID uuid.UUID, id int64) (*CommitmentSummary, error) {
	c, err := l.GetCommitment(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	attestations, err := l.ledger.ListAttestations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list attestations: %w", err)
	}
	if attestations == nil {
		attestations = []models.Attestation{}
	}

	live := c.CurrentProgress
	if c.Status == models.CommitmentActive {
		if live, err = l.calc.ForCommitment(ctx, c); err != nil {
			return nil, err
		}
	}

	s := &CommitmentSummary{
		Commitment:     *c,
		Attestations:   attestations,
		StoredProgress: c.CurrentProgress,
		LiveProgress:   live,
	}
	if c.TargetValue > 0 {
		s.Percentage = min(100, float64(live)*100/float64(c.TargetValue))
	}
	if remaining := c.EndDate.Sub(l.now()); remaining > 0 {
		s.DaysRemaining = int(remaining.Hours() / 24)
	}

	if c.Type.IsStreak() {
		if s.Daily, err = l.calc.Daily(ctx, c.UserID, c.StartDate); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Dashboard aggregates a user's staking activity
type Dashboard struct {
	TotalCommitments int             `json:"total_commitments"`
	Active           int             `json:"active"`
	Completed        int             `json:"completed"`
	Claimed          int             `json:"claimed"`
	Failed           int             `json:"failed"`
	Refunded         int             `json:"refunded"`
	TotalStaked      decimal.Decimal `json:"total_staked"`
	RewardsEarned    decimal.Decimal `json:"rewards_earned"`
	SuccessRate      float64         `json:"success_rate"`
	ActivePods       int             `json:"active_pods"`
}

// Dashboard summarises all commitments of a user
func (l *Lifecycle) Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	commitments, err := l.ledger.ListCommitments(ctx, storage.CommitmentFilter{UserID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list commitments: %w", err)
	}

	d := &Dashboard{TotalCommitments: len(commitments), TotalStaked: decimal.Zero, RewardsEarned: decimal.Zero}
	for _, c := range commitments {
		switch c.Status {
		case models.CommitmentActive:
			d.Active++
			d.TotalStaked = d.TotalStaked.Add(c.StakeAmount)
			if c.PodID != nil {
				d.ActivePods++
			}
		case models.CommitmentCompleted:
			d.Completed++
			d.TotalStaked = d.TotalStaked.Add(c.StakeAmount)
		case models.CommitmentClaimed:
			d.Claimed++
			if c.RewardAmount != nil {
				d.RewardsEarned = d.RewardsEarned.Add(*c.RewardAmount)
			} else {
				d.RewardsEarned = d.RewardsEarned.Add(c.StakeAmount)
			}
		case models.CommitmentFailed:
			d.Failed++
		case models.CommitmentRefunded:
			d.Refunded++
		}
	}

	if finished := d.Completed + d.Claimed + d.Failed; finished > 0 {
		d.SuccessRate = float64(d.Completed+d.Claimed) * 100 / float64(finished)
	}
	return d, nil
}
