package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/studystake/coordinator/internal/goals"
	"github.com/studystake/coordinator/internal/models"
	"github.com/studystake/coordinator/internal/signer"
	"github.com/studystake/coordinator/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AttestationSigner signs progress attestations
type AttestationSigner interface {
	Sign(ctx context.Context, commitmentID int64, userAddress string, progress int64, attestationHash string) (*signer.Signature, error)
}

// OrchestratorOptions tunes attestation generation and the sweep
type OrchestratorOptions struct {
	// ProofLimit caps the activity IDs attached to one attestation
	ProofLimit int
	// Timeout bounds one commitment's attestation attempt
	Timeout      time.Duration
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	Now          func() time.Time
	Recorder     Recorder
}

func (o *OrchestratorOptions) setDefaults() {
	if o.ProofLimit <= 0 {
		o.ProofLimit = 100
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 500 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
}

// Orchestrator turns progress changes into signed, persisted attestations
type Orchestrator struct {
	ledger    storage.Ledger
	calc      *Calculator
	signer    AttestationSigner
	lifecycle *Lifecycle
	logger    *zap.Logger
	opts      OrchestratorOptions
}

// NewOrchestrator creates an attestation orchestrator
func NewOrchestrator(ledger storage.Ledger, calc *Calculator, s AttestationSigner, lifecycle *Lifecycle, logger *zap.Logger, opts OrchestratorOptions) *Orchestrator {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		ledger:    ledger,
		calc:      calc,
		signer:    s,
		lifecycle: lifecycle,
		logger:    logger,
		opts:      opts,
	}
}

// ProgressCheck compares stored and live progress of a commitment
type ProgressCheck struct {
	CommitmentID     int64                   `json:"commitment_id"`
	Status           models.CommitmentStatus `json:"status"`
	StoredProgress   int64                   `json:"stored_progress"`
	ActualProgress   int64                   `json:"actual_progress"`
	TargetValue      int64                   `json:"target_value"`
	NeedsAttestation bool                    `json:"needs_attestation"`
	IsCompleted      bool                    `json:"is_completed"`
}

// AttestationResult is the payload returned for a newly signed attestation
type AttestationResult struct {
	Attestation     models.Attestation      `json:"attestation"`
	CommitmentID    int64                   `json:"commitment_id"`
	UserAddress     string                  `json:"user_address"`
	Progress        int64                   `json:"progress"`
	AttestationHash string                  `json:"attestation_hash"`
	Signature       string                  `json:"signature"`
	MessageHash     string                  `json:"message_hash"`
	Signer          string                  `json:"signer"`
	IsCompleted     bool                    `json:"is_completed"`
	Status          models.CommitmentStatus `json:"status"`
}

// CheckProgress reports whether a commitment has progress worth attesting.
// It never writes.
func (o *Orchestrator) CheckProgress(ctx context.Context, id int64) (*ProgressCheck, error) {
	c, err := o.ledger.GetCommitment(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCommitmentNotFound)
	}
	return o.check(ctx, c)
}

// CheckOwnProgress is CheckProgress restricted to the commitment's owner
func (o *Orchestrator) CheckOwnProgress(ctx context.Context, userID uuid.UUID, id int64) (*ProgressCheck, error) {
	c, err := o.lifecycle.GetCommitment(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return o.check(ctx, c)
}

func (o *Orchestrator) check(ctx context.Context, c *models.Commitment) (*ProgressCheck, error) {
	pc := &ProgressCheck{
		CommitmentID:   c.ID,
		Status:         c.Status,
		StoredProgress: c.CurrentProgress,
		ActualProgress: c.CurrentProgress,
		TargetValue:    c.TargetValue,
	}
	if c.Status != models.CommitmentActive {
		pc.IsCompleted = c.CurrentProgress >= c.TargetValue
		return pc, nil
	}

	actual, err := o.calc.ForCommitment(ctx, c)
	if err != nil {
		return nil, err
	}
	pc.ActualProgress = actual
	pc.NeedsAttestation = actual > c.CurrentProgress
	pc.IsCompleted = actual >= c.TargetValue
	return pc, nil
}

// GenerateAttestation signs and persists the commitment's new progress.
// It returns nil when progress has not moved since the last attestation.
func (o *Orchestrator) GenerateAttestation(ctx context.Context, id int64) (*AttestationResult, error) {
	c, err := o.ledger.GetCommitment(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCommitmentNotFound)
	}
	return o.generate(ctx, c)
}

// GenerateOwnAttestation is GenerateAttestation restricted to the commitment's owner
func (o *Orchestrator) GenerateOwnAttestation(ctx context.Context, userID uuid.UUID, id int64) (*AttestationResult, error) {
	c, err := o.lifecycle.GetCommitment(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return o.generate(ctx, c)
}

func (o *Orchestrator) generate(ctx context.Context, c *models.Commitment) (*AttestationResult, error) {
	wallet, err := o.ledger.GetWalletByUser(ctx, c.UserID)
	if err != nil {
		return nil, notFound(err, ErrWalletNotFound)
	}

	check, err := o.check(ctx, c)
	if err != nil {
		return nil, err
	}
	if !check.NeedsAttestation {
		return nil, nil
	}

	g, err := goals.ForCommitment(c)
	if err != nil {
		return nil, err
	}

	now := o.opts.Now()
	progress := check.ActualProgress
	attHash := signer.AttestationHash(c.ID, wallet.Address, progress, now)

	sig, err := o.signer.Sign(ctx, c.ID, wallet.Address, progress, attHash)
	if err != nil {
		if errors.Is(err, signer.ErrNotConfigured) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to sign attestation: %w", err)
	}

	proof, err := o.calc.ProofIDs(ctx, g, c.UserID, c.StartDate, o.opts.ProofLimit)
	if err != nil {
		return nil, err
	}

	att := models.Attestation{
		ID:              uuid.New(),
		CommitmentID:    c.ID,
		UserID:          c.UserID,
		ProgressValue:   progress,
		MilestoneDate:   now,
		ActivityType:    c.Type,
		ActivityIDs:     proof,
		AttestationHash: attHash,
		Signature:       sig.Signature,
		MessageHash:     sig.MessageHash,
		Signer:          sig.Signer,
		IsValid:         true,
	}

	var updated *models.Commitment
	stale := false
	err = o.ledger.InTx(ctx, func(tx storage.Store) error {
		locked, err := tx.LockCommitment(ctx, c.ID)
		if err != nil {
			return notFound(err, ErrCommitmentNotFound)
		}
		if locked.Status != models.CommitmentActive {
			return fmt.Errorf("%w: commitment is %s", ErrInvalidState, locked.Status)
		}
		if locked.CurrentProgress >= progress {
			stale = true
			return nil
		}

		if err := tx.InsertAttestation(ctx, &att); err != nil {
			return fmt.Errorf("failed to store attestation: %w", err)
		}
		updated, err = o.lifecycle.recordProgress(ctx, tx, c.ID, progress, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if stale {
		return nil, nil
	}

	o.opts.Recorder.AttestationCreated()
	o.logger.Info("attestation generated",
		zap.Int64("commitment_id", c.ID),
		zap.Int64("progress", progress),
		zap.Int64("target", c.TargetValue),
		zap.String("attestation_hash", attHash))

	return &AttestationResult{
		Attestation:     att,
		CommitmentID:    c.ID,
		UserAddress:     wallet.Address,
		Progress:        progress,
		AttestationHash: attHash,
		Signature:       sig.Signature,
		MessageHash:     sig.MessageHash,
		Signer:          sig.Signer,
		IsCompleted:     progress >= c.TargetValue,
		Status:          updated.Status,
	}, nil
}

// SweepResult is the outcome of one commitment in a sweep
type SweepResult struct {
	CommitmentID int64  `json:"commitment_id"`
	UserID       string `json:"user_id"`
	Success      bool   `json:"success"`
	Attested     bool   `json:"attested"`
	Progress     int64  `json:"progress,omitempty"`
	IsCompleted  bool   `json:"is_completed,omitempty"`
	Attempts     int    `json:"attempts"`
	Error        string `json:"error,omitempty"`
	// Err is the typed failure behind Error
	Err error `json:"-"`
}

// SweepActiveCommitments attempts an attestation for every ACTIVE commitment.
// Items run concurrently and fail independently; the returned error is only
// for failing to list the commitments.
func (o *Orchestrator) SweepActiveCommitments(ctx context.Context) ([]SweepResult, error) {
	active := models.CommitmentActive
	commitments, err := o.ledger.ListCommitments(ctx, storage.CommitmentFilter{Status: &active})
	if err != nil {
		return nil, fmt.Errorf("failed to list active commitments: %w", err)
	}

	results := make([]SweepResult, len(commitments))
	g := new(errgroup.Group)
	g.SetLimit(o.opts.Workers)
	for i := range commitments {
		i := i
		g.Go(func() error {
			results[i] = o.sweepOne(ctx, commitments[i])
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	o.logger.Info("attestation sweep finished",
		zap.Int("commitments", len(results)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded))
	return results, nil
}

func (o *Orchestrator) sweepOne(ctx context.Context, c models.Commitment) SweepResult {
	res := SweepResult{CommitmentID: c.ID, UserID: c.UserID.String()}

	att, err := retry(ctx, o.opts.MaxRetries, o.opts.RetryBackoff, func(attempt int) (*AttestationResult, error) {
		res.Attempts = attempt + 1
		itemCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
		return o.generate(itemCtx, &c)
	})

	switch {
	case err != nil:
		res.Err = err
		res.Error = err.Error()
		o.opts.Recorder.SweepItem("failed")
		o.logger.Warn("attestation failed",
			zap.Int64("commitment_id", c.ID),
			zap.String("user_id", res.UserID),
			zap.Int("attempts", res.Attempts),
			zap.Error(err))
	case att == nil:
		res.Success = true
		o.opts.Recorder.SweepItem("unchanged")
	default:
		res.Success = true
		res.Attested = true
		res.Progress = att.Progress
		res.IsCompleted = att.IsCompleted
		o.opts.Recorder.SweepItem("attested")
	}
	return res
}

// retry runs fn until it succeeds, fails with a non-retryable error, or
// maxRetries extra attempts are used. The wait doubles after every attempt.
func retry[T any](ctx context.Context, maxRetries int, interval time.Duration, fn func(attempt int) (T, error)) (T, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = interval
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0

	attempt := 0
	return backoff.RetryWithData(func() (T, error) {
		result, err := fn(attempt)
		attempt++
		if err != nil && !Retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxRetries)), ctx))
}
