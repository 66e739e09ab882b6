package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/studystake/coordinator/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint
	ErrConflict = errors.New("record conflict")
)

// CommitmentFilter narrows ListCommitments. Zero fields are ignored.
type CommitmentFilter struct {
	UserID    *uuid.UUID
	Status    *models.CommitmentStatus
	EndBefore *time.Time
}

// TransactionFilter narrows ListTransactions. Zero fields are ignored.
type TransactionFilter struct {
	UserID *uuid.UUID
	Status *models.TransactionStatus
	Limit  int
}

// Store is the record-level view of the ledger
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpsertWallet(ctx context.Context, wallet *models.Wallet) error
	GetWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)

	InsertCommitment(ctx context.Context, c *models.Commitment) error
	GetCommitment(ctx context.Context, id int64) (*models.Commitment, error)
	// LockCommitment reads a commitment and holds it until the enclosing transaction ends
	LockCommitment(ctx context.Context, id int64) (*models.Commitment, error)
	UpdateCommitment(ctx context.Context, c *models.Commitment) error
	// RaiseProgress sets current_progress only if the commitment is active and the
	// new value is strictly greater. It reports whether a row changed.
	RaiseProgress(ctx context.Context, id int64, progress int64, at time.Time) (bool, error)
	ListCommitments(ctx context.Context, filter CommitmentFilter) ([]models.Commitment, error)

	InsertPod(ctx context.Context, pod *models.Pod) error
	GetPod(ctx context.Context, id int64) (*models.Pod, error)
	LockPod(ctx context.Context, id int64) (*models.Pod, error)
	UpdatePod(ctx context.Context, pod *models.Pod) error
	ListPods(ctx context.Context, status *models.PodStatus) ([]models.Pod, error)

	InsertMembership(ctx context.Context, m *models.PodMembership) error
	GetMembership(ctx context.Context, podID int64, userID uuid.UUID) (*models.PodMembership, error)
	GetMembershipByCommitment(ctx context.Context, commitmentID int64) (*models.PodMembership, error)
	UpdateMembership(ctx context.Context, m *models.PodMembership) error
	ListMemberships(ctx context.Context, podID int64) ([]models.PodMembership, error)

	InsertAttestation(ctx context.Context, a *models.Attestation) error
	ListAttestations(ctx context.Context, commitmentID int64) ([]models.Attestation, error)

	InsertTransaction(ctx context.Context, t *models.Transaction) error
	GetTransactionByHash(ctx context.Context, hash string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, t *models.Transaction) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)

	GetScholarshipPool(ctx context.Context) (*models.ScholarshipPool, error)
	// CreditScholarshipPool adds a forfeited stake to the pool as one atomic increment
	CreditScholarshipPool(ctx context.Context, amount decimal.Decimal, at time.Time) (*models.ScholarshipPool, error)
}

// Ledger is a Store that can run a group of operations as one atomic unit.
// Inside fn every call goes through tx; an error from fn discards all of them.
type Ledger interface {
	Store
	InTx(ctx context.Context, fn func(tx Store) error) error
}
