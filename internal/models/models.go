package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommitmentType identifies the goal a commitment is staked against
type CommitmentType string

const (
	CommitmentStreak7Day  CommitmentType = "streak_7_day"
	CommitmentStreak30Day CommitmentType = "streak_30_day"
	CommitmentReading     CommitmentType = "reading_goal"
	CommitmentWriting     CommitmentType = "writing_goal"
	CommitmentCustom      CommitmentType = "custom"
)

// Valid reports whether t is one of the known commitment types
func (t CommitmentType) Valid() bool {
	switch t {
	case CommitmentStreak7Day, CommitmentStreak30Day, CommitmentReading, CommitmentWriting, CommitmentCustom:
		return true
	}
	return false
}

// IsStreak reports whether progress for t is a run of consecutive active days
func (t CommitmentType) IsStreak() bool {
	return t == CommitmentStreak7Day || t == CommitmentStreak30Day
}

// CommitmentStatus is the lifecycle state of a commitment
type CommitmentStatus string

const (
	CommitmentActive    CommitmentStatus = "active"
	CommitmentCompleted CommitmentStatus = "completed"
	CommitmentFailed    CommitmentStatus = "failed"
	CommitmentClaimed   CommitmentStatus = "claimed"
	CommitmentRefunded  CommitmentStatus = "refunded"
)

// Terminal reports whether no further transition is possible from s
func (s CommitmentStatus) Terminal() bool {
	return s == CommitmentClaimed || s == CommitmentFailed || s == CommitmentRefunded
}

func (s CommitmentStatus) Valid() bool {
	switch s {
	case CommitmentActive, CommitmentCompleted, CommitmentFailed, CommitmentClaimed, CommitmentRefunded:
		return true
	}
	return false
}

// PodStatus is the lifecycle state of a pod
type PodStatus string

const (
	PodOpen      PodStatus = "open"
	PodActive    PodStatus = "active"
	PodCompleted PodStatus = "completed"
	PodFailed    PodStatus = "failed"
)

// TransactionType classifies a blockchain-facing money movement
type TransactionType string

const (
	TransactionStake       TransactionType = "stake"
	TransactionReward      TransactionType = "reward"
	TransactionRefund      TransactionType = "refund"
	TransactionPenalty     TransactionType = "penalty"
	TransactionScholarship TransactionType = "scholarship"
)

// TransactionStatus tracks on-chain confirmation of a transaction
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionConfirmed TransactionStatus = "confirmed"
	TransactionFailed    TransactionStatus = "failed"
)

// Valid reports whether s is a known transaction status
func (s TransactionStatus) Valid() bool {
	return s == TransactionPending || s == TransactionConfirmed || s == TransactionFailed
}

// User represents a learner account
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Wallet represents the EVM wallet linked to a user (one per user)
type Wallet struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	Address        string    `db:"wallet_address" json:"wallet_address"`
	Provider       string    `db:"wallet_provider" json:"wallet_provider"`
	ProviderUserID string    `db:"provider_user_id" json:"provider_user_id,omitempty"`
	IsCustodial    bool      `db:"is_custodial" json:"is_custodial"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Commitment represents a user's stake against a learning goal.
// CurrentProgress only grows while Status is active and is frozen afterwards.
type Commitment struct {
	ID              int64            `db:"id" json:"id"`
	UserID          uuid.UUID        `db:"user_id" json:"user_id"`
	PodID           *int64           `db:"pod_id" json:"pod_id,omitempty"`
	Type            CommitmentType   `db:"commitment_type" json:"commitment_type"`
	Status          CommitmentStatus `db:"status" json:"status"`
	StakeAmount     decimal.Decimal  `db:"stake_amount" json:"stake_amount"`
	TargetValue     int64            `db:"target_value" json:"target_value"`
	CurrentProgress int64            `db:"current_progress" json:"current_progress"`
	StartDate       time.Time        `db:"start_date" json:"start_date"`
	EndDate         time.Time        `db:"end_date" json:"end_date"`
	CompletedAt     *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	ClaimedAt       *time.Time       `db:"claimed_at" json:"claimed_at,omitempty"`
	ContractAddress string           `db:"contract_address" json:"contract_address,omitempty"`
	StakeTxHash     string           `db:"stake_tx_hash" json:"stake_tx_hash,omitempty"`
	ClaimTxHash     string           `db:"claim_tx_hash" json:"claim_tx_hash,omitempty"`
	RewardAmount    *decimal.Decimal `db:"reward_amount" json:"reward_amount,omitempty"`
	PenaltyAmount   *decimal.Decimal `db:"penalty_amount" json:"penalty_amount,omitempty"`
	Description     string           `db:"description" json:"description,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// Pod represents a group of users committing to the same goal and stake
type Pod struct {
	ID                int64           `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	Description       string          `db:"description" json:"description,omitempty"`
	Type              CommitmentType  `db:"commitment_type" json:"commitment_type"`
	TargetValue       int64           `db:"target_value" json:"target_value"`
	StakeAmount       decimal.Decimal `db:"stake_amount" json:"stake_amount"`
	DurationDays      int             `db:"duration_days" json:"duration_days"`
	MaxMembers        int             `db:"max_members" json:"max_members"`
	MinMembers        int             `db:"min_members" json:"min_members"`
	Status            PodStatus       `db:"status" json:"status"`
	StartDate         *time.Time      `db:"start_date" json:"start_date,omitempty"`
	EndDate           time.Time       `db:"end_date" json:"end_date"`
	ContractAddress   string          `db:"contract_address" json:"contract_address,omitempty"`
	TotalStaked       decimal.Decimal `db:"total_staked" json:"total_staked"`
	TotalMembers      int             `db:"total_members" json:"total_members"`
	SuccessfulMembers int             `db:"successful_members" json:"successful_members"`
	FailedMembers     int             `db:"failed_members" json:"failed_members"`
	CreatedBy         uuid.UUID       `db:"created_by" json:"created_by"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// PodMembership binds a user and their member commitment to a pod
type PodMembership struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PodID        int64      `db:"pod_id" json:"pod_id"`
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	CommitmentID *int64     `db:"commitment_id" json:"commitment_id,omitempty"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	HasCompleted bool       `db:"has_completed" json:"has_completed"`
	JoinedAt     time.Time  `db:"joined_at" json:"joined_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Attestation is an immutable, signed progress checkpoint for a commitment
type Attestation struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	CommitmentID    int64          `db:"commitment_id" json:"commitment_id"`
	UserID          uuid.UUID      `db:"user_id" json:"user_id"`
	ProgressValue   int64          `db:"progress_value" json:"progress_value"`
	MilestoneDate   time.Time      `db:"milestone_date" json:"milestone_date"`
	ActivityType    CommitmentType `db:"activity_type" json:"activity_type"`
	ActivityIDs     []int64        `db:"activity_ids" json:"activity_ids"`
	AttestationHash string         `db:"attestation_hash" json:"attestation_hash"`
	Signature       string         `db:"signature" json:"signature"`
	MessageHash     string         `db:"message_hash" json:"message_hash"`
	Signer          string         `db:"signer" json:"signer"`
	IsValid         bool           `db:"is_valid" json:"is_valid"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// Transaction is an append-only record of a blockchain-facing operation
type Transaction struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	UserID          uuid.UUID         `db:"user_id" json:"user_id"`
	CommitmentID    *int64            `db:"commitment_id" json:"commitment_id,omitempty"`
	PodID           *int64            `db:"pod_id" json:"pod_id,omitempty"`
	Type            TransactionType   `db:"transaction_type" json:"transaction_type"`
	Hash            string            `db:"transaction_hash" json:"transaction_hash"`
	ContractAddress string            `db:"contract_address" json:"contract_address,omitempty"`
	Amount          decimal.Decimal   `db:"amount" json:"amount"`
	Status          TransactionStatus `db:"status" json:"status"`
	BlockNumber     *int64            `db:"block_number" json:"block_number,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	ConfirmedAt     *time.Time        `db:"confirmed_at" json:"confirmed_at,omitempty"`
}

// ScholarshipPool is the singleton fund fed by forfeited stakes
type ScholarshipPool struct {
	ID                       int64           `db:"id" json:"id"`
	TotalContributed         decimal.Decimal `db:"total_contributed" json:"total_contributed"`
	TotalDistributed         decimal.Decimal `db:"total_distributed" json:"total_distributed"`
	CurrentBalance           decimal.Decimal `db:"current_balance" json:"current_balance"`
	TotalFailedCommitments   int             `db:"total_failed_commitments" json:"total_failed_commitments"`
	TotalScholarshipsAwarded int             `db:"total_scholarships_awarded" json:"total_scholarships_awarded"`
	UpdatedAt                time.Time       `db:"updated_at" json:"updated_at"`
}

// ActivityKind distinguishes the learning activities that count towards progress
type ActivityKind string

const (
	ActivityReading ActivityKind = "reading"
	ActivityWriting ActivityKind = "writing"
)
