package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/studystake/coordinator/internal/models"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgLedger implements Ledger on PostgreSQL
type PgLedger struct {
	db *DB
	q  querier
	tx bool
}

// NewPgLedger creates a ledger backed by the connection pool
func NewPgLedger(db *DB) *PgLedger {
	return &PgLedger{db: db, q: db.Pool}
}

// InTx runs fn inside a database transaction. Nested calls reuse the open transaction.
func (l *PgLedger) InTx(ctx context.Context, fn func(tx Store) error) error {
	if l.tx {
		return fn(l)
	}

	tx, err := l.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PgLedger{db: l.db, q: tx, tx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func decString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDec(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid numeric %q: %w", s, err)
	}
	return d, nil
}

func parseDecPtr(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseDec(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ============ Accounts ============

// CreateUser inserts a new user
func (l *PgLedger) CreateUser(ctx context.Context, user *models.User) error {
	err := l.q.QueryRow(ctx,
		`INSERT INTO users (id, email, name, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		user.ID, user.Email, user.Name, user.PasswordHash).Scan(&user.CreatedAt, &user.UpdatedAt)
	return mapErr(err)
}

// GetUser retrieves a user by ID
func (l *PgLedger) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := l.q.QueryRow(ctx,
		"SELECT id, email, name, password_hash, created_at, updated_at FROM users WHERE id = $1",
		id).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email
func (l *PgLedger) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := l.q.QueryRow(ctx,
		"SELECT id, email, name, password_hash, created_at, updated_at FROM users WHERE email = $1",
		email).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// UpsertWallet links a wallet to a user, replacing the previous one
func (l *PgLedger) UpsertWallet(ctx context.Context, w *models.Wallet) error {
	err := l.q.QueryRow(ctx,
		`INSERT INTO wallets (id, user_id, wallet_address, wallet_provider, provider_user_id, is_custodial)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE
		 SET wallet_address = EXCLUDED.wallet_address,
		     wallet_provider = EXCLUDED.wallet_provider,
		     provider_user_id = EXCLUDED.provider_user_id,
		     updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		w.ID, w.UserID, w.Address, w.Provider, w.ProviderUserID, w.IsCustodial).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	return mapErr(err)
}

// GetWalletByUser retrieves the wallet linked to a user
func (l *PgLedger) GetWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := l.q.QueryRow(ctx,
		`SELECT id, user_id, wallet_address, wallet_provider, provider_user_id, is_custodial, created_at, updated_at
		 FROM wallets WHERE user_id = $1`,
		userID).Scan(&w.ID, &w.UserID, &w.Address, &w.Provider, &w.ProviderUserID, &w.IsCustodial, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &w, nil
}

// ============ Commitments ============

const commitmentColumns = `id, user_id, pod_id, commitment_type, status, stake_amount::text, target_value,
	current_progress, start_date, end_date, completed_at, claimed_at, contract_address, stake_tx_hash,
	claim_tx_hash, reward_amount::text, penalty_amount::text, description, created_at, updated_at`

func scanCommitment(row pgx.Row) (*models.Commitment, error) {
	var c models.Commitment
	var stake string
	var reward, penalty *string
	err := row.Scan(
		&c.ID, &c.UserID, &c.PodID, &c.Type, &c.Status, &stake, &c.TargetValue,
		&c.CurrentProgress, &c.StartDate, &c.EndDate, &c.CompletedAt, &c.ClaimedAt,
		&c.ContractAddress, &c.StakeTxHash, &c.ClaimTxHash, &reward, &penalty,
		&c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	if c.StakeAmount, err = parseDec(stake); err != nil {
		return nil, err
	}
	if c.RewardAmount, err = parseDecPtr(reward); err != nil {
		return nil, err
	}
	if c.PenaltyAmount, err = parseDecPtr(penalty); err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertCommitment inserts a commitment and assigns its ID
func (l *PgLedger) InsertCommitment(ctx context.Context, c *models.Commitment) error {
	err := l.q.QueryRow(ctx,
		`INSERT INTO commitments (user_id, pod_id, commitment_type, status, stake_amount, target_value,
		   current_progress, start_date, end_date, contract_address, stake_tx_hash, description)
		 VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at, updated_at`,
		c.UserID, c.PodID, c.Type, c.Status, c.StakeAmount.String(), c.TargetValue,
		c.CurrentProgress, c.StartDate, c.EndDate, c.ContractAddress, c.StakeTxHash, c.Description,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapErr(err)
}

// GetCommitment retrieves a commitment by ID
func (l *PgLedger) GetCommitment(ctx context.Context, id int64) (*models.Commitment, error) {
	return scanCommitment(l.q.QueryRow(ctx,
		"SELECT "+commitmentColumns+" FROM commitments WHERE id = $1", id))
}

// LockCommitment retrieves a commitment with a row lock
func (l *PgLedger) LockCommitment(ctx context.Context, id int64) (*models.Commitment, error) {
	return scanCommitment(l.q.QueryRow(ctx,
		"SELECT "+commitmentColumns+" FROM commitments WHERE id = $1 FOR UPDATE", id))
}

// UpdateCommitment writes the mutable commitment fields
func (l *PgLedger) UpdateCommitment(ctx context.Context, c *models.Commitment) error {
	tag, err := l.q.Exec(ctx,
		`UPDATE commitments
		 SET status = $1, current_progress = $2, completed_at = $3, claimed_at = $4, claim_tx_hash = $5,
		     reward_amount = $6::text::numeric, penalty_amount = $7::text::numeric, pod_id = $8, updated_at = $9
		 WHERE id = $10`,
		c.Status, c.CurrentProgress, c.CompletedAt, c.ClaimedAt, c.ClaimTxHash,
		decString(c.RewardAmount), decString(c.PenaltyAmount), c.PodID, c.UpdatedAt, c.ID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RaiseProgress moves progress forward on an active commitment
func (l *PgLedger) RaiseProgress(ctx context.Context, id int64, progress int64, at time.Time) (bool, error) {
	tag, err := l.q.Exec(ctx,
		`UPDATE commitments SET current_progress = $1, updated_at = $2
		 WHERE id = $3 AND status = 'active' AND current_progress < $1`,
		progress, at, id)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListCommitments retrieves commitments matching the filter, newest first
func (l *PgLedger) ListCommitments(ctx context.Context, f CommitmentFilter) ([]models.Commitment, error) {
	var where []string
	var args []any
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.EndBefore != nil {
		args = append(args, *f.EndBefore)
		where = append(where, fmt.Sprintf("end_date < $%d", len(args)))
	}

	query := "SELECT " + commitmentColumns + " FROM commitments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := l.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commitments []models.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, err
		}
		commitments = append(commitments, *c)
	}
	return commitments, rows.Err()
}

// ============ Pods ============

const podColumns = `id, name, description, commitment_type, target_value, stake_amount::text, duration_days,
	max_members, min_members, status, start_date, end_date, contract_address, total_staked::text,
	total_members, successful_members, failed_members, created_by, created_at, updated_at`

func scanPod(row pgx.Row) (*models.Pod, error) {
	var p models.Pod
	var stake, staked string
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Type, &p.TargetValue, &stake, &p.DurationDays,
		&p.MaxMembers, &p.MinMembers, &p.Status, &p.StartDate, &p.EndDate, &p.ContractAddress,
		&staked, &p.TotalMembers, &p.SuccessfulMembers, &p.FailedMembers, &p.CreatedBy,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if p.StakeAmount, err = parseDec(stake); err != nil {
		return nil, err
	}
	if p.TotalStaked, err = parseDec(staked); err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertPod inserts a pod and assigns its ID
func (l *PgLedger) InsertPod(ctx context.Context, p *models.Pod) error {
	err := l.q.QueryRow(ctx,
		`INSERT INTO pods (name, description, commitment_type, target_value, stake_amount, duration_days,
		   max_members, min_members, status, end_date, contract_address, total_staked, total_members, created_by)
		 VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9, $10, $11, $12::text::numeric, $13, $14)
		 RETURNING id, created_at, updated_at`,
		p.Name, p.Description, p.Type, p.TargetValue, p.StakeAmount.String(), p.DurationDays,
		p.MaxMembers, p.MinMembers, p.Status, p.EndDate, p.ContractAddress, p.TotalStaked.String(),
		p.TotalMembers, p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapErr(err)
}

// GetPod retrieves a pod by ID
func (l *PgLedger) GetPod(ctx context.Context, id int64) (*models.Pod, error) {
	return scanPod(l.q.QueryRow(ctx, "SELECT "+podColumns+" FROM pods WHERE id = $1", id))
}

// LockPod retrieves a pod with a row lock
func (l *PgLedger) LockPod(ctx context.Context, id int64) (*models.Pod, error) {
	return scanPod(l.q.QueryRow(ctx, "SELECT "+podColumns+" FROM pods WHERE id = $1 FOR UPDATE", id))
}

// UpdatePod writes the mutable pod fields
func (l *PgLedger) UpdatePod(ctx context.Context, p *models.Pod) error {
	tag, err := l.q.Exec(ctx,
		`UPDATE pods
		 SET status = $1, start_date = $2, total_staked = $3::text::numeric, total_members = $4,
		     successful_members = $5, failed_members = $6, updated_at = $7
		 WHERE id = $8`,
		p.Status, p.StartDate, p.TotalStaked.String(), p.TotalMembers,
		p.SuccessfulMembers, p.FailedMembers, p.UpdatedAt, p.ID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPods retrieves pods, optionally by status, newest first
func (l *PgLedger) ListPods(ctx context.Context, status *models.PodStatus) ([]models.Pod, error) {
	query := "SELECT " + podColumns + " FROM pods"
	var args []any
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := l.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pods []models.Pod
	for rows.Next() {
		p, err := scanPod(rows)
		if err != nil {
			return nil, err
		}
		pods = append(pods, *p)
	}
	return pods, rows.Err()
}

const membershipColumns = `id, pod_id, user_id, commitment_id, is_active, has_completed, joined_at, completed_at`

func scanMembership(row pgx.Row) (*models.PodMembership, error) {
	var m models.PodMembership
	err := row.Scan(&m.ID, &m.PodID, &m.UserID, &m.CommitmentID, &m.IsActive, &m.HasCompleted, &m.JoinedAt, &m.CompletedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

// InsertMembership inserts a pod membership
func (l *PgLedger) InsertMembership(ctx context.Context, m *models.PodMembership) error {
	err := l.q.QueryRow(ctx,
		`INSERT INTO pod_memberships (id, pod_id, user_id, commitment_id, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING joined_at`,
		m.ID, m.PodID, m.UserID, m.CommitmentID, m.IsActive).Scan(&m.JoinedAt)
	return mapErr(err)
}

// GetMembership retrieves a user's membership in a pod
func (l *PgLedger) GetMembership(ctx context.Context, podID int64, userID uuid.UUID) (*models.PodMembership, error) {
	return scanMembership(l.q.QueryRow(ctx,
		"SELECT "+membershipColumns+" FROM pod_memberships WHERE pod_id = $1 AND user_id = $2",
		podID, userID))
}

// GetMembershipByCommitment retrieves the membership bound to a commitment
func (l *PgLedger) GetMembershipByCommitment(ctx context.Context, commitmentID int64) (*models.PodMembership, error) {
	return scanMembership(l.q.QueryRow(ctx,
		"SELECT "+membershipColumns+" FROM pod_memberships WHERE commitment_id = $1",
		commitmentID))
}

// UpdateMembership writes the mutable membership fields
func (l *PgLedger) UpdateMembership(ctx context.Context, m *models.PodMembership) error {
	tag, err := l.q.Exec(ctx,
		"UPDATE pod_memberships SET is_active = $1, has_completed = $2, completed_at = $3 WHERE id = $4",
		m.IsActive, m.HasCompleted, m.CompletedAt, m.ID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMemberships retrieves all memberships of a pod in join order
func (l *PgLedger) ListMemberships(ctx context.Context, podID int64) ([]models.PodMembership, error) {
	rows, err := l.q.Query(ctx,
		"SELECT "+membershipColumns+" FROM pod_memberships WHERE pod_id = $1 ORDER BY joined_at",
		podID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []models.PodMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, *m)
	}
	return memberships, rows.Err()
}

// ============ Attestations ============

// InsertAttestation appends an attestation
func (l *PgLedger) InsertAttestation(ctx context.Context, a *models.Attestation) error {
	err := l.q.QueryRow(ctx,
		`INSERT INTO milestone_attestations (id, commitment_id, user_id, progress_value, milestone_date,
		   activity_type, activity_ids, attestation_hash, signature, message_hash, signer, is_valid)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at`,
		a.ID, a.CommitmentID, a.UserID, a.ProgressValue, a.MilestoneDate, a.ActivityType, a.ActivityIDs,
		a.AttestationHash, a.Signature, a.MessageHash, a.Signer, a.IsValid).Scan(&a.CreatedAt)
	return mapErr(err)
}

// ListAttestations retrieves a commitment's attestations, newest first
func (l *PgLedger) ListAttestations(ctx context.Context, commitmentID int64) ([]models.Attestation, error) {
	rows, err := l.q.Query(ctx,
		`SELECT id, commitment_id, user_id, progress_value, milestone_date, activity_type, activity_ids,
		   attestation_hash, signature, message_hash, signer, is_valid, created_at
		 FROM milestone_attestations WHERE commitment_id = $1
		 ORDER BY created_at DESC`,
		commitmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attestations []models.Attestation
	for rows.Next() {
		var a models.Attestation
		err := rows.Scan(&a.ID, &a.CommitmentID, &a.UserID, &a.ProgressValue, &a.MilestoneDate,
			&a.ActivityType, &a.ActivityIDs, &a.AttestationHash, &a.Signature, &a.MessageHash,
			&a.Signer, &a.IsValid, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		attestations = append(attestations, a)
	}
	return attestations, rows.Err()
}

// ============ Transactions ============

const transactionColumns = `id, user_id, commitment_id, pod_id, transaction_type, transaction_hash, contract_address,
	amount::text, status, block_number, created_at, confirmed_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	var amount string
	err := row.Scan(&t.ID, &t.UserID, &t.CommitmentID, &t.PodID, &t.Type, &t.Hash, &t.ContractAddress,
		&amount, &t.Status, &t.BlockNumber, &t.CreatedAt, &t.ConfirmedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if t.Amount, err = parseDec(amount); err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTransaction appends a transaction record
func (l *PgLedger) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	err := l.q.QueryRow(ctx,
		`INSERT INTO staking_transactions (id, user_id, commitment_id, pod_id, transaction_type,
		   transaction_hash, contract_address, amount, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::text::numeric, $9)
		 RETURNING created_at`,
		t.ID, t.UserID, t.CommitmentID, t.PodID, t.Type, t.Hash, t.ContractAddress,
		t.Amount.String(), t.Status).Scan(&t.CreatedAt)
	return mapErr(err)
}

// GetTransactionByHash retrieves a transaction by its hash
func (l *PgLedger) GetTransactionByHash(ctx context.Context, hash string) (*models.Transaction, error) {
	return scanTransaction(l.q.QueryRow(ctx,
		"SELECT "+transactionColumns+" FROM staking_transactions WHERE transaction_hash = $1", hash))
}

// UpdateTransaction writes the confirmation fields of a transaction
func (l *PgLedger) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	tag, err := l.q.Exec(ctx,
		"UPDATE staking_transactions SET status = $1, block_number = $2, confirmed_at = $3 WHERE id = $4",
		t.Status, t.BlockNumber, t.ConfirmedAt, t.ID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTransactions retrieves transactions matching the filter, newest first
func (l *PgLedger) ListTransactions(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	var where []string
	var args []any
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT " + transactionColumns + " FROM staking_transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := l.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// ============ Scholarship pool ============

const poolColumns = `id, total_contributed::text, total_distributed::text, current_balance::text,
	total_failed_commitments, total_scholarships_awarded, updated_at`

func scanPool(row pgx.Row) (*models.ScholarshipPool, error) {
	var p models.ScholarshipPool
	var contributed, distributed, balance string
	err := row.Scan(&p.ID, &contributed, &distributed, &balance,
		&p.TotalFailedCommitments, &p.TotalScholarshipsAwarded, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if p.TotalContributed, err = parseDec(contributed); err != nil {
		return nil, err
	}
	if p.TotalDistributed, err = parseDec(distributed); err != nil {
		return nil, err
	}
	if p.CurrentBalance, err = parseDec(balance); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetScholarshipPool retrieves the singleton pool, creating it on first use
func (l *PgLedger) GetScholarshipPool(ctx context.Context) (*models.ScholarshipPool, error) {
	_, err := l.q.Exec(ctx, "INSERT INTO scholarship_pool (id) VALUES (1) ON CONFLICT (id) DO NOTHING")
	if err != nil {
		return nil, mapErr(err)
	}
	return scanPool(l.q.QueryRow(ctx, "SELECT "+poolColumns+" FROM scholarship_pool WHERE id = 1"))
}

// CreditScholarshipPool adds amount to the pool in one statement
func (l *PgLedger) CreditScholarshipPool(ctx context.Context, amount decimal.Decimal, at time.Time) (*models.ScholarshipPool, error) {
	return scanPool(l.q.QueryRow(ctx,
		`INSERT INTO scholarship_pool (id, total_contributed, current_balance, total_failed_commitments, updated_at)
		 VALUES (1, $1::text::numeric, $1::text::numeric, 1, $2)
		 ON CONFLICT (id) DO UPDATE
		 SET total_contributed = scholarship_pool.total_contributed + EXCLUDED.total_contributed,
		     current_balance = scholarship_pool.current_balance + EXCLUDED.current_balance,
		     total_failed_commitments = scholarship_pool.total_failed_commitments + 1,
		     updated_at = EXCLUDED.updated_at
		 RETURNING `+poolColumns,
		amount.String(), at))
}
