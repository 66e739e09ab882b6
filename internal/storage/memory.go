package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/studystake/coordinator/internal/models"
)

type memData struct {
	users        map[uuid.UUID]models.User
	wallets      map[uuid.UUID]models.Wallet
	commitments  map[int64]models.Commitment
	pods         map[int64]models.Pod
	memberships  []models.PodMembership
	attestations []models.Attestation
	transactions []models.Transaction
	pool         *models.ScholarshipPool

	nextCommitmentID int64
	nextPodID        int64
}

func newMemData() *memData {
	return &memData{
		users:            make(map[uuid.UUID]models.User),
		wallets:          make(map[uuid.UUID]models.Wallet),
		commitments:      make(map[int64]models.Commitment),
		pods:             make(map[int64]models.Pod),
		nextCommitmentID: 1,
		nextPodID:        1,
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		users:            make(map[uuid.UUID]models.User, len(d.users)),
		wallets:          make(map[uuid.UUID]models.Wallet, len(d.wallets)),
		commitments:      make(map[int64]models.Commitment, len(d.commitments)),
		pods:             make(map[int64]models.Pod, len(d.pods)),
		memberships:      append([]models.PodMembership(nil), d.memberships...),
		attestations:     append([]models.Attestation(nil), d.attestations...),
		transactions:     append([]models.Transaction(nil), d.transactions...),
		nextCommitmentID: d.nextCommitmentID,
		nextPodID:        d.nextPodID,
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.wallets {
		c.wallets[k] = v
	}
	for k, v := range d.commitments {
		c.commitments[k] = v
	}
	for k, v := range d.pods {
		c.pods[k] = v
	}
	if d.pool != nil {
		p := *d.pool
		c.pool = &p
	}
	return c
}

// Memory is an in-process Ledger. Transactions run on a private copy of the
// data that replaces the shared state only when fn succeeds.
type Memory struct {
	mu   *sync.Mutex
	data *memData
	tx   bool
}

// NewMemory creates an empty in-memory ledger
func NewMemory() *Memory {
	return &Memory{mu: &sync.Mutex{}, data: newMemData()}
}

func (m *Memory) lock() func() {
	if m.tx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// InTx runs fn against a snapshot and publishes it if fn returns nil
func (m *Memory) InTx(ctx context.Context, fn func(tx Store) error) error {
	if m.tx {
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := &Memory{mu: m.mu, data: m.data.clone(), tx: true}
	if err := fn(snapshot); err != nil {
		return err
	}
	m.data = snapshot.data
	return nil
}

// ============ Accounts ============

func (m *Memory) CreateUser(ctx context.Context, user *models.User) error {
	defer m.lock()()
	for _, u := range m.data.users {
		if u.Email == user.Email {
			return ErrConflict
		}
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	m.data.users[user.ID] = *user
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer m.lock()()
	u, ok := m.data.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer m.lock()()
	for _, u := range m.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpsertWallet(ctx context.Context, w *models.Wallet) error {
	defer m.lock()()
	for _, other := range m.data.wallets {
		if other.Address == w.Address && other.UserID != w.UserID {
			return ErrConflict
		}
	}
	now := time.Now()
	if existing, ok := m.data.wallets[w.UserID]; ok {
		w.ID = existing.ID
		w.CreatedAt = existing.CreatedAt
		w.IsCustodial = existing.IsCustodial
	} else {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	m.data.wallets[w.UserID] = *w
	return nil
}

func (m *Memory) GetWalletByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	defer m.lock()()
	w, ok := m.data.wallets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

// ============ Commitments ============

func (m *Memory) InsertCommitment(ctx context.Context, c *models.Commitment) error {
	defer m.lock()()
	c.ID = m.data.nextCommitmentID
	m.data.nextCommitmentID++
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	m.data.commitments[c.ID] = *c
	return nil
}

func (m *Memory) GetCommitment(ctx context.Context, id int64) (*models.Commitment, error) {
	defer m.lock()()
	c, ok := m.data.commitments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) LockCommitment(ctx context.Context, id int64) (*models.Commitment, error) {
	return m.GetCommitment(ctx, id)
}

func (m *Memory) UpdateCommitment(ctx context.Context, c *models.Commitment) error {
	defer m.lock()()
	if _, ok := m.data.commitments[c.ID]; !ok {
		return ErrNotFound
	}
	m.data.commitments[c.ID] = *c
	return nil
}

func (m *Memory) RaiseProgress(ctx context.Context, id int64, progress int64, at time.Time) (bool, error) {
	defer m.lock()()
	c, ok := m.data.commitments[id]
	if !ok || c.Status != models.CommitmentActive || c.CurrentProgress >= progress {
		return false, nil
	}
	c.CurrentProgress = progress
	c.UpdatedAt = at
	m.data.commitments[id] = c
	return true, nil
}

func (m *Memory) ListCommitments(ctx context.Context, f CommitmentFilter) ([]models.Commitment, error) {
	defer m.lock()()
	var out []models.Commitment
	for _, c := range m.data.commitments {
		if f.UserID != nil && c.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.EndBefore != nil && !c.EndDate.Before(*f.EndBefore) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ============ Pods ============

func (m *Memory) InsertPod(ctx context.Context, p *models.Pod) error {
	defer m.lock()()
	p.ID = m.data.nextPodID
	m.data.nextPodID++
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.data.pods[p.ID] = *p
	return nil
}

func (m *Memory) GetPod(ctx context.Context, id int64) (*models.Pod, error) {
	defer m.lock()()
	p, ok := m.data.pods[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) LockPod(ctx context.Context, id int64) (*models.Pod, error) {
	return m.GetPod(ctx, id)
}

func (m *Memory) UpdatePod(ctx context.Context, p *models.Pod) error {
	defer m.lock()()
	if _, ok := m.data.pods[p.ID]; !ok {
		return ErrNotFound
	}
	m.data.pods[p.ID] = *p
	return nil
}

func (m *Memory) ListPods(ctx context.Context, status *models.PodStatus) ([]models.Pod, error) {
	defer m.lock()()
	var out []models.Pod
	for _, p := range m.data.pods {
		if status != nil && p.Status != *status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) InsertMembership(ctx context.Context, ms *models.PodMembership) error {
	defer m.lock()()
	if _, ok := m.data.pods[ms.PodID]; !ok {
		return ErrNotFound
	}
	for _, other := range m.data.memberships {
		if other.PodID == ms.PodID && other.UserID == ms.UserID {
			return ErrConflict
		}
	}
	ms.JoinedAt = time.Now()
	m.data.memberships = append(m.data.memberships, *ms)
	return nil
}

func (m *Memory) GetMembership(ctx context.Context, podID int64, userID uuid.UUID) (*models.PodMembership, error) {
	defer m.lock()()
	for _, ms := range m.data.memberships {
		if ms.PodID == podID && ms.UserID == userID {
			return &ms, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetMembershipByCommitment(ctx context.Context, commitmentID int64) (*models.PodMembership, error) {
	defer m.lock()()
	for _, ms := range m.data.memberships {
		if ms.CommitmentID != nil && *ms.CommitmentID == commitmentID {
			return &ms, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateMembership(ctx context.Context, ms *models.PodMembership) error {
	defer m.lock()()
	for i := range m.data.memberships {
		if m.data.memberships[i].ID == ms.ID {
			m.data.memberships[i] = *ms
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) ListMemberships(ctx context.Context, podID int64) ([]models.PodMembership, error) {
	defer m.lock()()
	var out []models.PodMembership
	for _, ms := range m.data.memberships {
		if ms.PodID == podID {
			out = append(out, ms)
		}
	}
	return out, nil
}

// ============ Attestations ============

func (m *Memory) InsertAttestation(ctx context.Context, a *models.Attestation) error {
	defer m.lock()()
	if _, ok := m.data.commitments[a.CommitmentID]; !ok {
		return ErrNotFound
	}
	a.CreatedAt = time.Now()
	m.data.attestations = append(m.data.attestations, *a)
	return nil
}

func (m *Memory) ListAttestations(ctx context.Context, commitmentID int64) ([]models.Attestation, error) {
	defer m.lock()()
	var out []models.Attestation
	for i := len(m.data.attestations) - 1; i >= 0; i-- {
		if a := m.data.attestations[i]; a.CommitmentID == commitmentID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ============ Transactions ============

func (m *Memory) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	defer m.lock()()
	for _, other := range m.data.transactions {
		if other.Hash == t.Hash {
			return ErrConflict
		}
	}
	t.CreatedAt = time.Now()
	m.data.transactions = append(m.data.transactions, *t)
	return nil
}

func (m *Memory) GetTransactionByHash(ctx context.Context, hash string) (*models.Transaction, error) {
	defer m.lock()()
	for _, t := range m.data.transactions {
		if t.Hash == hash {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	defer m.lock()()
	for i := range m.data.transactions {
		if m.data.transactions[i].ID == t.ID {
			m.data.transactions[i] = *t
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) ListTransactions(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	defer m.lock()()
	var out []models.Transaction
	for i := len(m.data.transactions) - 1; i >= 0; i-- {
		t := m.data.transactions[i]
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// ============ Scholarship pool ============

func (d *memData) ensurePool() *models.ScholarshipPool {
	if d.pool == nil {
		d.pool = &models.ScholarshipPool{
			ID:               1,
			TotalContributed: decimal.Zero,
			TotalDistributed: decimal.Zero,
			CurrentBalance:   decimal.Zero,
			UpdatedAt:        time.Now(),
		}
	}
	return d.pool
}

func (m *Memory) GetScholarshipPool(ctx context.Context) (*models.ScholarshipPool, error) {
	defer m.lock()()
	p := *m.data.ensurePool()
	return &p, nil
}

func (m *Memory) CreditScholarshipPool(ctx context.Context, amount decimal.Decimal, at time.Time) (*models.ScholarshipPool, error) {
	defer m.lock()()
	pool := m.data.ensurePool()
	pool.TotalContributed = pool.TotalContributed.Add(amount)
	pool.CurrentBalance = pool.CurrentBalance.Add(amount)
	pool.TotalFailedCommitments++
	pool.UpdatedAt = at
	p := *pool
	return &p, nil
}
