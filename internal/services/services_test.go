package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/studystake/coordinator/internal/models"
	"github.com/studystake/coordinator/internal/signer"
	"github.com/studystake/coordinator/internal/storage"
)

const testSignerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *clock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

type fixture struct {
	ledger   *storage.Memory
	activity *storage.MemoryActivity
	clock    *clock
	signer   *signer.Signer
	calc     *Calculator
	life     *Lifecycle
	orch     *Orchestrator
	accounts *AccountService

	wallets int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithSigner(t, testSignerKey)
}

func newFixtureWithSigner(t *testing.T, key string) *fixture {
	t.Helper()

	s, err := signer.New(key)
	require.NoError(t, err)

	f := &fixture{
		ledger:   storage.NewMemory(),
		activity: storage.NewMemoryActivity(),
		clock:    &clock{t: time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)},
		signer:   s,
	}
	f.calc = NewCalculator(f.activity, f.clock.Now)
	f.life = NewLifecycle(f.ledger, f.calc, nil, LifecycleOptions{Now: f.clock.Now})
	f.orch = NewOrchestrator(f.ledger, f.calc, f.signer, f.life, nil, OrchestratorOptions{
		Now:          f.clock.Now,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})
	f.accounts = NewAccountService(f.ledger, nil, nil)
	return f
}

func (f *fixture) user(t *testing.T) uuid.UUID {
	t.Helper()
	u := &models.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", PasswordHash: "x"}
	require.NoError(t, f.ledger.CreateUser(context.Background(), u))
	return u.ID
}

func (f *fixture) userWithWallet(t *testing.T) uuid.UUID {
	t.Helper()
	id := f.user(t)
	f.wallets++
	_, err := f.accounts.ConnectWallet(context.Background(), id, ConnectWalletRequest{
		Address: fmt.Sprintf("0x%040x", f.wallets),
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) commitment(t *testing.T, userID uuid.UUID, kind models.CommitmentType, target int64, stake string) *models.Commitment {
	t.Helper()
	c, err := f.life.CreateCommitment(context.Background(), userID, CreateCommitmentRequest{
		Type:        kind,
		StakeAmount: decimal.RequireFromString(stake),
		TargetValue: target,
	})
	require.NoError(t, err)
	return c
}

// daysAgo returns noon of the UTC day n days before the fixture clock
func (f *fixture) daysAgo(n int) time.Time {
	return storage.DayStart(f.clock.Now()).AddDate(0, 0, -n).Add(12 * time.Hour)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
