package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studystake/coordinator/internal/chain"
	"github.com/studystake/coordinator/internal/models"
	"github.com/studystake/coordinator/internal/services"
	"github.com/studystake/coordinator/internal/storage"
)

type runLog struct {
	mu   sync.Mutex
	runs map[string][]error
}

func (r *runLog) JobRun(job string, d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = make(map[string][]error)
	}
	r.runs[job] = append(r.runs[job], err)
}

func TestScheduler_RunNow(t *testing.T) {
	rec := &runLog{}
	s := New(nil, rec)
	boom := errors.New("boom")

	require.NoError(t, s.Add(Job{Name: "ok", Spec: "@every 1h", Run: func(context.Context) error { return nil }}))
	require.NoError(t, s.Add(Job{Name: "bad", Spec: "@every 1h", Run: func(context.Context) error { return boom }}))

	assert.NoError(t, s.RunNow(context.Background(), "ok"))
	assert.ErrorIs(t, s.RunNow(context.Background(), "bad"), boom)
	assert.ErrorIs(t, s.RunNow(context.Background(), "missing"), ErrUnknownJob)

	assert.Equal(t, []error{nil}, rec.runs["ok"])
	assert.Equal(t, []error{boom}, rec.runs["bad"])
}

func TestScheduler_AddRejects(t *testing.T) {
	s := New(nil, nil)
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Add(Job{Name: "x", Spec: "not a spec", Run: noop}))
	require.NoError(t, s.Add(Job{Name: "x", Spec: "*/5 * * * *", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "x", Spec: "@every 1m", Run: noop}))
}

func TestScheduler_FiresAndStops(t *testing.T) {
	s := New(nil, nil)
	var runs atomic.Int32
	stopped := make(chan struct{})

	require.NoError(t, s.Add(Job{Name: "tick", Spec: "@every 1s", Run: func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			<-ctx.Done()
			close(stopped)
		}
		return nil
	}}))
	s.Start()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	select {
	case <-stopped:
	default:
		t.Fatal("running job was not cancelled")
	}
}

func TestExpireJob(t *testing.T) {
	ctx := context.Background()
	ledger := storage.NewMemory()
	calc := services.NewCalculator(storage.NewMemoryActivity(), nil)
	life := services.NewLifecycle(ledger, calc, nil, services.LifecycleOptions{})

	now := time.Now()
	overdue := &models.Commitment{
		UserID:      uuid.New(),
		Type:        models.CommitmentReading,
		Status:      models.CommitmentActive,
		StakeAmount: decimal.RequireFromString("2"),
		TargetValue: 5,
		StartDate:   now.AddDate(0, 0, -31),
		EndDate:     now.AddDate(0, 0, -1),
	}
	require.NoError(t, ledger.InsertCommitment(ctx, overdue))
	running := &models.Commitment{
		UserID:      uuid.New(),
		Type:        models.CommitmentReading,
		Status:      models.CommitmentActive,
		StakeAmount: decimal.RequireFromString("1"),
		TargetValue: 5,
		StartDate:   now,
		EndDate:     now.AddDate(0, 0, 30),
	}
	require.NoError(t, ledger.InsertCommitment(ctx, running))

	s := New(nil, nil)
	require.NoError(t, s.Add(ExpireJob("@hourly", life)))
	require.NoError(t, s.RunNow(ctx, "expire"))

	got, err := ledger.GetCommitment(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommitmentFailed, got.Status)

	got, err = ledger.GetCommitment(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommitmentActive, got.Status)

	pool, err := ledger.GetScholarshipPool(ctx)
	require.NoError(t, err)
	assert.True(t, pool.CurrentBalance.Equal(decimal.RequireFromString("2")))
}

func TestConfirmJobSkipsWithoutChain(t *testing.T) {
	ledger := storage.NewMemory()
	calc := services.NewCalculator(storage.NewMemoryActivity(), nil)
	life := services.NewLifecycle(ledger, calc, nil, services.LifecycleOptions{})

	client, err := chain.Dial(context.Background(), "", time.Second)
	require.NoError(t, err)

	s := New(nil, nil)
	require.NoError(t, s.Add(ConfirmJob("@every 1m", life, client, 10)))
	assert.NoError(t, s.RunNow(context.Background(), "confirm"))
}
