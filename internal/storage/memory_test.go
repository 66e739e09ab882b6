package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studystake/coordinator/internal/models"
)

func newCommitment(userID uuid.UUID) *models.Commitment {
	now := time.Now()
	return &models.Commitment{
		UserID:      userID,
		Type:        models.CommitmentReading,
		Status:      models.CommitmentActive,
		StakeAmount: decimal.RequireFromString("1"),
		TargetValue: 5,
		StartDate:   now,
		EndDate:     now.AddDate(0, 0, 30),
	}
}

func TestMemory_InTxRollsBackOnError(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	userID := uuid.New()

	boom := errors.New("boom")
	err := m.InTx(ctx, func(tx Store) error {
		require.NoError(t, tx.InsertCommitment(ctx, newCommitment(userID)))
		_, err := tx.CreditScholarshipPool(ctx, decimal.RequireFromString("3"), time.Now())
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	list, err := m.ListCommitments(ctx, CommitmentFilter{UserID: &userID})
	require.NoError(t, err)
	assert.Empty(t, list)

	pool, err := m.GetScholarshipPool(ctx)
	require.NoError(t, err)
	assert.True(t, pool.CurrentBalance.IsZero())
}

func TestMemory_InTxCommits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	userID := uuid.New()

	var id int64
	err := m.InTx(ctx, func(tx Store) error {
		c := newCommitment(userID)
		if err := tx.InsertCommitment(ctx, c); err != nil {
			return err
		}
		id = c.ID
		return nil
	})
	require.NoError(t, err)

	got, err := m.GetCommitment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
}

func TestMemory_RaiseProgress(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	c := newCommitment(uuid.New())
	require.NoError(t, m.InsertCommitment(ctx, c))

	raised, err := m.RaiseProgress(ctx, c.ID, 3, time.Now())
	require.NoError(t, err)
	assert.True(t, raised)

	raised, err = m.RaiseProgress(ctx, c.ID, 3, time.Now())
	require.NoError(t, err)
	assert.False(t, raised)

	c.Status = models.CommitmentFailed
	c.CurrentProgress = 3
	require.NoError(t, m.UpdateCommitment(ctx, c))

	raised, err = m.RaiseProgress(ctx, c.ID, 5, time.Now())
	require.NoError(t, err)
	assert.False(t, raised)
}

func TestMemory_Constraints(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	u := &models.User{ID: uuid.New(), Email: "a@example.com"}
	require.NoError(t, m.CreateUser(ctx, u))
	assert.ErrorIs(t, m.CreateUser(ctx, &models.User{ID: uuid.New(), Email: "a@example.com"}), ErrConflict)

	_, err := m.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	pod := &models.Pod{Name: "p", Status: models.PodOpen, MaxMembers: 2}
	require.NoError(t, m.InsertPod(ctx, pod))
	ms := &models.PodMembership{ID: uuid.New(), PodID: pod.ID, UserID: u.ID, IsActive: true}
	require.NoError(t, m.InsertMembership(ctx, ms))
	assert.ErrorIs(t, m.InsertMembership(ctx, &models.PodMembership{ID: uuid.New(), PodID: pod.ID, UserID: u.ID}), ErrConflict)

	tx := &models.Transaction{ID: uuid.New(), UserID: u.ID, Hash: "0x1", Status: models.TransactionPending}
	require.NoError(t, m.InsertTransaction(ctx, tx))
	assert.ErrorIs(t, m.InsertTransaction(ctx, &models.Transaction{ID: uuid.New(), Hash: "0x1"}), ErrConflict)
}

func TestMemory_ListOrdering(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.InsertCommitment(ctx, newCommitment(userID)))
		require.NoError(t, m.InsertTransaction(ctx, &models.Transaction{
			ID: uuid.New(), UserID: userID, Hash: uuid.NewString(), Status: models.TransactionPending,
		}))
	}

	list, err := m.ListCommitments(ctx, CommitmentFilter{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(3), list[0].ID)

	txs, err := m.ListTransactions(ctx, TransactionFilter{UserID: &userID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	past := time.Now().AddDate(0, 0, 31)
	expired, err := m.ListCommitments(ctx, CommitmentFilter{EndBefore: &past})
	require.NoError(t, err)
	assert.Len(t, expired, 3)
}

func TestMemoryActivity(t *testing.T) {
	a := NewMemoryActivity()
	ctx := context.Background()
	userID := uuid.New()
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	first := a.Add(userID, models.ActivityReading, day.Add(23*time.Hour))
	a.Add(userID, models.ActivityReading, day.Add(25*time.Hour))
	a.Add(uuid.New(), models.ActivityReading, day.Add(time.Hour))

	has, err := a.HasActivityOn(ctx, userID, models.ActivityReading, day.Add(5*time.Hour))
	require.NoError(t, err)
	assert.True(t, has)

	has, err = a.HasActivityOn(ctx, userID, models.ActivityWriting, day)
	require.NoError(t, err)
	assert.False(t, has)

	n, err := a.CountSince(ctx, userID, models.ActivityReading, day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ids, err := a.ActivityIDs(ctx, userID, models.ActivityReading, day, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{first}, ids)
}

func TestDayStart(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	got := DayStart(time.Date(2024, 6, 11, 2, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), got)
}
