package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studystake/coordinator/internal/goals"
	"github.com/studystake/coordinator/internal/models"
)

func TestCalculator_Streak(t *testing.T) {
	tests := []struct {
		name       string
		startDays  int
		activeDays []int // days ago with activity
		want       int64
	}{
		{
			name:       "grace period for today",
			startDays:  3,
			activeDays: []int{3, 2, 1},
			want:       3,
		},
		{
			name:       "gap before today breaks streak",
			startDays:  4,
			activeDays: []int{4, 3, 2, 0},
			want:       0,
		},
		{
			name:       "full run including today",
			startDays:  6,
			activeDays: []int{6, 5, 4, 3, 2, 1, 0},
			want:       7,
		},
		{
			name:       "not capped by target",
			startDays:  9,
			activeDays: []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
			want:       10,
		},
		{
			name:       "missing first day",
			startDays:  2,
			activeDays: []int{1, 0},
			want:       0,
		},
		{
			name:      "started today without activity",
			startDays: 0,
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			userID := f.user(t)
			for i, d := range tt.activeDays {
				kind := models.ActivityReading
				if i%2 == 1 {
					kind = models.ActivityWriting
				}
				f.activity.Add(userID, kind, f.daysAgo(d))
			}

			g := goals.Streak{Kind: models.CommitmentStreak7Day, TargetDays: 7}
			got, err := f.calc.Compute(context.Background(), g, userID, f.daysAgo(tt.startDays), 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculator_CountGoalsAreCapped(t *testing.T) {
	f := newFixture(t)
	userID := f.user(t)
	start := f.daysAgo(5)

	for i := 0; i < 8; i++ {
		f.activity.Add(userID, models.ActivityReading, f.daysAgo(i%5))
	}
	for i := 0; i < 2; i++ {
		f.activity.Add(userID, models.ActivityWriting, f.daysAgo(1))
	}
	// before the commitment started
	f.activity.Add(userID, models.ActivityWriting, f.daysAgo(10))

	ctx := context.Background()

	got, err := f.calc.Compute(ctx, goals.Reading{TargetItems: 5}, userID, start, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)

	got, err = f.calc.Compute(ctx, goals.Reading{TargetItems: 20}, userID, start, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(8), got)

	got, err = f.calc.Compute(ctx, goals.Writing{TargetItems: 5}, userID, start, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestCalculator_CustomPassesThrough(t *testing.T) {
	f := newFixture(t)
	userID := f.user(t)
	f.activity.Add(userID, models.ActivityReading, f.daysAgo(0))

	got, err := f.calc.Compute(context.Background(), goals.Custom{TargetValue: 10}, userID, f.daysAgo(3), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)
}

func TestCalculator_Idempotent(t *testing.T) {
	f := newFixture(t)
	userID := f.user(t)
	for d := 4; d >= 1; d-- {
		f.activity.Add(userID, models.ActivityWriting, f.daysAgo(d))
	}

	g := goals.Streak{Kind: models.CommitmentStreak30Day, TargetDays: 30}
	first, err := f.calc.Compute(context.Background(), g, userID, f.daysAgo(4), 0)
	require.NoError(t, err)
	second, err := f.calc.Compute(context.Background(), g, userID, f.daysAgo(4), 0)
	require.NoError(t, err)

	assert.Equal(t, int64(4), first)
	assert.Equal(t, first, second)
}

func TestCalculator_ProofIDs(t *testing.T) {
	f := newFixture(t)
	userID := f.user(t)
	start := f.daysAgo(3)

	var reading, writing []int64
	for i := 0; i < 60; i++ {
		reading = append(reading, f.activity.Add(userID, models.ActivityReading, f.daysAgo(1)))
	}
	for i := 0; i < 3; i++ {
		writing = append(writing, f.activity.Add(userID, models.ActivityWriting, f.daysAgo(2)))
	}
	ctx := context.Background()

	ids, err := f.calc.ProofIDs(ctx, goals.Streak{Kind: models.CommitmentStreak7Day, TargetDays: 7}, userID, start, 100)
	require.NoError(t, err)
	assert.Len(t, ids, 53)
	assert.Equal(t, reading[:50], ids[:50])
	assert.Equal(t, writing, ids[50:])

	ids, err = f.calc.ProofIDs(ctx, goals.Reading{TargetItems: 5}, userID, start, 100)
	require.NoError(t, err)
	assert.Len(t, ids, 60)

	ids, err = f.calc.ProofIDs(ctx, goals.Custom{TargetValue: 5}, userID, start, 100)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCalculator_Daily(t *testing.T) {
	f := newFixture(t)
	userID := f.user(t)
	f.activity.Add(userID, models.ActivityReading, f.daysAgo(2))
	f.activity.Add(userID, models.ActivityWriting, f.daysAgo(0))

	days, err := f.calc.Daily(context.Background(), userID, f.daysAgo(2))
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.True(t, days[0].Reading)
	assert.True(t, days[0].Active)
	assert.False(t, days[1].Active)
	assert.True(t, days[2].Writing)
	assert.Equal(t, f.daysAgo(0).Format("2006-01-02"), days[2].Date)
}
