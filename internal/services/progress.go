package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/studystake/coordinator/internal/goals"
	"github.com/studystake/coordinator/internal/models"
	"github.com/studystake/coordinator/internal/storage"
)

// DayActivity is one calendar day of a commitment's activity breakdown
type DayActivity struct {
	Date    string `json:"date"`
	Reading bool   `json:"reading"`
	Writing bool   `json:"writing"`
	Active  bool   `json:"active"`
}

// Calculator derives commitment progress from the activity feed
type Calculator struct {
	activity storage.ActivitySource
	now      func() time.Time
}

// NewCalculator creates a progress calculator. now defaults to time.Now.
func NewCalculator(activity storage.ActivitySource, now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{activity: activity, now: now}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
}

// Compute returns the progress g has reached since start. Custom goals have
// no activity source and return stored unchanged.
func (c *Calculator) Compute(ctx context.Context, g goals.Goal, userID uuid.UUID, start time.Time, stored int64) (int64, error) {
	switch v := g.(type) {
	case goals.Streak:
		return c.streak(ctx, userID, start)
	case goals.Reading:
		return c.capped(ctx, userID, models.ActivityReading, start, v.TargetItems)
	case goals.Writing:
		return c.capped(ctx, userID, models.ActivityWriting, start, v.TargetItems)
	case goals.Custom:
		return stored, nil
	}
	return stored, nil
}

// ForCommitment computes the live progress of a stored commitment
func (c *Calculator) ForCommitment(ctx context.Context, cm *models.Commitment) (int64, error) {
	g, err := goals.ForCommitment(cm)
	if err != nil {
		return 0, err
	}
	return c.Compute(ctx, g, cm.UserID, cm.StartDate, cm.CurrentProgress)
}

func (c *Calculator) capped(ctx context.Context, userID uuid.UUID, kind models.ActivityKind, start time.Time, target int64) (int64, error) {
	n, err := c.activity.CountSince(ctx, userID, kind, start)
	if err != nil {
		return 0, unavailable(err)
	}
	return min(n, target), nil
}

func (c *Calculator) activeOn(ctx context.Context, userID uuid.UUID, day time.Time) (reading, writing bool, err error) {
	reading, err = c.activity.HasActivityOn(ctx, userID, models.ActivityReading, day)
	if err != nil {
		return false, false, unavailable(err)
	}
	if reading {
		return true, false, nil
	}
	writing, err = c.activity.HasActivityOn(ctx, userID, models.ActivityWriting, day)
	if err != nil {
		return false, false, unavailable(err)
	}
	return false, writing, nil
}

// streak counts active days from start through today. A missing day before
// today resets the streak to zero; a missing today is still in grace.
func (c *Calculator) streak(ctx context.Context, userID uuid.UUID, start time.Time) (int64, error) {
	today := storage.DayStart(c.now())

	var days int64
	for day := storage.DayStart(start); !day.After(today); day = day.AddDate(0, 0, 1) {
		reading, writing, err := c.activeOn(ctx, userID, day)
		if err != nil {
			return 0, err
		}
		if reading || writing {
			days++
			continue
		}
		if day.Equal(today) {
			break
		}
		return 0, nil
	}
	return days, nil
}

// ProofIDs collects the activity records backing g's progress, at most limit
// in total. Streaks split the limit evenly between reading and writing.
func (c *Calculator) ProofIDs(ctx context.Context, g goals.Goal, userID uuid.UUID, start time.Time, limit int) ([]int64, error) {
	kinds := goals.ActivityKinds(g)
	if len(kinds) == 0 {
		return []int64{}, nil
	}

	per := limit / len(kinds)
	ids := []int64{}
	for _, kind := range kinds {
		found, err := c.activity.ActivityIDs(ctx, userID, kind, start, per)
		if err != nil {
			return nil, unavailable(err)
		}
		ids = append(ids, found...)
	}
	return ids, nil
}

// Daily lists every day from start through today with its activity flags
func (c *Calculator) Daily(ctx context.Context, userID uuid.UUID, start time.Time) ([]DayActivity, error) {
	today := storage.DayStart(c.now())

	var out []DayActivity
	for day := storage.DayStart(start); !day.After(today); day = day.AddDate(0, 0, 1) {
		reading, err := c.activity.HasActivityOn(ctx, userID, models.ActivityReading, day)
		if err != nil {
			return nil, unavailable(err)
		}
		writing, err := c.activity.HasActivityOn(ctx, userID, models.ActivityWriting, day)
		if err != nil {
			return nil, unavailable(err)
		}
		out = append(out, DayActivity{
			Date:    day.Format("2006-01-02"),
			Reading: reading,
			Writing: writing,
			Active:  reading || writing,
		})
	}
	return out, nil
}
