// Package goals models commitment targets as a closed set of typed variants.
//
// Every commitment type maps to exactly one Goal implementation, and callers
// dispatch with a type switch over the concrete variants instead of reading
// loosely typed criteria maps.
package goals

import (
	"fmt"

	"github.com/studystake/coordinator/internal/models"
)

// Goal is implemented only by the variants in this package
type Goal interface {
	Type() models.CommitmentType
	Target() int64
	sealed()
}

// Streak is met by TargetDays consecutive days with at least one activity
type Streak struct {
	Kind       models.CommitmentType
	TargetDays int64
}

// Reading is met by TargetItems reading attempts
type Reading struct {
	TargetItems int64
}

// Writing is met by TargetItems essay submissions
type Writing struct {
	TargetItems int64
}

// Custom has no automatic progress source
type Custom struct {
	TargetValue int64
}

func (g Streak) Type() models.CommitmentType  { return g.Kind }
func (g Reading) Type() models.CommitmentType { return models.CommitmentReading }
func (g Writing) Type() models.CommitmentType { return models.CommitmentWriting }
func (g Custom) Type() models.CommitmentType  { return models.CommitmentCustom }

func (g Streak) Target() int64  { return g.TargetDays }
func (g Reading) Target() int64 { return g.TargetItems }
func (g Writing) Target() int64 { return g.TargetItems }
func (g Custom) Target() int64  { return g.TargetValue }

func (Streak) sealed()  {}
func (Reading) sealed() {}
func (Writing) sealed() {}
func (Custom) sealed()  {}

// New builds the goal variant for a commitment type and target
func New(t models.CommitmentType, target int64) (Goal, error) {
	if target <= 0 {
		return nil, fmt.Errorf("target must be positive, got %d", target)
	}

	switch t {
	case models.CommitmentStreak7Day, models.CommitmentStreak30Day:
		return Streak{Kind: t, TargetDays: target}, nil
	case models.CommitmentReading:
		return Reading{TargetItems: target}, nil
	case models.CommitmentWriting:
		return Writing{TargetItems: target}, nil
	case models.CommitmentCustom:
		return Custom{TargetValue: target}, nil
	default:
		return nil, fmt.Errorf("unknown commitment type %q", t)
	}
}

// ForCommitment builds the goal variant of an existing commitment
func ForCommitment(c *models.Commitment) (Goal, error) {
	return New(c.Type, c.TargetValue)
}

// ActivityKinds lists the activity kinds whose records count as proof for g
func ActivityKinds(g Goal) []models.ActivityKind {
	switch g.(type) {
	case Reading:
		return []models.ActivityKind{models.ActivityReading}
	case Writing:
		return []models.ActivityKind{models.ActivityWriting}
	case Streak:
		return []models.ActivityKind{models.ActivityReading, models.ActivityWriting}
	case Custom:
		return nil
	}
	return nil
}

// DefaultDurationDays is the deadline suggested for a goal when none is given
func DefaultDurationDays(g Goal) int {
	switch v := g.(type) {
	case Streak:
		// one spare day on top of the streak length
		return int(v.TargetDays) + 1
	case Reading, Writing, Custom:
		return 30
	}
	return 30
}
