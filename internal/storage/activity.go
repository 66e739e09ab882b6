package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/studystake/coordinator/internal/models"
)

// ActivitySource is the read-only feed of dated learning activity.
// Day arguments are interpreted as the UTC calendar day containing them.
type ActivitySource interface {
	// CountSince counts a user's records of kind at or after since
	CountSince(ctx context.Context, userID uuid.UUID, kind models.ActivityKind, since time.Time) (int64, error)
	// HasActivityOn reports whether the user has at least one record of kind on day
	HasActivityOn(ctx context.Context, userID uuid.UUID, kind models.ActivityKind, day time.Time) (bool, error)
	// ActivityIDs lists up to limit record IDs of kind at or after since, oldest first
	ActivityIDs(ctx context.Context, userID uuid.UUID, kind models.ActivityKind, since time.Time, limit int) ([]int64, error)
}

// DayStart truncates t to 00:00 UTC of its calendar day
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type activityTable struct {
	name   string
	column string
}

var activityTables = map[models.ActivityKind]activityTable{
	models.ActivityReading: {name: "reading_attempts", column: "attempted_at"},
	models.ActivityWriting: {name: "essays", column: "created_at"},
}

func tableFor(kind models.ActivityKind) (activityTable, error) {
	t, ok := activityTables[kind]
	if !ok {
		return activityTable{}, fmt.Errorf("unknown activity kind %q", kind)
	}
	return t, nil
}

// PgActivity reads activity from the practice tables
type PgActivity struct {
	db *DB
}

// NewPgActivity creates an activity source over the connection pool
func NewPgActivity(db *DB) *PgActivity {
	return &PgActivity{db: db}
}

func (a *PgActivity) CountSince(ctx context.Context, userID uuid.UUID, kind models.ActivityKind, since time.Time) (int64, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	var count int64
	err = a.db.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE user_id = $1 AND %s >= $2", t.name, t.column),
		userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s activity: %w", kind, err)
	}
	return count, nil
}

func (a *PgActivity) HasActivityOn(ctx context.Context, userID uuid.UUID, kind models.ActivityKind, day time.Time) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}

	start := DayStart(day)
	var exists bool
	err = a.db.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE user_id = $1 AND %s >= $2 AND %s < $3)",
			t.name, t.column, t.column),
		userID, start, start.AddDate(0, 0, 1)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s activity: %w", kind, err)
	}
	return exists, nil
}

func (a *PgActivity) ActivityIDs(ctx context.Context, userID uuid.UUID, kind models.ActivityKind, since time.Time, limit int) ([]int64, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := a.db.Pool.Query(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE user_id = $1 AND %s >= $2 ORDER BY %s, id LIMIT $3",
			t.name, t.column, t.column),
		userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s activity: %w", kind, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type activityRecord struct {
	id     int64
	userID uuid.UUID
	kind   models.ActivityKind
	at     time.Time
}

// MemoryActivity is an in-process ActivitySource
type MemoryActivity struct {
	mu      sync.RWMutex
	records []activityRecord
	nextID  int64
}

// NewMemoryActivity creates an empty activity feed
func NewMemoryActivity() *MemoryActivity {
	return &MemoryActivity{nextID: 1}
}

// Add records one activity and returns its ID
func (a *MemoryActivity) Add(userID uuid.UUID, kind models.ActivityKind, at time.Time) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.records = append(a.records, activityRecord{id: id, userID: userID, kind: kind, at: at})
	return id
}

func (a *MemoryActivity) CountSince(ctx context.Context, userID uuid.UUID, kind models.ActivityKind, since time.Time) (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var n int64
	for _, r := range a.records {
		if r.userID == userID && r.kind == kind && !r.at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (a *MemoryActivity) HasActivityOn(ctx context.Context, userID uuid.UUID, kind models.ActivityKind, day time.Time) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	start := DayStart(day)
	end := start.AddDate(0, 0, 1)
	for _, r := range a.records {
		if r.userID == userID && r.kind == kind && !r.at.Before(start) && r.at.Before(end) {
			return true, nil
		}
	}
	return false, nil
}

func (a *MemoryActivity) ActivityIDs(ctx context.Context, userID uuid.UUID, kind models.ActivityKind, since time.Time, limit int) ([]int64, error) {
	a.mu.RLock()
	var matched []activityRecord
	for _, r := range a.records {
		if r.userID == userID && r.kind == kind && !r.at.Before(since) {
			matched = append(matched, r)
		}
	}
	a.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].at.Before(matched[j].at) })

	var ids []int64
	for _, r := range matched {
		if len(ids) == limit {
			break
		}
		ids = append(ids, r.id)
	}
	return ids, nil
}
