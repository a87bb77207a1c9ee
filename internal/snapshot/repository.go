package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested snapshot was not found.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one stored NAV/reserve breakdown keyed by UTC date.
type Snapshot struct {
	ID           int             `json:"id"`
	SnapshotDate time.Time       `json:"snapshotDate"`
	Data         json.RawMessage `json:"data"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Repository defines persistent storage for NAV snapshots.
type Repository interface {
	Save(ctx context.Context, date time.Time, data json.RawMessage) error
	GetLatest(ctx context.Context) (*Snapshot, error)
	GetByDate(ctx context.Context, date time.Time) (*Snapshot, error)
	List(ctx context.Context, limit int) ([]Snapshot, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL snapshot repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Save(ctx context.Context, date time.Time, data json.RawMessage) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO nav_snapshots (snapshot_date, data)
		 VALUES ($1, $2::jsonb)
		 ON CONFLICT (snapshot_date)
		 DO UPDATE SET data = $2::jsonb`,
		date, data)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

func (r *PgRepository) GetLatest(ctx context.Context) (*Snapshot, error) {
	var s Snapshot
	err := r.pool.QueryRow(ctx,
		`SELECT id, snapshot_date, data, created_at
		 FROM nav_snapshots
		 ORDER BY snapshot_date DESC
		 LIMIT 1`).Scan(&s.ID, &s.SnapshotDate, &s.Data, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting latest snapshot: %w", err)
	}
	return &s, nil
}

func (r *PgRepository) GetByDate(ctx context.Context, date time.Time) (*Snapshot, error) {
	var s Snapshot
	err := r.pool.QueryRow(ctx,
		`SELECT id, snapshot_date, data, created_at
		 FROM nav_snapshots
		 WHERE snapshot_date = $1`, date).Scan(&s.ID, &s.SnapshotDate, &s.Data, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting snapshot by date: %w", err)
	}
	return &s, nil
}

func (r *PgRepository) List(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, snapshot_date, data, created_at
		 FROM nav_snapshots
		 ORDER BY snapshot_date DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.SnapshotDate, &s.Data, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// MemoryRepository keeps snapshots in process, for tests and
// database-less deployments.
type MemoryRepository struct {
	mu     sync.RWMutex
	byDate map[string]Snapshot
	nextID int
}

// NewMemoryRepository creates an empty in-memory snapshot repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byDate: make(map[string]Snapshot), nextID: 1}
}

func dateKey(date time.Time) string {
	return date.UTC().Format("2006-01-02")
}

func (r *MemoryRepository) Save(_ context.Context, date time.Time, data json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := dateKey(date)
	if existing, ok := r.byDate[key]; ok {
		existing.Data = data
		r.byDate[key] = existing
		return nil
	}
	r.byDate[key] = Snapshot{
		ID:           r.nextID,
		SnapshotDate: date.UTC(),
		Data:         data,
		CreatedAt:    time.Now().UTC(),
	}
	r.nextID++
	return nil
}

func (r *MemoryRepository) sorted() []Snapshot {
	out := make([]Snapshot, 0, len(r.byDate))
	for _, s := range r.byDate {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotDate.After(out[j].SnapshotDate) })
	return out
}

func (r *MemoryRepository) GetLatest(_ context.Context) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.sorted()
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	s := all[0]
	return &s, nil
}

func (r *MemoryRepository) GetByDate(_ context.Context, date time.Time) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byDate[dateKey(date)]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) List(_ context.Context, limit int) ([]Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.sorted()
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
