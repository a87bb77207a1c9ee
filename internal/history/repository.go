package history

import (
	"context"
	"sync"

	"github.com/rose-token/treasury/internal/domain"
)

// Repository is the treasury operation journal.
type Repository interface {
	Record(ctx context.Context, e domain.Event) error
	List(ctx context.Context, limit int) ([]domain.Event, error)
}

// MemoryRepository keeps the journal in process, newest first on List.
type MemoryRepository struct {
	mu     sync.RWMutex
	events []domain.Event
	nextID int64
}

// NewMemoryRepository creates an empty in-memory journal.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1}
}

func (r *MemoryRepository) Record(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.nextID
	r.nextID++
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, limit int) ([]domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.events) {
		limit = len(r.events)
	}
	out := make([]domain.Event, 0, limit)
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.events[i])
	}
	return out, nil
}
