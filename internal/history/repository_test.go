package history

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rose-token/treasury/internal/domain"
)

func TestMemoryRepositoryListNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	types := []domain.EventType{domain.EventDeposit, domain.EventSwap, domain.EventRedeem}
	for _, typ := range types {
		if err := r.Record(ctx, domain.Event{Type: typ, AmountIn: decimal.NewFromInt(1)}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	events, err := r.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[0].Type != domain.EventRedeem || events[2].Type != domain.EventDeposit {
		t.Errorf("order = [%s %s %s], want newest first", events[0].Type, events[1].Type, events[2].Type)
	}
	if events[0].ID != 3 {
		t.Errorf("newest ID = %d, want 3", events[0].ID)
	}
}

func TestMemoryRepositoryListLimit(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	for range 5 {
		if err := r.Record(ctx, domain.Event{Type: domain.EventDeposit}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	events, err := r.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].ID != 5 || events[1].ID != 4 {
		t.Errorf("IDs = [%d %d], want [5 4]", events[0].ID, events[1].ID)
	}
}
