package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rose-token/treasury/internal/domain"
	"github.com/rose-token/treasury/internal/treasury"
)

type mockGenerator struct {
	callCount atomic.Int32
}

func (m *mockGenerator) Generate(_ context.Context, _ time.Time) (domain.VaultBreakdown, error) {
	m.callCount.Add(1)
	return domain.VaultBreakdown{}, nil
}

type mockHook struct {
	callCount atomic.Int32
}

func (m *mockHook) Export(_ context.Context, _ domain.VaultBreakdown) error {
	m.callCount.Add(1)
	return nil
}

func TestReportWorkerRunsAndShutdown(t *testing.T) {
	gen := &mockGenerator{}
	hook := &mockHook{}
	w := NewReportWorker(gen, 50*time.Millisecond, hook)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	if got := gen.callCount.Load(); got < 1 {
		t.Errorf("generate count = %d, want >= 1", got)
	}
	if got := hook.callCount.Load(); got < 1 {
		t.Errorf("hook count = %d, want >= 1", got)
	}
}

type mockRebalancer struct {
	needed       atomic.Bool
	checkCount   atomic.Int32
	triggerCount atomic.Int32
	err          error
}

func (m *mockRebalancer) NeedsRebalance(_ context.Context) (bool, error) {
	m.checkCount.Add(1)
	return m.needed.Load(), nil
}

func (m *mockRebalancer) Rebalance(_ context.Context, _ string) error {
	m.triggerCount.Add(1)
	return m.err
}

func TestRebalanceWorkerTriggersOnDrift(t *testing.T) {
	mock := &mockRebalancer{}
	mock.needed.Store(true)
	w := NewRebalanceWorker(mock, "keeper", 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	if got := mock.triggerCount.Load(); got < 1 {
		t.Errorf("trigger count = %d, want >= 1", got)
	}
}

func TestRebalanceWorkerSkipsWhenBalanced(t *testing.T) {
	mock := &mockRebalancer{}
	w := NewRebalanceWorker(mock, "keeper", 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	if got := mock.checkCount.Load(); got < 1 {
		t.Errorf("check count = %d, want >= 1", got)
	}
	if got := mock.triggerCount.Load(); got != 0 {
		t.Errorf("trigger count = %d on balanced vault, want 0", got)
	}
}

func TestRebalanceWorkerToleratesCooldown(t *testing.T) {
	mock := &mockRebalancer{err: treasury.ErrRebalanceCooldown}
	mock.needed.Store(true)
	w := NewRebalanceWorker(mock, "keeper", 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	// Must not panic or stop retrying; every tick checks again.
	w.Run(ctx)

	if got := mock.checkCount.Load(); got < 2 {
		t.Errorf("check count = %d, want >= 2", got)
	}
}
