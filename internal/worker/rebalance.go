package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rose-token/treasury/internal/treasury"
)

// Rebalancer defines the engine surface the watch loop drives.
type Rebalancer interface {
	NeedsRebalance(ctx context.Context) (bool, error)
	Rebalance(ctx context.Context, caller string) error
}

// RebalanceWorker periodically checks allocation drift and triggers a
// rebalance cycle when the threshold is exceeded.
type RebalanceWorker struct {
	engine   Rebalancer
	caller   string
	interval time.Duration
}

// NewRebalanceWorker creates a new RebalanceWorker acting as the given identity.
func NewRebalanceWorker(engine Rebalancer, caller string, interval time.Duration) *RebalanceWorker {
	return &RebalanceWorker{
		engine:   engine,
		caller:   caller,
		interval: interval,
	}
}

func (w *RebalanceWorker) tick(ctx context.Context) {
	needed, err := w.engine.NeedsRebalance(ctx)
	if err != nil {
		slog.Error("RebalanceWorker: drift check failed", "error", err)
		return
	}
	if !needed {
		return
	}
	err = w.engine.Rebalance(ctx, w.caller)
	switch {
	case err == nil:
		slog.Info("RebalanceWorker: rebalance completed")
	case errors.Is(err, treasury.ErrRebalanceCooldown),
		errors.Is(err, treasury.ErrRebalanceNotNeeded),
		errors.Is(err, treasury.ErrPaused):
		// Normal between cycles, the next tick retries.
		slog.Debug("RebalanceWorker: rebalance skipped", "reason", err)
	default:
		slog.Error("RebalanceWorker: rebalance failed", "error", err)
	}
}

// Run starts the rebalance watch loop. It blocks until the context is cancelled.
func (w *RebalanceWorker) Run(ctx context.Context) {
	slog.Info("RebalanceWorker: starting", "interval", w.interval)

	// Check immediately on startup
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("RebalanceWorker: shutting down")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}
