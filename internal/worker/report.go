package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/rose-token/treasury/internal/domain"
)

// SnapshotGenerator defines the interface for generating NAV snapshots.
type SnapshotGenerator interface {
	Generate(ctx context.Context, date time.Time) (domain.VaultBreakdown, error)
}

// AfterSnapshotHook is called after each successful snapshot generation.
type AfterSnapshotHook interface {
	Export(ctx context.Context, b domain.VaultBreakdown) error
}

// ReportWorker periodically stores NAV snapshots of the reserve.
type ReportWorker struct {
	generator SnapshotGenerator
	interval  time.Duration
	hook      AfterSnapshotHook // optional
}

// NewReportWorker creates a new ReportWorker with an optional post-generation hook.
func NewReportWorker(generator SnapshotGenerator, interval time.Duration, hook AfterSnapshotHook) *ReportWorker {
	return &ReportWorker{
		generator: generator,
		interval:  interval,
		hook:      hook,
	}
}

func (w *ReportWorker) runHook(ctx context.Context, b domain.VaultBreakdown) {
	if w.hook == nil {
		return
	}
	if err := w.hook.Export(ctx, b); err != nil {
		slog.Error("ReportWorker: export hook failed", "error", err)
	} else {
		slog.Info("ReportWorker: export hook completed")
	}
}

// utcDate returns the current date normalized to midnight UTC.
func utcDate() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Run starts the report worker loop. It blocks until the context is cancelled.
func (w *ReportWorker) Run(ctx context.Context) {
	slog.Info("ReportWorker: starting")

	// Generate immediately on startup
	if b, err := w.generator.Generate(ctx, utcDate()); err != nil {
		slog.Error("ReportWorker: initial generation failed", "error", err)
	} else {
		slog.Info("ReportWorker: initial generation completed", "price", domain.FormatUSD(b.Price))
		w.runHook(ctx, b)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ReportWorker: shutting down")
			return
		case <-ticker.C:
			if b, err := w.generator.Generate(ctx, utcDate()); err != nil {
				slog.Error("ReportWorker: generation failed", "error", err)
			} else {
				slog.Info("ReportWorker: generation completed", "price", domain.FormatUSD(b.Price))
				w.runHook(ctx, b)
			}
		}
	}
}
