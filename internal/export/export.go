package export

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rose-token/treasury/internal/domain"
)

// Writer persists a reserve breakdown to an external destination.
type Writer interface {
	Write(ctx context.Context, b domain.VaultBreakdown) error
}

// Service fans a reserve breakdown out to all configured writers.
// Implements worker.AfterSnapshotHook.
type Service struct {
	writers []Writer
}

// NewService creates a new export Service.
func NewService(writers ...Writer) *Service {
	return &Service{writers: writers}
}

// Export writes the breakdown to every destination. All writers are tried;
// their errors are joined.
func (s *Service) Export(ctx context.Context, b domain.VaultBreakdown) error {
	var errs []error
	for _, w := range s.writers {
		if err := w.Write(ctx, b); err != nil {
			slog.Warn("export writer failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
