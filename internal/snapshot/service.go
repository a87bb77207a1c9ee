package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rose-token/treasury/internal/domain"
)

// BreakdownSource produces the current reserve valuation.
type BreakdownSource interface {
	VaultBreakdown(ctx context.Context) (domain.VaultBreakdown, error)
}

// Service manages NAV snapshot generation and retrieval.
type Service struct {
	source BreakdownSource
	repo   Repository
}

// NewService creates a snapshot Service.
func NewService(source BreakdownSource, repo Repository) *Service {
	if source == nil {
		panic("snapshot.NewService: source is nil")
	}
	if repo == nil {
		panic("snapshot.NewService: repo is nil")
	}
	return &Service{source: source, repo: repo}
}

// Generate values the reserve and stores the breakdown under the given date.
func (s *Service) Generate(ctx context.Context, date time.Time) (domain.VaultBreakdown, error) {
	b, err := s.source.VaultBreakdown(ctx)
	if err != nil {
		return domain.VaultBreakdown{}, fmt.Errorf("valuing reserve: %w", err)
	}

	data, err := json.Marshal(b)
	if err != nil {
		return domain.VaultBreakdown{}, fmt.Errorf("marshaling breakdown: %w", err)
	}
	if err := s.repo.Save(ctx, date, data); err != nil {
		return domain.VaultBreakdown{}, fmt.Errorf("saving snapshot: %w", err)
	}
	return b, nil
}

// GetLatest retrieves the most recent snapshot.
func (s *Service) GetLatest(ctx context.Context) (*Snapshot, error) {
	return s.repo.GetLatest(ctx)
}

// GetByDate retrieves a snapshot for a specific date.
func (s *Service) GetByDate(ctx context.Context, date time.Time) (*Snapshot, error) {
	return s.repo.GetByDate(ctx, date)
}

// List retrieves up to limit snapshots, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Snapshot, error) {
	return s.repo.List(ctx, limit)
}
