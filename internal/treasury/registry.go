package treasury

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/rose-token/treasury/internal/domain"
	"github.com/rose-token/treasury/internal/pricing"
	"github.com/rose-token/treasury/internal/token"
)

// AddAsset registers a reserve asset. Owner only. The allocation sum is not
// validated here: registry construction is a multi-call sequence, and
// ValidateAllocations is the separate read-only check.
func (e *Engine) AddAsset(ctx context.Context, caller string, meta domain.Asset, ledger token.Ledger, feed pricing.Feed) error {
	_ = ctx
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if meta.Key == "" {
		return fmt.Errorf("asset key is required")
	}
	if _, ok := e.index[meta.Key]; ok {
		return fmt.Errorf("%w: %s", ErrAssetAlreadyExists, meta.Key)
	}
	if meta.TargetBps < 0 || meta.TargetBps > domain.TotalBps {
		return fmt.Errorf("target allocation out of range: %d", meta.TargetBps)
	}

	// The value token's own entry is custodied on the value token ledger
	// and valued by the issuance ledger, never by an oracle feed.
	if meta.Key == e.cfg.RoseKey {
		ledger = e.rose
		feed = nil
	}
	if ledger == nil {
		return fmt.Errorf("asset %s: custody ledger is required", meta.Key)
	}
	if feed == nil && !meta.Pegged && meta.Key != e.cfg.RoseKey {
		return fmt.Errorf("asset %s: price feed is required for non-pegged assets", meta.Key)
	}

	meta.Active = true
	ent := &entry{meta: meta, ledger: ledger, feed: feed}
	e.entries = append(e.entries, ent)
	e.index[meta.Key] = ent
	slog.Info("asset registered", "key", meta.Key, "token", meta.Token, "targetBps", meta.TargetBps)
	return nil
}

// UpdateAssetAllocation changes one asset's target weight. Owner only.
func (e *Engine) UpdateAssetAllocation(ctx context.Context, caller string, key domain.AssetKey, newBps int64) error {
	_ = ctx
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	ent, err := e.entryByKey(key)
	if err != nil {
		return err
	}
	if newBps < 0 || newBps > domain.TotalBps {
		return fmt.Errorf("target allocation out of range: %d", newBps)
	}
	ent.meta.TargetBps = newBps
	slog.Info("asset allocation updated", "key", key, "targetBps", newBps)
	return nil
}

// DeactivateAsset excludes an asset from rebalancing targets and valuation.
// The custodied balance stays in place. The stable asset and the value
// token's entry are structurally required and can never be toggled.
func (e *Engine) DeactivateAsset(ctx context.Context, caller string, key domain.AssetKey) error {
	return e.setActive(ctx, caller, key, false)
}

// ReactivateAsset re-includes a previously deactivated asset.
func (e *Engine) ReactivateAsset(ctx context.Context, caller string, key domain.AssetKey) error {
	return e.setActive(ctx, caller, key, true)
}

func (e *Engine) setActive(_ context.Context, caller string, key domain.AssetKey, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	ent, err := e.entryByKey(key)
	if err != nil {
		return err
	}
	if key == e.cfg.StableKey || key == e.cfg.RoseKey {
		return fmt.Errorf("%w: %s", ErrCannotDeactivateRequired, key)
	}
	ent.meta.Active = active
	slog.Info("asset active flag changed", "key", key, "active", active)
	return nil
}

// AllAssets returns every registered asset in insertion order.
func (e *Engine) AllAssets() []domain.Asset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo.Map(e.entries, func(ent *entry, _ int) domain.Asset { return ent.meta })
}

// ValidateAllocations reports whether the active assets' target weights sum
// to exactly 10000 bps.
func (e *Engine) ValidateAllocations() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	sum := lo.Reduce(e.entries, func(acc int64, ent *entry, _ int) int64 {
		if !ent.meta.Active {
			return acc
		}
		return acc + ent.meta.TargetBps
	}, int64(0))
	return sum == domain.TotalBps
}
