package treasury

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/rose-token/treasury/internal/domain"
	"github.com/rose-token/treasury/internal/pricing"
)

var oneUSD = decimal.NewFromInt(1)

// feedPrice fetches the latest oracle observation for an entry and rejects
// stale or non-positive prices. Valuation never substitutes a default: a
// bad feed fails the whole read.
func (e *Engine) feedPrice(ctx context.Context, ent *entry) (decimal.Decimal, error) {
	p, err := ent.feed.LatestPrice(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching price for %s: %w", ent.meta.Key, err)
	}
	if age := e.now().Sub(p.UpdatedAt); age > e.cfg.PriceMaxAge {
		return decimal.Zero, fmt.Errorf("%w: %s (age %s)", pricing.ErrStalePrice, ent.meta.Key, age)
	}
	if !p.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price for %s: %s", ent.meta.Key, p.Price)
	}
	return p.Price, nil
}

// entryPriceUSD resolves one asset's USD price. Pegged assets are a
// constant 1.00; the value token's entry is valued by the issuance ledger
// at the supplied NAV price; everything else queries its feed.
func (e *Engine) entryPriceUSD(ctx context.Context, ent *entry, rosePrice decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case ent.meta.Key == e.cfg.RoseKey:
		return rosePrice, nil
	case ent.meta.Pegged:
		return oneUSD, nil
	default:
		return e.feedPrice(ctx, ent)
	}
}

func (e *Engine) assetDecimals(key domain.AssetKey) int32 {
	if ent, ok := e.index[key]; ok {
		return ent.meta.Decimals
	}
	return 0
}

// circulatingSupplyLocked is total issued supply minus the engine's own
// value-token holding, normalized to human scale. Engine-held tokens are
// un-issued reserve, not liabilities.
func (e *Engine) circulatingSupplyLocked(ctx context.Context) (decimal.Decimal, error) {
	total, err := e.rose.TotalSupply(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading value token supply: %w", err)
	}
	held, err := e.rose.BalanceOf(ctx, e.cfg.EngineAccount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading engine value token balance: %w", err)
	}
	return domain.Normalize(total.Sub(held), e.assetDecimals(e.cfg.RoseKey)), nil
}

// hardAssetValueUSDLocked sums every active asset's normalized balance
// times its USD price, excluding the value token's own reserve entry.
func (e *Engine) hardAssetValueUSDLocked(ctx context.Context) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, ent := range e.entries {
		if !ent.meta.Active || ent.meta.Key == e.cfg.RoseKey {
			continue
		}
		bal, err := ent.ledger.BalanceOf(ctx, e.cfg.EngineAccount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("reading balance of %s: %w", ent.meta.Key, err)
		}
		price, err := e.entryPriceUSD(ctx, ent, decimal.Zero)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(domain.Normalize(bal, ent.meta.Decimals).Mul(price))
	}
	return sum, nil
}

// rosePriceLocked is the NAV per token: hard asset value over circulating
// supply, defined as exactly 1.00 USD at zero supply.
func (e *Engine) rosePriceLocked(ctx context.Context) (decimal.Decimal, error) {
	circ, err := e.circulatingSupplyLocked(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if circ.IsZero() {
		return oneUSD, nil
	}
	hard, err := e.hardAssetValueUSDLocked(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return hard.Div(circ), nil
}

// HardAssetValueUSD returns the USD value of all active non-value-token
// reserve holdings.
func (e *Engine) HardAssetValueUSD(ctx context.Context) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hardAssetValueUSDLocked(ctx)
}

// CirculatingSupply returns issued supply outside the engine's custody.
func (e *Engine) CirculatingSupply(ctx context.Context) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.circulatingSupplyLocked(ctx)
}

// RosePrice returns the current NAV per value token.
func (e *Engine) RosePrice(ctx context.Context) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rosePriceLocked(ctx)
}

// AssetBreakdown returns token, balance and USD value for one asset.
func (e *Engine) AssetBreakdown(ctx context.Context, key domain.AssetKey) (domain.AssetBreakdown, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, err := e.entryByKey(key)
	if err != nil {
		return domain.AssetBreakdown{}, err
	}
	rosePrice, err := e.rosePriceLocked(ctx)
	if err != nil {
		return domain.AssetBreakdown{}, err
	}
	bal, err := ent.ledger.BalanceOf(ctx, e.cfg.EngineAccount)
	if err != nil {
		return domain.AssetBreakdown{}, fmt.Errorf("reading balance of %s: %w", key, err)
	}
	price, err := e.entryPriceUSD(ctx, ent, rosePrice)
	if err != nil {
		return domain.AssetBreakdown{}, err
	}
	norm := domain.Normalize(bal, ent.meta.Decimals)
	return domain.AssetBreakdown{
		Key:        ent.meta.Key,
		Token:      ent.meta.Token,
		Balance:    bal,
		Normalized: norm,
		PriceUSD:   price,
		ValueUSD:   norm.Mul(price),
		TargetBps:  ent.meta.TargetBps,
		Active:     ent.meta.Active,
	}, nil
}

// VaultBreakdown returns the full reserve valuation.
func (e *Engine) VaultBreakdown(ctx context.Context) (domain.VaultBreakdown, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.breakdownLocked(ctx)
}

// breakdownLocked values every entry in insertion order. Inactive assets are
// listed with their custodied balance but excluded from totals and shares.
func (e *Engine) breakdownLocked(ctx context.Context) (domain.VaultBreakdown, error) {
	rosePrice, err := e.rosePriceLocked(ctx)
	if err != nil {
		return domain.VaultBreakdown{}, err
	}
	circ, err := e.circulatingSupplyLocked(ctx)
	if err != nil {
		return domain.VaultBreakdown{}, err
	}

	hard := decimal.Zero
	total := decimal.Zero
	assets := make([]domain.AssetBreakdown, 0, len(e.entries))
	for _, ent := range e.entries {
		bal, err := ent.ledger.BalanceOf(ctx, e.cfg.EngineAccount)
		if err != nil {
			return domain.VaultBreakdown{}, fmt.Errorf("reading balance of %s: %w", ent.meta.Key, err)
		}
		ab := domain.AssetBreakdown{
			Key:        ent.meta.Key,
			Token:      ent.meta.Token,
			Balance:    bal,
			Normalized: domain.Normalize(bal, ent.meta.Decimals),
			TargetBps:  ent.meta.TargetBps,
			Active:     ent.meta.Active,
		}
		if ent.meta.Active {
			price, err := e.entryPriceUSD(ctx, ent, rosePrice)
			if err != nil {
				return domain.VaultBreakdown{}, err
			}
			ab.PriceUSD = price
			ab.ValueUSD = ab.Normalized.Mul(price)
			total = total.Add(ab.ValueUSD)
			if ent.meta.Key != e.cfg.RoseKey {
				hard = hard.Add(ab.ValueUSD)
			}
		}
		assets = append(assets, ab)
	}

	for i := range assets {
		if assets[i].Active {
			assets[i].ShareBps = domain.ShareBps(assets[i].ValueUSD, total)
		}
	}

	return domain.VaultBreakdown{
		Assets:            assets,
		HardAssetsUSD:     hard,
		TotalUSD:          total,
		Price:             rosePrice,
		CirculatingSupply: circ,
		RebalanceNeeded:   e.anyDrift(assets, total),
		GeneratedAt:       e.now(),
	}, nil
}

// anyDrift reports whether any active asset's value share drifts from its
// target weight by more than the configured threshold. An empty vault has
// no drift: there is nothing to move.
func (e *Engine) anyDrift(assets []domain.AssetBreakdown, total decimal.Decimal) bool {
	if total.IsZero() {
		return false
	}
	threshold := decimal.NewFromInt(e.cfg.DriftThresholdBps)
	return lo.SomeBy(assets, func(ab domain.AssetBreakdown) bool {
		if !ab.Active {
			return false
		}
		target := decimal.NewFromInt(ab.TargetBps)
		return ab.ShareBps.Sub(target).Abs().GreaterThan(threshold)
	})
}
