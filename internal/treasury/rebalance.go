package treasury

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/rose-token/treasury/internal/domain"
)

// NeedsRebalance reports whether any active asset's value share drifts from
// its target weight by more than the configured threshold.
func (e *Engine) NeedsRebalance(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.breakdownLocked(ctx)
	if err != nil {
		return false, err
	}
	return b.RebalanceNeeded, nil
}

// Rebalance moves reserve composition back to target weights. The trigger
// is intentionally permissionless: rebalancing benefits the whole system,
// and the cooldown window prevents oscillation from repeated tiny triggers.
func (e *Engine) Rebalance(ctx context.Context, caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireNotPaused(); err != nil {
		return err
	}
	b, err := e.breakdownLocked(ctx)
	if err != nil {
		return err
	}
	if !b.RebalanceNeeded {
		return ErrRebalanceNotNeeded
	}
	if err := e.checkRebalanceCooldown(); err != nil {
		return err
	}
	return e.executeRebalanceLocked(ctx, caller, b)
}

// ForceRebalance bypasses the drift-threshold check. Rebalancer or owner
// only. Whether the cooldown window still applies is an explicit
// configuration choice (ForceRespectsCooldown).
func (e *Engine) ForceRebalance(ctx context.Context, caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireRebalancer(caller); err != nil {
		return err
	}
	if err := e.requireNotPaused(); err != nil {
		return err
	}
	if e.cfg.ForceRespectsCooldown {
		if err := e.checkRebalanceCooldown(); err != nil {
			return err
		}
	}
	b, err := e.breakdownLocked(ctx)
	if err != nil {
		return err
	}
	return e.executeRebalanceLocked(ctx, caller, b)
}

func (e *Engine) checkRebalanceCooldown() error {
	if e.lastRebalance.IsZero() {
		return nil
	}
	if remaining := e.cfg.RebalanceCooldown - e.now().Sub(e.lastRebalance); remaining > 0 {
		return fmt.Errorf("%w: %s remaining", ErrRebalanceCooldown, remaining)
	}
	return nil
}

// rebalanceLeg is one planned swap of the corrective cycle.
type rebalanceLeg struct {
	from, to           *entry
	fromPrice, toPrice decimal.Decimal
	amountIn           decimal.Decimal
}

// executeRebalanceLocked sells overweight assets into the stable asset,
// then buys underweight assets from it, each leg through the swap adapter
// with an oracle-derived minimum output. Each leg is atomic; the cycle
// stops at the first failed leg without updating the rebalance timestamp,
// so the remaining drift stays visible and a later call can finish the job.
func (e *Engine) executeRebalanceLocked(ctx context.Context, caller string, b domain.VaultBreakdown) error {
	stable, err := e.entryByKey(e.cfg.StableKey)
	if err != nil {
		return fmt.Errorf("stable asset not registered: %w", err)
	}

	var sells, buys []rebalanceLeg
	for _, ab := range b.Assets {
		if !ab.Active || ab.Key == e.cfg.StableKey {
			continue
		}
		ent := e.index[ab.Key]
		target := domain.ApplyBps(b.TotalUSD, ab.TargetBps)
		diff := ab.ValueUSD.Sub(target)

		switch {
		case diff.IsPositive():
			amountIn := domain.Denormalize(diff.Div(ab.PriceUSD), ent.meta.Decimals)
			if amountIn.IsPositive() {
				sells = append(sells, rebalanceLeg{
					from: ent, to: stable,
					fromPrice: ab.PriceUSD, toPrice: oneUSD,
					amountIn: amountIn,
				})
			}
		case diff.IsNegative():
			amountIn := domain.Denormalize(diff.Neg(), stable.meta.Decimals)
			if amountIn.IsPositive() {
				buys = append(buys, rebalanceLeg{
					from: stable, to: ent,
					fromPrice: oneUSD, toPrice: ab.PriceUSD,
					amountIn: amountIn,
				})
			}
		}
	}

	executed := 0
	for _, leg := range sells {
		if err := e.executeLeg(ctx, leg); err != nil {
			return err
		}
		executed++
	}
	for _, leg := range buys {
		// Sells may have delivered slightly less stable than planned;
		// never promise more than is on hand.
		onHand, err := stable.ledger.BalanceOf(ctx, e.cfg.EngineAccount)
		if err != nil {
			return fmt.Errorf("reading stable balance: %w", err)
		}
		if onHand.LessThan(leg.amountIn) {
			leg.amountIn = onHand
		}
		if !leg.amountIn.IsPositive() {
			continue
		}
		if err := e.executeLeg(ctx, leg); err != nil {
			return err
		}
		executed++
	}

	e.lastRebalance = e.now()
	slog.Info("rebalance completed", "caller", caller, "legs", executed)
	e.record(ctx, domain.Event{
		Type:    domain.EventRebalance,
		Account: caller,
	})
	return nil
}

func (e *Engine) executeLeg(ctx context.Context, leg rebalanceLeg) error {
	expected := domain.Normalize(leg.amountIn, leg.from.meta.Decimals).
		Mul(leg.fromPrice).Div(leg.toPrice)
	minOut := domain.Denormalize(
		domain.ApplyBps(expected, domain.TotalBps-e.cfg.SlippageBps),
		leg.to.meta.Decimals,
	)

	var routingData []byte
	if e.planner != nil {
		data, err := e.planner.Route(ctx, leg.from.meta.Key, leg.to.meta.Key, leg.amountIn)
		if err != nil {
			return fmt.Errorf("routing %s->%s: %w", leg.from.meta.Key, leg.to.meta.Key, err)
		}
		routingData = data
	}

	if _, err := e.swapLocked(ctx, leg.from, leg.to, leg.amountIn, minOut, routingData); err != nil {
		return fmt.Errorf("rebalance leg %s->%s: %w", leg.from.meta.Key, leg.to.meta.Key, err)
	}
	return nil
}
