// Package amm provides an in-process swap venue backing the local
// deployment: a desk holding its own inventory that fills orders at
// configured rates. It honors the aggregator contract of settling in full
// or not at all.
package amm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rose-token/treasury/internal/domain"
	"github.com/rose-token/treasury/internal/treasury"
)

// ErrUnfillable indicates the desk cannot meet the order's minimum output.
var ErrUnfillable = errors.New("order cannot be filled at minimum output")

// Desk fills swap requests from its own inventory at fixed pair rates.
type Desk struct {
	mu      sync.RWMutex
	account string
	feeBps  int64
	rates   map[string]decimal.Decimal // keyed "FROM=>TO"
}

// NewDesk creates a desk settling from the given inventory account.
func NewDesk(account string, feeBps int64) *Desk {
	return &Desk{
		account: account,
		feeBps:  feeBps,
		rates:   make(map[string]decimal.Decimal),
	}
}

// Account returns the desk's inventory account.
func (d *Desk) Account() string { return d.account }

// SetRate sets the raw-unit exchange rate for a directed pair: a fill
// delivers amountIn * rate (less the fee) in the destination token's
// native units.
func (d *Desk) SetRate(from, to domain.AssetKey, rate decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rates[pairKey(from, to)] = rate
}

func pairKey(from, to domain.AssetKey) string {
	return fmt.Sprintf("%s=>%s", from, to)
}

// Swap fills one order. The input is pulled from the requesting account and
// the output delivered back in the same call; if the fill would come in
// under the requested minimum, or the desk lacks inventory, nothing moves.
func (d *Desk) Swap(ctx context.Context, req treasury.SwapRequest) (decimal.Decimal, error) {
	d.mu.RLock()
	rate, ok := d.rates[pairKey(req.FromKey, req.ToKey)]
	feeBps := d.feeBps
	d.mu.RUnlock()
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no market for %s", ErrUnfillable, pairKey(req.FromKey, req.ToKey))
	}

	out := domain.ApplyBps(req.AmountIn.Mul(rate), domain.TotalBps-feeBps).Truncate(0)
	if out.LessThan(req.MinAmountOut) {
		return decimal.Zero, fmt.Errorf("%w: fill %s below minimum %s", ErrUnfillable, out, req.MinAmountOut)
	}
	if !out.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: zero fill", ErrUnfillable)
	}

	inventory, err := req.To.BalanceOf(ctx, d.account)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading desk inventory: %w", err)
	}
	if inventory.LessThan(out) {
		return decimal.Zero, fmt.Errorf("%w: desk inventory %s below fill %s", ErrUnfillable, inventory, out)
	}

	if err := req.From.Transfer(ctx, req.Account, d.account, req.AmountIn); err != nil {
		return decimal.Zero, fmt.Errorf("pulling input: %w", err)
	}
	if err := req.To.Transfer(ctx, d.account, req.Account, out); err != nil {
		// Undo the pull so the order fails without partial settlement.
		if rbErr := req.From.Transfer(ctx, d.account, req.Account, req.AmountIn); rbErr != nil {
			return decimal.Zero, fmt.Errorf("delivering output: %w (rollback also failed: %s)", err, rbErr)
		}
		return decimal.Zero, fmt.Errorf("delivering output: %w", err)
	}
	return out, nil
}
