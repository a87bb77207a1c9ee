package treasury

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/rose-token/treasury/internal/domain"
	"github.com/rose-token/treasury/internal/token"
)

// SwapRequest carries one exchange order to the external aggregator. The
// routing data is opaque: the engine forwards it without interpretation.
type SwapRequest struct {
	FromKey      domain.AssetKey
	ToKey        domain.AssetKey
	FromToken    string
	ToToken      string
	From         token.Ledger
	To           token.Ledger
	Account      string // engine custody account funds leave from and return to
	AmountIn     decimal.Decimal
	MinAmountOut decimal.Decimal
	RoutingData  []byte
}

// Aggregator is the external swap venue. Its contract is
// settle-in-full-or-not-at-all: it either moves AmountIn out of the
// account, delivers the returned amount (>= MinAmountOut) back, or fails
// without touching either balance.
type Aggregator interface {
	Swap(ctx context.Context, req SwapRequest) (decimal.Decimal, error)
}

// RoutePlanner supplies routing data for engine-initiated rebalance legs.
type RoutePlanner interface {
	Route(ctx context.Context, from, to domain.AssetKey, amountIn decimal.Decimal) ([]byte, error)
}

// ExecuteSwap exchanges reserve assets through the external aggregator.
// Rebalancer or owner only. This is the only path by which reserve
// composition changes internally.
func (e *Engine) ExecuteSwap(ctx context.Context, caller string, fromKey, toKey domain.AssetKey, amountIn, minAmountOut decimal.Decimal, routingData []byte) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireRebalancer(caller); err != nil {
		return decimal.Zero, err
	}
	if err := e.requireNotPaused(); err != nil {
		return decimal.Zero, err
	}
	from, err := e.entryByKey(fromKey)
	if err != nil {
		return decimal.Zero, err
	}
	to, err := e.entryByKey(toKey)
	if err != nil {
		return decimal.Zero, err
	}
	if !from.meta.Active {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrAssetNotActive, fromKey)
	}
	if !to.meta.Active {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrAssetNotActive, toKey)
	}
	if !amountIn.IsPositive() {
		return decimal.Zero, ErrZeroAmount
	}

	return e.swapLocked(ctx, from, to, amountIn, minAmountOut, routingData)
}

// swapLocked hands control to the aggregator and validates all slippage
// accounting strictly after control returns. Any shortfall or overdraft is
// a failed swap, never a partially accepted one.
func (e *Engine) swapLocked(ctx context.Context, from, to *entry, amountIn, minAmountOut decimal.Decimal, routingData []byte) (decimal.Decimal, error) {
	preFrom, err := from.ledger.BalanceOf(ctx, e.cfg.EngineAccount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading %s balance: %w", from.meta.Key, err)
	}
	preTo, err := to.ledger.BalanceOf(ctx, e.cfg.EngineAccount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading %s balance: %w", to.meta.Key, err)
	}
	if preFrom.LessThan(amountIn) {
		return decimal.Zero, fmt.Errorf("%w: have %s %s, need %s", ErrInsufficientLiquidity, preFrom, from.meta.Key, amountIn)
	}

	out, err := e.aggregator.Swap(ctx, SwapRequest{
		FromKey:      from.meta.Key,
		ToKey:        to.meta.Key,
		FromToken:    from.meta.Token,
		ToToken:      to.meta.Token,
		From:         from.ledger,
		To:           to.ledger,
		Account:      e.cfg.EngineAccount,
		AmountIn:     amountIn,
		MinAmountOut: minAmountOut,
		RoutingData:  routingData,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrSwapFailed, err)
	}

	postFrom, err := from.ledger.BalanceOf(ctx, e.cfg.EngineAccount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading %s balance: %w", from.meta.Key, err)
	}
	postTo, err := to.ledger.BalanceOf(ctx, e.cfg.EngineAccount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading %s balance: %w", to.meta.Key, err)
	}

	spent := preFrom.Sub(postFrom)
	delivered := postTo.Sub(preTo)
	if spent.GreaterThan(amountIn) {
		return decimal.Zero, fmt.Errorf("%w: aggregator overdrew %s (spent %s, authorized %s)",
			ErrSwapFailed, from.meta.Key, spent, amountIn)
	}
	if delivered.LessThan(minAmountOut) || out.LessThan(minAmountOut) {
		return decimal.Zero, fmt.Errorf("%w: delivered %s %s, minimum %s",
			ErrSwapFailed, delivered, to.meta.Key, minAmountOut)
	}

	slog.Info("swap executed", "from", from.meta.Key, "to", to.meta.Key, "amountIn", spent, "amountOut", delivered)
	e.record(ctx, domain.Event{
		Type:      domain.EventSwap,
		AssetFrom: from.meta.Key,
		AssetTo:   to.meta.Key,
		AmountIn:  spent,
		AmountOut: delivered,
	})
	return delivered, nil
}
