package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rose-token/treasury/internal/domain"
)

// Deposit accepts `amount` of the stable reserve asset from the caller and
// mints value tokens at the current NAV price. Deposited value sits in the
// stable asset until an explicit rebalance moves it: accepting value and
// allocating value are separate, separately-gated operations.
func (e *Engine) Deposit(ctx context.Context, caller string, amount decimal.Decimal) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireNotPaused(); err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrZeroAmount
	}
	stable, err := e.entryByKey(e.cfg.StableKey)
	if err != nil {
		return decimal.Zero, fmt.Errorf("stable asset not registered: %w", err)
	}
	if err := e.checkCooldown(caller, true); err != nil {
		return decimal.Zero, err
	}

	// NAV must be fixed before any funds move, so that a deposit cannot
	// shift the price it is issued at.
	price, err := e.rosePriceLocked(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("NAV price is not positive: %s", price)
	}

	minted := domain.Denormalize(
		domain.Normalize(amount, stable.meta.Decimals).Div(price),
		e.assetDecimals(e.cfg.RoseKey),
	)
	if !minted.IsPositive() {
		return decimal.Zero, ErrZeroAmount
	}

	if err := stable.ledger.Transfer(ctx, caller, e.cfg.EngineAccount, amount); err != nil {
		return decimal.Zero, fmt.Errorf("collecting deposit: %w", err)
	}
	if err := e.rose.Mint(ctx, caller, minted); err != nil {
		// The engine mints only on deposit; a mint failure must unwind
		// the collection to keep the operation all-or-nothing.
		if rbErr := stable.ledger.Transfer(ctx, e.cfg.EngineAccount, caller, amount); rbErr != nil {
			slog.Error("failed to return deposit after mint failure", "account", caller, "error", rbErr)
		}
		return decimal.Zero, fmt.Errorf("minting value tokens: %w", err)
	}

	e.touchCooldown(caller, true)
	slog.Info("deposit", "account", caller, "amountIn", amount, "minted", minted, "price", domain.FormatUSD(price))
	e.record(ctx, domain.Event{
		Type:      domain.EventDeposit,
		Account:   caller,
		AssetFrom: e.cfg.StableKey,
		AssetTo:   e.cfg.RoseKey,
		AmountIn:  amount,
		AmountOut: minted,
	})
	return minted, nil
}

// Redeem burns `amount` of the caller's value tokens and releases stable
// reserve at the current NAV price. Redemptions are honored only from the
// on-hand stable balance; the engine never liquidates other reserve assets
// at redeem time.
func (e *Engine) Redeem(ctx context.Context, caller string, amount decimal.Decimal) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireNotPaused(); err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrZeroAmount
	}
	stable, err := e.entryByKey(e.cfg.StableKey)
	if err != nil {
		return decimal.Zero, fmt.Errorf("stable asset not registered: %w", err)
	}
	if err := e.checkCooldown(caller, false); err != nil {
		return decimal.Zero, err
	}

	price, err := e.rosePriceLocked(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	owed := domain.Denormalize(
		domain.Normalize(amount, e.assetDecimals(e.cfg.RoseKey)).Mul(price),
		stable.meta.Decimals,
	)
	if !owed.IsPositive() {
		return decimal.Zero, ErrZeroAmount
	}

	onHand, err := stable.ledger.BalanceOf(ctx, e.cfg.EngineAccount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading stable balance: %w", err)
	}
	if onHand.LessThan(owed) {
		return decimal.Zero, fmt.Errorf("%w: owed %s, on hand %s", ErrInsufficientLiquidity, owed, onHand)
	}

	if err := e.rose.Burn(ctx, caller, amount); err != nil {
		return decimal.Zero, fmt.Errorf("burning value tokens: %w", err)
	}
	if err := stable.ledger.Transfer(ctx, e.cfg.EngineAccount, caller, owed); err != nil {
		// Burn succeeded but payout failed: restore the caller's tokens.
		if rbErr := e.rose.Mint(ctx, caller, amount); rbErr != nil {
			slog.Error("failed to restore tokens after payout failure", "account", caller, "error", rbErr)
		}
		return decimal.Zero, fmt.Errorf("releasing stable reserve: %w", err)
	}

	e.touchCooldown(caller, false)
	slog.Info("redeem", "account", caller, "burned", amount, "paidOut", owed, "price", domain.FormatUSD(price))
	e.record(ctx, domain.Event{
		Type:      domain.EventRedeem,
		Account:   caller,
		AssetFrom: e.cfg.RoseKey,
		AssetTo:   e.cfg.StableKey,
		AmountIn:  amount,
		AmountOut: owed,
	})
	return owed, nil
}

// checkCooldown enforces the per-account wall-clock cooldown. The owner is
// exempt, for bootstrapping and emergency operations.
func (e *Engine) checkCooldown(caller string, deposit bool) error {
	if caller == e.cfg.Owner {
		return nil
	}
	rec, ok := e.cooldowns[caller]
	if !ok {
		return nil
	}
	var last time.Time
	var window time.Duration
	if deposit {
		last, window = rec.lastDeposit, e.cfg.DepositCooldown
	} else {
		last, window = rec.lastRedeem, e.cfg.RedeemCooldown
	}
	if last.IsZero() {
		return nil
	}
	if remaining := window - e.now().Sub(last); remaining > 0 {
		return fmt.Errorf("%w: %s remaining", ErrCooldownNotElapsed, remaining)
	}
	return nil
}

func (e *Engine) touchCooldown(caller string, deposit bool) {
	rec, ok := e.cooldowns[caller]
	if !ok {
		rec = &cooldownRecord{}
		e.cooldowns[caller] = rec
	}
	if deposit {
		rec.lastDeposit = e.now()
	} else {
		rec.lastRedeem = e.now()
	}
}

// TimeUntilDeposit returns the remaining deposit cooldown for an account,
// zero when none is active or the account is exempt.
func (e *Engine) TimeUntilDeposit(account string) time.Duration {
	return e.timeUntil(account, true)
}

// TimeUntilRedeem returns the remaining redeem cooldown for an account.
func (e *Engine) TimeUntilRedeem(account string) time.Duration {
	return e.timeUntil(account, false)
}

func (e *Engine) timeUntil(account string, deposit bool) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if account == e.cfg.Owner {
		return 0
	}
	rec, ok := e.cooldowns[account]
	if !ok {
		return 0
	}
	var last time.Time
	var window time.Duration
	if deposit {
		last, window = rec.lastDeposit, e.cfg.DepositCooldown
	} else {
		last, window = rec.lastRedeem, e.cfg.RedeemCooldown
	}
	if last.IsZero() {
		return 0
	}
	remaining := window - e.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}
