package treasury

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rose-token/treasury/internal/domain"
)

func TestNeedsRebalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Empty vault: nothing to move.
	needed, err := f.engine.NeedsRebalance(ctx)
	if err != nil {
		t.Fatalf("NeedsRebalance: %v", err)
	}
	if needed {
		t.Error("NeedsRebalance = true on empty vault, want false")
	}

	// Everything in the stable asset: 10000 bps vs a 5000 bps target.
	mustMint(t, f.usdc, testVault, d("100000000000"))
	needed, err = f.engine.NeedsRebalance(ctx)
	if err != nil {
		t.Fatalf("NeedsRebalance: %v", err)
	}
	if !needed {
		t.Error("NeedsRebalance = false with full drift, want true")
	}
}

func TestRebalanceMovesToTargets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mustMint(t, f.usdc, testVault, d("100000000000")) // 100,000 USDC

	// Permissionless trigger: any account may start a needed rebalance.
	if err := f.engine.Rebalance(ctx, "anyone"); err != nil {
		t.Fatalf("Rebalance: %v", err)
	}

	if got := f.vaultBalance(t, f.usdc); !got.Equal(d("50000000000")) {
		t.Errorf("vault USDC = %s, want 50000000000", got)
	}
	if got := f.vaultBalance(t, f.wbtc); !got.Equal(d("100000000")) {
		t.Errorf("vault WBTC = %s, want 100000000 (1 WBTC)", got)
	}

	needed, err := f.engine.NeedsRebalance(ctx)
	if err != nil {
		t.Fatalf("NeedsRebalance: %v", err)
	}
	if needed {
		t.Error("NeedsRebalance = true after rebalance, want false")
	}
	if got := f.journal.lastType(); got != domain.EventRebalance {
		t.Errorf("last event = %s, want %s", got, domain.EventRebalance)
	}
}

func TestRebalanceNotNeeded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.engine.Rebalance(ctx, "anyone"); !errors.Is(err, ErrRebalanceNotNeeded) {
		t.Errorf("err = %v, want ErrRebalanceNotNeeded", err)
	}
}

func TestRebalanceCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mustMint(t, f.usdc, testVault, d("100000000000"))

	if err := f.engine.Rebalance(ctx, "anyone"); err != nil {
		t.Fatalf("Rebalance: %v", err)
	}

	// New drift right away: the hard asset triples in price.
	f.wbtcFeed.Set(d("150000"), f.clock.Now())
	f.agg.setRate("WBTC", "USDC", d("1500"))

	if err := f.engine.Rebalance(ctx, "anyone"); !errors.Is(err, ErrRebalanceCooldown) {
		t.Fatalf("err = %v, want ErrRebalanceCooldown", err)
	}

	f.clock.Advance(time.Hour)
	f.wbtcFeed.Set(d("150000"), f.clock.Now())
	if err := f.engine.Rebalance(ctx, "anyone"); err != nil {
		t.Fatalf("Rebalance after cooldown: %v", err)
	}

	needed, err := f.engine.NeedsRebalance(ctx)
	if err != nil {
		t.Fatalf("NeedsRebalance: %v", err)
	}
	if needed {
		t.Error("NeedsRebalance = true after second rebalance, want false")
	}
}

func TestRebalancePaused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mustMint(t, f.usdc, testVault, d("100000000000"))

	if err := f.engine.Pause(ctx, testOwner); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := f.engine.Rebalance(ctx, "anyone"); !errors.Is(err, ErrPaused) {
		t.Errorf("Rebalance err = %v, want ErrPaused", err)
	}
	if err := f.engine.ForceRebalance(ctx, testOwner); !errors.Is(err, ErrPaused) {
		t.Errorf("ForceRebalance err = %v, want ErrPaused", err)
	}
}

func TestFailedLegKeepsDriftVisible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mustMint(t, f.usdc, testVault, d("100000000000"))

	f.agg.failAll = true
	if err := f.engine.Rebalance(ctx, "anyone"); !errors.Is(err, ErrSwapFailed) {
		t.Fatalf("err = %v, want ErrSwapFailed", err)
	}

	if got := f.vaultBalance(t, f.usdc); !got.Equal(d("100000000000")) {
		t.Errorf("vault USDC = %s after failed cycle, want unchanged", got)
	}

	needed, err := f.engine.NeedsRebalance(ctx)
	if err != nil {
		t.Fatalf("NeedsRebalance: %v", err)
	}
	if !needed {
		t.Error("NeedsRebalance = false after failed cycle, want true")
	}

	// The failed cycle must not arm the cooldown.
	f.agg.failAll = false
	if err := f.engine.Rebalance(ctx, "anyone"); err != nil {
		t.Fatalf("retry Rebalance: %v", err)
	}
}

func TestForceRebalanceAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mustMint(t, f.usdc, testVault, d("100000000000"))

	if err := f.engine.ForceRebalance(ctx, "mallory"); !errors.Is(err, ErrNotRebalancer) {
		t.Errorf("err = %v, want ErrNotRebalancer", err)
	}

	if err := f.engine.SetRebalancer(ctx, testOwner, "keeper"); err != nil {
		t.Fatalf("SetRebalancer: %v", err)
	}
	if err := f.engine.ForceRebalance(ctx, "keeper"); err != nil {
		t.Fatalf("ForceRebalance: %v", err)
	}
}

func TestForceRebalanceBypassesDriftCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Balanced (empty) vault: a plain rebalance refuses, force proceeds.
	if err := f.engine.Rebalance(ctx, testOwner); !errors.Is(err, ErrRebalanceNotNeeded) {
		t.Fatalf("err = %v, want ErrRebalanceNotNeeded", err)
	}
	if err := f.engine.ForceRebalance(ctx, testOwner); err != nil {
		t.Fatalf("ForceRebalance: %v", err)
	}
	if got := f.journal.lastType(); got != domain.EventRebalance {
		t.Errorf("last event = %s, want %s", got, domain.EventRebalance)
	}
}

func TestForceRebalanceCooldownPolicy(t *testing.T) {
	ctx := context.Background()

	// Default: force ignores the cooldown window.
	f := newFixture(t)
	mustMint(t, f.usdc, testVault, d("100000000000"))
	if err := f.engine.Rebalance(ctx, "anyone"); err != nil {
		t.Fatalf("Rebalance: %v", err)
	}
	if err := f.engine.ForceRebalance(ctx, testOwner); err != nil {
		t.Fatalf("ForceRebalance right after rebalance: %v", err)
	}

	// Opt-in: force honors the window like everyone else.
	f = newFixture(t, func(c *Config) { c.ForceRespectsCooldown = true })
	mustMint(t, f.usdc, testVault, d("100000000000"))
	if err := f.engine.Rebalance(ctx, "anyone"); err != nil {
		t.Fatalf("Rebalance: %v", err)
	}
	if err := f.engine.ForceRebalance(ctx, testOwner); !errors.Is(err, ErrRebalanceCooldown) {
		t.Errorf("err = %v, want ErrRebalanceCooldown", err)
	}
}
