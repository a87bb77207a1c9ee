package treasury

import (
	"context"
	"errors"
	"testing"

	"github.com/rose-token/treasury/internal/domain"
)

func TestExecuteSwap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mustMint(t, f.usdc, testVault, d("100000000000")) // 100,000 USDC

	out, err := f.engine.ExecuteSwap(ctx, testOwner, "USDC", "WBTC",
		d("50000000000"), d("99000000"), nil) // 50,000 USDC, min 0.99 WBTC
	if err != nil {
		t.Fatalf("ExecuteSwap: %v", err)
	}
	if !out.Equal(d("100000000")) { // 1 WBTC
		t.Errorf("out = %s, want 100000000", out)
	}

	if got := f.vaultBalance(t, f.usdc); !got.Equal(d("50000000000")) {
		t.Errorf("vault USDC = %s, want 50000000000", got)
	}
	if got := f.vaultBalance(t, f.wbtc); !got.Equal(d("100000000")) {
		t.Errorf("vault WBTC = %s, want 100000000", got)
	}
	if got := f.journal.lastType(); got != domain.EventSwap {
		t.Errorf("last event = %s, want %s", got, domain.EventSwap)
	}
}

func TestExecuteSwapAccessControl(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mustMint(t, f.usdc, testVault, d("100000000000"))

	if _, err := f.engine.ExecuteSwap(ctx, "mallory", "USDC", "WBTC", d("1000000"), d("0"), nil); !errors.Is(err, ErrNotRebalancer) {
		t.Errorf("err = %v, want ErrNotRebalancer", err)
	}

	// A designated rebalancer may swap, and so may the owner.
	if err := f.engine.SetRebalancer(ctx, testOwner, "keeper"); err != nil {
		t.Fatalf("SetRebalancer: %v", err)
	}
	if _, err := f.engine.ExecuteSwap(ctx, "keeper", "USDC", "WBTC", d("1000000"), d("0"), nil); err != nil {
		t.Errorf("keeper ExecuteSwap: %v", err)
	}
}

func TestExecuteSwapValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mustMint(t, f.usdc, testVault, d("1000000"))

	if _, err := f.engine.ExecuteSwap(ctx, testOwner, "DOGE", "WBTC", d("1"), d("0"), nil); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("err = %v, want ErrAssetNotFound", err)
	}
	if _, err := f.engine.ExecuteSwap(ctx, testOwner, "USDC", "WBTC", d("0"), d("0"), nil); !errors.Is(err, ErrZeroAmount) {
		t.Errorf("err = %v, want ErrZeroAmount", err)
	}
	if _, err := f.engine.ExecuteSwap(ctx, testOwner, "USDC", "WBTC", d("2000000"), d("0"), nil); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Errorf("err = %v, want ErrInsufficientLiquidity", err)
	}

	if err := f.engine.Pause(ctx, testOwner); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if _, err := f.engine.ExecuteSwap(ctx, testOwner, "USDC", "WBTC", d("1000000"), d("0"), nil); !errors.Is(err, ErrPaused) {
		t.Errorf("err = %v, want ErrPaused", err)
	}
}

func TestExecuteSwapInactiveAsset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mustMint(t, f.usdc, testVault, d("100000000000"))

	if err := f.engine.DeactivateAsset(ctx, testOwner, "WBTC"); err != nil {
		t.Fatalf("DeactivateAsset: %v", err)
	}
	if _, err := f.engine.ExecuteSwap(ctx, testOwner, "USDC", "WBTC", d("1000000"), d("0"), nil); !errors.Is(err, ErrAssetNotActive) {
		t.Errorf("err = %v, want ErrAssetNotActive", err)
	}
}

func TestExecuteSwapFailureLeavesBalancesUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mustMint(t, f.usdc, testVault, d("100000000000"))

	f.agg.failAll = true
	_, err := f.engine.ExecuteSwap(ctx, testOwner, "USDC", "WBTC", d("50000000000"), d("0"), nil)
	if !errors.Is(err, ErrSwapFailed) {
		t.Fatalf("err = %v, want ErrSwapFailed", err)
	}

	if got := f.vaultBalance(t, f.usdc); !got.Equal(d("100000000000")) {
		t.Errorf("vault USDC = %s after failed swap, want unchanged", got)
	}
	if got := f.vaultBalance(t, f.wbtc); !got.IsZero() {
		t.Errorf("vault WBTC = %s after failed swap, want 0", got)
	}
}

func TestExecuteSwapMinOutNotMet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mustMint(t, f.usdc, testVault, d("100000000000"))

	// Demand more WBTC than the venue quotes for the input.
	_, err := f.engine.ExecuteSwap(ctx, testOwner, "USDC", "WBTC",
		d("50000000000"), d("200000000"), nil) // min 2 WBTC for 50,000 USDC
	if !errors.Is(err, ErrSwapFailed) {
		t.Fatalf("err = %v, want ErrSwapFailed", err)
	}

	if got := f.vaultBalance(t, f.usdc); !got.Equal(d("100000000000")) {
		t.Errorf("vault USDC = %s after rejected fill, want unchanged", got)
	}
}
