package amm

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rose-token/treasury/internal/token"
	"github.com/rose-token/treasury/internal/treasury"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T, feeBps int64) (*Desk, *token.Memory, *token.Memory) {
	t.Helper()
	ctx := context.Background()

	desk := NewDesk("desk", feeBps)
	usdc := token.NewMemory("USDC")
	wbtc := token.NewMemory("WBTC")

	if err := wbtc.Mint(ctx, "desk", d("1000000000")); err != nil { // 10 WBTC inventory
		t.Fatalf("Mint: %v", err)
	}
	if err := usdc.Mint(ctx, "vault", d("100000000000")); err != nil { // 100,000 USDC
		t.Fatalf("Mint: %v", err)
	}

	// 1 raw USDC (1e-6) buys 0.002 raw WBTC at 50,000 USD/BTC.
	desk.SetRate("USDC", "WBTC", d("0.002"))
	return desk, usdc, wbtc
}

func req(usdc, wbtc *token.Memory, amountIn, minOut decimal.Decimal) treasury.SwapRequest {
	return treasury.SwapRequest{
		FromKey: "USDC", ToKey: "WBTC",
		From: usdc, To: wbtc,
		Account:      "vault",
		AmountIn:     amountIn,
		MinAmountOut: minOut,
	}
}

func TestDeskSwap(t *testing.T) {
	ctx := context.Background()
	desk, usdc, wbtc := setup(t, 0)

	out, err := desk.Swap(ctx, req(usdc, wbtc, d("50000000000"), d("99000000")))
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if !out.Equal(d("100000000")) { // 1 WBTC
		t.Errorf("out = %s, want 100000000", out)
	}

	vaultWBTC, _ := wbtc.BalanceOf(ctx, "vault")
	if !vaultWBTC.Equal(out) {
		t.Errorf("vault WBTC = %s, want %s delivered", vaultWBTC, out)
	}
	deskUSDC, _ := usdc.BalanceOf(ctx, "desk")
	if !deskUSDC.Equal(d("50000000000")) {
		t.Errorf("desk USDC = %s, want the pulled input", deskUSDC)
	}
}

func TestDeskSwapAppliesFee(t *testing.T) {
	ctx := context.Background()
	desk, usdc, wbtc := setup(t, 30) // 0.30%

	out, err := desk.Swap(ctx, req(usdc, wbtc, d("50000000000"), d("0")))
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if !out.Equal(d("99700000")) { // 1 WBTC less 30 bps
		t.Errorf("out = %s, want 99700000", out)
	}
}

func TestDeskSwapBelowMinimumMovesNothing(t *testing.T) {
	ctx := context.Background()
	desk, usdc, wbtc := setup(t, 0)

	_, err := desk.Swap(ctx, req(usdc, wbtc, d("50000000000"), d("200000000")))
	if !errors.Is(err, ErrUnfillable) {
		t.Fatalf("err = %v, want ErrUnfillable", err)
	}

	vaultUSDC, _ := usdc.BalanceOf(ctx, "vault")
	if !vaultUSDC.Equal(d("100000000000")) {
		t.Errorf("vault USDC = %s after rejected order, want unchanged", vaultUSDC)
	}
	vaultWBTC, _ := wbtc.BalanceOf(ctx, "vault")
	if !vaultWBTC.IsZero() {
		t.Errorf("vault WBTC = %s after rejected order, want 0", vaultWBTC)
	}
}

func TestDeskSwapNoMarket(t *testing.T) {
	ctx := context.Background()
	desk, usdc, wbtc := setup(t, 0)

	r := req(usdc, wbtc, d("1000000"), d("0"))
	r.FromKey, r.ToKey = "WBTC", "USDC" // reverse pair never configured
	r.From, r.To = wbtc, usdc

	if _, err := desk.Swap(ctx, r); !errors.Is(err, ErrUnfillable) {
		t.Errorf("err = %v, want ErrUnfillable", err)
	}
}

func TestDeskSwapInventoryShortfall(t *testing.T) {
	ctx := context.Background()
	desk, usdc, wbtc := setup(t, 0)

	// Fill would need 2 WBTC against 10 on hand; drain the desk first.
	if err := wbtc.Transfer(ctx, "desk", "elsewhere", d("950000000")); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	_, err := desk.Swap(ctx, req(usdc, wbtc, d("100000000000"), d("0")))
	if !errors.Is(err, ErrUnfillable) {
		t.Fatalf("err = %v, want ErrUnfillable", err)
	}

	vaultUSDC, _ := usdc.BalanceOf(ctx, "vault")
	if !vaultUSDC.Equal(d("100000000000")) {
		t.Errorf("vault USDC = %s after unfillable order, want unchanged", vaultUSDC)
	}
}
