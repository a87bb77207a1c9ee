package token

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMemoryMintAndTransfer(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("USDC")

	if err := m.Mint(ctx, "alice", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := m.Transfer(ctx, "alice", "bob", decimal.NewFromInt(40)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	alice, _ := m.BalanceOf(ctx, "alice")
	bob, _ := m.BalanceOf(ctx, "bob")
	supply, _ := m.TotalSupply(ctx)

	if alice.String() != "60" {
		t.Errorf("alice balance = %s, want 60", alice)
	}
	if bob.String() != "40" {
		t.Errorf("bob balance = %s, want 40", bob)
	}
	if supply.String() != "100" {
		t.Errorf("supply = %s, want 100", supply)
	}
}

func TestMemoryTransferInsufficient(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("USDC")
	_ = m.Mint(ctx, "alice", decimal.NewFromInt(10))

	err := m.Transfer(ctx, "alice", "bob", decimal.NewFromInt(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}

	alice, _ := m.BalanceOf(ctx, "alice")
	if alice.String() != "10" {
		t.Errorf("alice balance = %s, want 10 after failed transfer", alice)
	}
}

func TestMemoryBurn(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("ROSE")
	_ = m.Mint(ctx, "alice", decimal.NewFromInt(100))

	if err := m.Burn(ctx, "alice", decimal.NewFromInt(30)); err != nil {
		t.Fatalf("Burn: %v", err)
	}
	supply, _ := m.TotalSupply(ctx)
	if supply.String() != "70" {
		t.Errorf("supply = %s, want 70", supply)
	}

	if err := m.Burn(ctx, "alice", decimal.NewFromInt(1000)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestMemoryRejectsNonPositiveAmounts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("USDC")

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		if err := m.Mint(ctx, "alice", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Mint(%s) err = %v, want ErrInvalidAmount", amount, err)
		}
		if err := m.Transfer(ctx, "alice", "bob", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Transfer(%s) err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}
