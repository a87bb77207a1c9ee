package token

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInsufficientBalance indicates a transfer or burn exceeding the source
// account's balance.
var ErrInsufficientBalance = errors.New("insufficient token balance")

// ErrInvalidAmount indicates a zero or negative amount.
var ErrInvalidAmount = errors.New("invalid token amount")

// Ledger is the custody surface of an external fungible-asset contract.
// Amounts are raw native units (fixed-point integers carried as decimals).
type Ledger interface {
	BalanceOf(ctx context.Context, account string) (decimal.Decimal, error)
	TotalSupply(ctx context.Context) (decimal.Decimal, error)
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal) error
}

// MintBurner extends Ledger with supply control. The engine holds this
// authority only over the value token, and uses it only on deposit (mint)
// and redeem (burn).
type MintBurner interface {
	Ledger
	Mint(ctx context.Context, to string, amount decimal.Decimal) error
	Burn(ctx context.Context, from string, amount decimal.Decimal) error
}
