package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory is an in-process Ledger implementation backing the local
// deployment and tests.
type Memory struct {
	mu       sync.RWMutex
	name     string
	balances map[string]decimal.Decimal
	supply   decimal.Decimal
}

// NewMemory creates an empty in-memory token ledger.
func NewMemory(name string) *Memory {
	return &Memory{
		name:     name,
		balances: make(map[string]decimal.Decimal),
	}
}

// Name returns the token identifier this ledger tracks.
func (m *Memory) Name() string { return m.name }

func (m *Memory) BalanceOf(_ context.Context, account string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[account], nil
}

func (m *Memory) TotalSupply(_ context.Context) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supply, nil
}

func (m *Memory) Transfer(_ context.Context, from, to string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from].LessThan(amount) {
		return fmt.Errorf("%w: %s has %s %s, need %s",
			ErrInsufficientBalance, from, m.balances[from], m.name, amount)
	}
	m.balances[from] = m.balances[from].Sub(amount)
	m.balances[to] = m.balances[to].Add(amount)
	return nil
}

func (m *Memory) Mint(_ context.Context, to string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[to] = m.balances[to].Add(amount)
	m.supply = m.supply.Add(amount)
	return nil
}

func (m *Memory) Burn(_ context.Context, from string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from].LessThan(amount) {
		return fmt.Errorf("%w: %s has %s %s, need %s",
			ErrInsufficientBalance, from, m.balances[from], m.name, amount)
	}
	m.balances[from] = m.balances[from].Sub(amount)
	m.supply = m.supply.Sub(amount)
	return nil
}
