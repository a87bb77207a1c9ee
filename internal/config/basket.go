package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// BasketAsset describes one reserve asset to register at startup.
type BasketAsset struct {
	Key       string `json:"key"`
	Token     string `json:"token"`
	Decimals  int32  `json:"decimals"`
	TargetBps int64  `json:"targetBps"`
	Pegged    bool   `json:"pegged"`

	// CoinID is the upstream price API identifier (e.g. "bitcoin").
	// Empty for pegged assets and the value token itself.
	CoinID string `json:"coinId,omitempty"`

	// InitialPriceUSD seeds a static feed when no price API is configured.
	InitialPriceUSD decimal.Decimal `json:"initialPriceUSD,omitempty"`

	// DeskInventory is the raw-unit balance minted to the local swap desk.
	DeskInventory decimal.Decimal `json:"deskInventory,omitempty"`
}

// Basket is the startup reserve composition.
type Basket struct {
	Stable string        `json:"stable"`
	Rose   string        `json:"rose"`
	Assets []BasketAsset `json:"assets"`
}

// LoadBasket reads a basket definition from a JSON file, or returns the
// built-in default composition when path is empty.
func LoadBasket(path string) (Basket, error) {
	if path == "" {
		return defaultBasket(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Basket{}, fmt.Errorf("reading basket file: %w", err)
	}
	var b Basket
	if err := json.Unmarshal(data, &b); err != nil {
		return Basket{}, fmt.Errorf("parsing basket file: %w", err)
	}
	if b.Stable == "" || b.Rose == "" {
		return Basket{}, fmt.Errorf("basket file %s: stable and rose keys are required", path)
	}
	return b, nil
}

// defaultBasket is a stable-heavy composition for local runs: half the
// reserve in the pegged stable, the rest split across hard assets.
func defaultBasket() Basket {
	return Basket{
		Stable: "USDC",
		Rose:   "ROSE",
		Assets: []BasketAsset{
			{
				Key: "USDC", Token: "USD Coin", Decimals: 6, TargetBps: 5000, Pegged: true,
				DeskInventory: decimal.New(1_000_000, 6),
			},
			{
				Key: "WBTC", Token: "Wrapped Bitcoin", Decimals: 8, TargetBps: 3000,
				CoinID:          "bitcoin",
				InitialPriceUSD: decimal.NewFromInt(60000),
				DeskInventory:   decimal.New(100, 8),
			},
			{
				Key: "PAXG", Token: "Pax Gold", Decimals: 18, TargetBps: 2000,
				CoinID:          "pax-gold",
				InitialPriceUSD: decimal.NewFromInt(2400),
				DeskInventory:   decimal.New(1000, 18),
			},
			{
				Key: "ROSE", Token: "Rose", Decimals: 18, TargetBps: 0,
			},
		},
	}
}
