package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetBreakdown is the per-asset slice of the reserve valuation.
type AssetBreakdown struct {
	Key        AssetKey        `json:"key"`
	Token      string          `json:"token"`
	Balance    decimal.Decimal `json:"balance"`    // raw units held by the engine
	Normalized decimal.Decimal `json:"normalized"` // balance scaled by decimals
	PriceUSD   decimal.Decimal `json:"priceUSD"`
	ValueUSD   decimal.Decimal `json:"valueUSD"`
	ShareBps   decimal.Decimal `json:"shareBps"` // share of total reserve value
	TargetBps  int64           `json:"targetBps"`
	Active     bool            `json:"active"`
}

// VaultBreakdown is the full reserve valuation: per-asset values, totals,
// the current token price and circulating supply, and the drift flag.
type VaultBreakdown struct {
	Assets            []AssetBreakdown `json:"assets"`
	HardAssetsUSD     decimal.Decimal  `json:"hardAssetsUSD"`
	TotalUSD          decimal.Decimal  `json:"totalUSD"`
	Price             decimal.Decimal  `json:"price"`
	CirculatingSupply decimal.Decimal  `json:"circulatingSupply"`
	RebalanceNeeded   bool             `json:"rebalanceNeeded"`
	GeneratedAt       time.Time        `json:"generatedAt"`
}
