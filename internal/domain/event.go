package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType classifies a recorded treasury operation.
type EventType string

const (
	EventDeposit           EventType = "deposit"
	EventRedeem            EventType = "redeem"
	EventSwap              EventType = "swap"
	EventRebalance         EventType = "rebalance"
	EventRebalancerUpdated EventType = "rebalancer_updated"
	EventPaused            EventType = "paused"
	EventUnpaused          EventType = "unpaused"
)

// Event is one entry in the treasury operation journal. Fields not relevant
// to a given type are left zero: a deposit carries AmountIn (stable in) and
// AmountOut (tokens minted), a swap carries both asset keys, and so on.
type Event struct {
	ID        int64           `json:"id,omitempty"`
	Type      EventType       `json:"type"`
	Account   string          `json:"account,omitempty"`
	AssetFrom AssetKey        `json:"assetFrom,omitempty"`
	AssetTo   AssetKey        `json:"assetTo,omitempty"`
	AmountIn  decimal.Decimal `json:"amountIn"`
	AmountOut decimal.Decimal `json:"amountOut"`
	CreatedAt time.Time       `json:"createdAt"`
}
