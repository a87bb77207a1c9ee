package domain

// AssetKey is the short symbolic identifier of a reserve asset. Keys are
// unique and immutable after registration.
type AssetKey string

// TotalBps is the full allocation scale: active assets' target weights must
// sum to exactly this value.
const TotalBps int64 = 10000

// Asset describes one reserve holding tracked by the engine.
type Asset struct {
	Key       AssetKey `json:"key"`
	Token     string   `json:"token"`    // external token contract identifier
	Decimals  int32    `json:"decimals"` // native fixed-point precision
	TargetBps int64    `json:"targetBps"`
	Active    bool     `json:"active"`
	Pegged    bool     `json:"pegged"` // valued at a constant 1.00 USD, no feed
}
