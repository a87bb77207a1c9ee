package pricing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrStalePrice indicates the latest feed observation is older than the
// configured maximum age. Valuation fails loudly rather than substituting
// a cached or zero price.
var ErrStalePrice = errors.New("price feed is stale")

// ErrNoPrice indicates the feed has no observation at all.
var ErrNoPrice = errors.New("no price available")

// PricePoint is one oracle observation: a USD price and when it was set.
type PricePoint struct {
	Price     decimal.Decimal
	UpdatedAt time.Time
}

// Feed is the read-only latest-price surface of one external oracle.
type Feed interface {
	LatestPrice(ctx context.Context) (PricePoint, error)
}

// StaticFeed is a settable in-process feed used by the local deployment
// and tests.
type StaticFeed struct {
	mu    sync.RWMutex
	point PricePoint
	set   bool
}

// NewStaticFeed creates a feed pre-loaded with one observation at time now.
func NewStaticFeed(price decimal.Decimal) *StaticFeed {
	f := &StaticFeed{}
	f.Set(price, time.Now())
	return f
}

// Set replaces the current observation.
func (f *StaticFeed) Set(price decimal.Decimal, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.point = PricePoint{Price: price, UpdatedAt: at}
	f.set = true
}

func (f *StaticFeed) LatestPrice(_ context.Context) (PricePoint, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.set {
		return PricePoint{}, ErrNoPrice
	}
	return f.point, nil
}
