package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rose-token/treasury/internal/domain"
	"github.com/rose-token/treasury/internal/pricing"
	"github.com/rose-token/treasury/internal/token"
)

// Config holds the engine's fixed parameters. Zero durations and thresholds
// fall back to the defaults below.
type Config struct {
	Owner         string
	EngineAccount string // custody account holding all reserve balances

	StableKey domain.AssetKey // the stable reserve asset (redeem liquidity)
	RoseKey   domain.AssetKey // the value token's own reserve entry

	DepositCooldown   time.Duration
	RedeemCooldown    time.Duration
	RebalanceCooldown time.Duration

	DriftThresholdBps int64
	SlippageBps       int64

	// ForceRespectsCooldown decides whether ForceRebalance honors the
	// rebalance cooldown window in addition to bypassing the drift check.
	ForceRespectsCooldown bool

	PriceMaxAge time.Duration
}

const (
	defaultCooldown          = 24 * time.Hour
	defaultRebalanceCooldown = time.Hour
	defaultDriftThresholdBps = 500
	defaultSlippageBps       = 100
	defaultPriceMaxAge       = time.Hour
)

// Recorder receives journal entries for every completed state-changing
// operation. Recording failures are logged, never surfaced to callers.
type Recorder interface {
	Record(ctx context.Context, e domain.Event) error
}

// entry binds one registered asset's metadata to its custody ledger and
// price feed.
type entry struct {
	meta   domain.Asset
	ledger token.Ledger
	feed   pricing.Feed
}

type cooldownRecord struct {
	lastDeposit time.Time
	lastRedeem  time.Time
}

// Engine is the treasury state machine. A single mutex serializes every
// operation end to end, so cross-call ordering matches a one-call-at-a-time
// execution environment; there is no partial-completion path inside an
// operation.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	rebalancer string
	paused     bool

	entries []*entry // insertion order, significant for valuation iteration
	index   map[domain.AssetKey]*entry

	rose       token.MintBurner
	aggregator Aggregator
	planner    RoutePlanner
	recorder   Recorder

	cooldowns     map[string]*cooldownRecord
	lastRebalance time.Time

	now func() time.Time
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithClock overrides the engine clock for deterministic cooldown tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRecorder attaches an operation journal.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithRoutePlanner attaches a routing-data source for engine-initiated
// rebalance swaps. Without one, rebalance legs carry empty routing data.
func WithRoutePlanner(p RoutePlanner) Option {
	return func(e *Engine) { e.planner = p }
}

// New creates a treasury engine. The value token's mint/burn authority and
// the swap aggregator are required collaborators; assets are registered
// afterwards via AddAsset.
func New(cfg Config, rose token.MintBurner, aggregator Aggregator, opts ...Option) (*Engine, error) {
	if cfg.Owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if cfg.EngineAccount == "" {
		return nil, fmt.Errorf("engine account is required")
	}
	if cfg.StableKey == "" || cfg.RoseKey == "" {
		return nil, fmt.Errorf("stable and value-token asset keys are required")
	}
	if cfg.StableKey == cfg.RoseKey {
		return nil, fmt.Errorf("stable and value-token asset keys must differ")
	}
	if rose == nil {
		return nil, fmt.Errorf("value token ledger is required")
	}
	if aggregator == nil {
		return nil, fmt.Errorf("swap aggregator is required")
	}

	if cfg.DepositCooldown == 0 {
		cfg.DepositCooldown = defaultCooldown
	}
	if cfg.RedeemCooldown == 0 {
		cfg.RedeemCooldown = defaultCooldown
	}
	if cfg.RebalanceCooldown == 0 {
		cfg.RebalanceCooldown = defaultRebalanceCooldown
	}
	if cfg.DriftThresholdBps == 0 {
		cfg.DriftThresholdBps = defaultDriftThresholdBps
	}
	if cfg.SlippageBps == 0 {
		cfg.SlippageBps = defaultSlippageBps
	}
	if cfg.PriceMaxAge == 0 {
		cfg.PriceMaxAge = defaultPriceMaxAge
	}

	e := &Engine{
		cfg:        cfg,
		index:      make(map[domain.AssetKey]*entry),
		rose:       rose,
		aggregator: aggregator,
		cooldowns:  make(map[string]*cooldownRecord),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Owner returns the owner identity.
func (e *Engine) Owner() string { return e.cfg.Owner }

// Rebalancer returns the current rebalancer identity.
func (e *Engine) Rebalancer() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebalancer
}

// Paused reports whether the engine is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Pause stops deposit, redeem, swap and rebalance entry points. Owner only.
func (e *Engine) Pause(ctx context.Context, caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.paused = true
	slog.Info("treasury paused", "caller", caller)
	e.record(ctx, domain.Event{Type: domain.EventPaused, Account: caller})
	return nil
}

// Unpause re-enables state-mutating entry points. Owner only.
func (e *Engine) Unpause(ctx context.Context, caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.paused = false
	slog.Info("treasury unpaused", "caller", caller)
	e.record(ctx, domain.Event{Type: domain.EventUnpaused, Account: caller})
	return nil
}

// SetRebalancer designates the privileged rebalancer identity. Owner only.
func (e *Engine) SetRebalancer(ctx context.Context, caller, addr string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if addr == "" {
		return ErrZeroAddress
	}
	e.rebalancer = addr
	slog.Info("rebalancer updated", "rebalancer", addr)
	e.record(ctx, domain.Event{Type: domain.EventRebalancerUpdated, Account: addr})
	return nil
}

func (e *Engine) requireOwner(caller string) error {
	if caller != e.cfg.Owner {
		return ErrNotOwner
	}
	return nil
}

func (e *Engine) requireRebalancer(caller string) error {
	if caller != e.cfg.Owner && (e.rebalancer == "" || caller != e.rebalancer) {
		return ErrNotRebalancer
	}
	return nil
}

func (e *Engine) requireNotPaused() error {
	if e.paused {
		return ErrPaused
	}
	return nil
}

func (e *Engine) entryByKey(key domain.AssetKey) (*entry, error) {
	ent, ok := e.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, key)
	}
	return ent, nil
}

// record appends an event to the journal. Journal failures must not fail
// the financial operation that already completed.
func (e *Engine) record(ctx context.Context, ev domain.Event) {
	if e.recorder == nil {
		return
	}
	ev.CreatedAt = e.now()
	if err := e.recorder.Record(ctx, ev); err != nil {
		slog.Warn("failed to record treasury event", "type", ev.Type, "error", err)
	}
}
