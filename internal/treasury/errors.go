package treasury

import "errors"

// Authorization failures. Rejected before any state change.
var (
	ErrNotOwner      = errors.New("caller is not the owner")
	ErrNotRebalancer = errors.New("caller is not the rebalancer")
)

// State-precondition failures. The call is well-formed but the engine is not
// in a state where it may proceed; callers should consult the read-only
// surface before retrying.
var (
	ErrPaused                   = errors.New("treasury is paused")
	ErrCooldownNotElapsed       = errors.New("cooldown has not elapsed")
	ErrRebalanceNotNeeded       = errors.New("rebalance not needed")
	ErrRebalanceCooldown        = errors.New("rebalance cooldown active")
	ErrAssetNotActive           = errors.New("asset is not active")
	ErrCannotDeactivateRequired = errors.New("cannot toggle a required asset")
)

// Input validation failures. Not retryable without correction.
var (
	ErrZeroAmount         = errors.New("amount must be positive")
	ErrZeroAddress        = errors.New("address must not be empty")
	ErrAssetNotFound      = errors.New("asset not found")
	ErrAssetAlreadyExists = errors.New("asset already exists")
)

// Liquidity and financial failures. These never partially apply: the whole
// operation is rejected with reserve and supply state untouched.
var (
	ErrInsufficientLiquidity = errors.New("insufficient stable liquidity")
	ErrSwapFailed            = errors.New("swap failed")
)
