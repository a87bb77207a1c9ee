package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rose-token/treasury/internal/domain"
	"github.com/rose-token/treasury/internal/history"
	"github.com/rose-token/treasury/internal/snapshot"
	"github.com/rose-token/treasury/internal/treasury"
)

// Handler provides HTTP endpoints for the treasury API.
type Handler struct {
	engine    *treasury.Engine
	journal   history.Repository
	snapshots *snapshot.Service
}

// NewHandler creates a new API handler. The journal and snapshot service
// are optional; endpoints backed by a missing dependency return 404.
func NewHandler(engine *treasury.Engine, journal history.Repository, snapshots *snapshot.Service) *Handler {
	if engine == nil {
		panic("api.NewHandler: engine is nil")
	}
	return &Handler{engine: engine, journal: journal, snapshots: snapshots}
}

// account resolves the caller identity for public operations. Authenticated
// requests act as the owner; everyone else identifies via X-Account.
func (h *Handler) account(r *http.Request) string {
	if isAuthenticated(r) {
		return h.engine.Owner()
	}
	return r.Header.Get("X-Account")
}

// GetPrice handles GET /api/v1/price.
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	price, err := h.engine.RosePrice(r.Context())
	if err != nil {
		writeEngineError(w, "getting price", err)
		return
	}
	supply, err := h.engine.CirculatingSupply(r.Context())
	if err != nil {
		writeEngineError(w, "getting circulating supply", err)
		return
	}
	hard, err := h.engine.HardAssetValueUSD(r.Context())
	if err != nil {
		writeEngineError(w, "getting hard asset value", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"price":             domain.FormatUSD(price),
		"circulatingSupply": supply.String(),
		"hardAssetValueUSD": domain.FormatUSD(hard),
	})
}

// GetVault handles GET /api/v1/vault.
func (h *Handler) GetVault(w http.ResponseWriter, r *http.Request) {
	b, err := h.engine.VaultBreakdown(r.Context())
	if err != nil {
		writeEngineError(w, "getting vault breakdown", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListAssets handles GET /api/v1/assets.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.AllAssets())
}

// GetAsset handles GET /api/v1/assets/{key}.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	key := domain.AssetKey(r.PathValue("key"))
	b, err := h.engine.AssetBreakdown(r.Context(), key)
	if err != nil {
		writeEngineError(w, "getting asset breakdown", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GetAllocations handles GET /api/v1/allocations.
func (h *Handler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"assets": h.engine.AllAssets(),
		"valid":  h.engine.ValidateAllocations(),
	})
}

// GetCooldowns handles GET /api/v1/cooldowns.
func (h *Handler) GetCooldowns(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		account = h.account(r)
	}
	if account == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account":      account,
		"untilDeposit": h.engine.TimeUntilDeposit(account).String(),
		"untilRedeem":  h.engine.TimeUntilRedeem(account).String(),
	})
}

// GetRebalanceNeeded handles GET /api/v1/rebalance-needed.
func (h *Handler) GetRebalanceNeeded(w http.ResponseWriter, r *http.Request) {
	needed, err := h.engine.NeedsRebalance(r.Context())
	if err != nil {
		writeEngineError(w, "checking rebalance need", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"rebalanceNeeded": needed})
}

// ListEvents handles GET /api/v1/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "event journal not configured")
		return
	}
	events, err := h.journal.List(r.Context(), queryLimit(r, 50, 500))
	if err != nil {
		slog.Error("failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func readAmount(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return decimal.Zero, false
	}
	return amount, true
}

// Deposit handles POST /api/v1/deposits.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	account := h.account(r)
	if account == "" {
		writeError(w, http.StatusBadRequest, "X-Account header is required")
		return
	}
	amount, ok := readAmount(w, r)
	if !ok {
		return
	}
	minted, err := h.engine.Deposit(r.Context(), account, amount)
	if err != nil {
		writeEngineError(w, "depositing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"minted": minted.String()})
}

// Redeem handles POST /api/v1/redemptions.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	account := h.account(r)
	if account == "" {
		writeError(w, http.StatusBadRequest, "X-Account header is required")
		return
	}
	amount, ok := readAmount(w, r)
	if !ok {
		return
	}
	paid, err := h.engine.Redeem(r.Context(), account, amount)
	if err != nil {
		writeEngineError(w, "redeeming", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paid": paid.String()})
}

// Rebalance handles POST /api/v1/rebalance. Open to anyone.
func (h *Handler) Rebalance(w http.ResponseWriter, r *http.Request) {
	account := h.account(r)
	if account == "" {
		account = "anonymous"
	}
	if err := h.engine.Rebalance(r.Context(), account); err != nil {
		writeEngineError(w, "rebalancing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebalanced"})
}

// ForceRebalance handles POST /api/v1/rebalance/force.
func (h *Handler) ForceRebalance(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ForceRebalance(r.Context(), h.account(r)); err != nil {
		writeEngineError(w, "force rebalancing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebalanced"})
}

type swapRequest struct {
	From         string `json:"from"`
	To           string `json:"to"`
	AmountIn     string `json:"amountIn"`
	MinAmountOut string `json:"minAmountOut"`
}

// Swap handles POST /api/v1/swaps.
func (h *Handler) Swap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amountIn, err := decimal.NewFromString(req.AmountIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amountIn")
		return
	}
	minOut := decimal.Zero
	if req.MinAmountOut != "" {
		if minOut, err = decimal.NewFromString(req.MinAmountOut); err != nil {
			writeError(w, http.StatusBadRequest, "invalid minAmountOut")
			return
		}
	}
	out, err := h.engine.ExecuteSwap(r.Context(), h.account(r),
		domain.AssetKey(req.From), domain.AssetKey(req.To), amountIn, minOut, nil)
	if err != nil {
		writeEngineError(w, "swapping", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amountOut": out.String()})
}

type allocationRequest struct {
	TargetBps int64 `json:"targetBps"`
}

// UpdateAllocation handles PUT /api/v1/assets/{key}/allocation.
func (h *Handler) UpdateAllocation(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	key := domain.AssetKey(r.PathValue("key"))
	if err := h.engine.UpdateAssetAllocation(r.Context(), h.account(r), key, req.TargetBps); err != nil {
		writeEngineError(w, "updating allocation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeactivateAsset handles POST /api/v1/assets/{key}/deactivate.
func (h *Handler) DeactivateAsset(w http.ResponseWriter, r *http.Request) {
	key := domain.AssetKey(r.PathValue("key"))
	if err := h.engine.DeactivateAsset(r.Context(), h.account(r), key); err != nil {
		writeEngineError(w, "deactivating asset", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// ReactivateAsset handles POST /api/v1/assets/{key}/reactivate.
func (h *Handler) ReactivateAsset(w http.ResponseWriter, r *http.Request) {
	key := domain.AssetKey(r.PathValue("key"))
	if err := h.engine.ReactivateAsset(r.Context(), h.account(r), key); err != nil {
		writeEngineError(w, "reactivating asset", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reactivated"})
}

type rebalancerRequest struct {
	Address string `json:"address"`
}

// SetRebalancer handles POST /api/v1/rebalancer.
func (h *Handler) SetRebalancer(w http.ResponseWriter, r *http.Request) {
	var req rebalancerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.engine.SetRebalancer(r.Context(), h.account(r), req.Address); err != nil {
		writeEngineError(w, "setting rebalancer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Pause handles POST /api/v1/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Pause(r.Context(), h.account(r)); err != nil {
		writeEngineError(w, "pausing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// Unpause handles POST /api/v1/unpause.
func (h *Handler) Unpause(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Unpause(r.Context(), h.account(r)); err != nil {
		writeEngineError(w, "unpausing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unpaused"})
}

// GetLatestSnapshot handles GET /api/v1/snapshots/latest.
func (h *Handler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusNotFound, "snapshots not configured")
		return
	}
	s, err := h.snapshots.GetLatest(r.Context())
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no snapshots found")
			return
		}
		slog.Error("failed to get latest snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetSnapshotByDate handles GET /api/v1/snapshots/{date}.
func (h *Handler) GetSnapshotByDate(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusNotFound, "snapshots not configured")
		return
	}
	dateStr := r.PathValue("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}
	s, err := h.snapshots.GetByDate(r.Context(), date)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeError(w, http.StatusNotFound, "snapshot not found for date")
			return
		}
		slog.Error("failed to get snapshot by date", "date", dateStr, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListSnapshots handles GET /api/v1/snapshots.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusNotFound, "snapshots not configured")
		return
	}
	snapshots, err := h.snapshots.List(r.Context(), queryLimit(r, 30, 365))
	if err != nil {
		slog.Error("failed to list snapshots", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// GenerateSnapshot handles POST /api/v1/snapshots/generate.
func (h *Handler) GenerateSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusNotFound, "snapshots not configured")
		return
	}
	data, err := h.snapshots.Generate(r.Context(), time.Now())
	if err != nil {
		slog.Error("failed to generate snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate snapshot")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func queryLimit(r *http.Request, def, max int) int {
	limit := def
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, max)
		}
	}
	return limit
}

// writeEngineError maps engine sentinel errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, treasury.ErrNotOwner) || errors.Is(err, treasury.ErrNotRebalancer):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, treasury.ErrAssetNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, treasury.ErrZeroAmount) ||
		errors.Is(err, treasury.ErrZeroAddress) ||
		errors.Is(err, treasury.ErrAssetAlreadyExists):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, treasury.ErrPaused) ||
		errors.Is(err, treasury.ErrCooldownNotElapsed) ||
		errors.Is(err, treasury.ErrRebalanceCooldown) ||
		errors.Is(err, treasury.ErrRebalanceNotNeeded) ||
		errors.Is(err, treasury.ErrAssetNotActive) ||
		errors.Is(err, treasury.ErrCannotDeactivateRequired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, treasury.ErrInsufficientLiquidity) ||
		errors.Is(err, treasury.ErrSwapFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("treasury operation failed", "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
