package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/rose-token/treasury/internal/history"
	"github.com/rose-token/treasury/internal/snapshot"
	"github.com/rose-token/treasury/internal/treasury"
)

type ctxKey int

const authedKey ctxKey = 1

func isAuthenticated(r *http.Request) bool {
	v, _ := r.Context().Value(authedKey).(bool)
	return v
}

// NewServer creates an HTTP server with all routes configured. Routes that
// mutate privileged state require the admin API key; deposit, redeem and
// rebalance are open and identify callers via the X-Account header.
func NewServer(port string, engine *treasury.Engine, journal history.Repository, snapshots *snapshot.Service, adminAPIKey string) *http.Server {
	handler := NewHandler(engine, journal, snapshots)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/price", handler.GetPrice)
	mux.HandleFunc("GET /api/v1/vault", handler.GetVault)
	mux.HandleFunc("GET /api/v1/assets", handler.ListAssets)
	mux.HandleFunc("GET /api/v1/assets/{key}", handler.GetAsset)
	mux.HandleFunc("GET /api/v1/allocations", handler.GetAllocations)
	mux.HandleFunc("GET /api/v1/cooldowns", handler.GetCooldowns)
	mux.HandleFunc("GET /api/v1/rebalance-needed", handler.GetRebalanceNeeded)
	mux.HandleFunc("GET /api/v1/events", handler.ListEvents)
	mux.HandleFunc("GET /api/v1/snapshots/latest", handler.GetLatestSnapshot)
	mux.HandleFunc("GET /api/v1/snapshots/{date}", handler.GetSnapshotByDate)
	mux.HandleFunc("GET /api/v1/snapshots", handler.ListSnapshots)

	mux.HandleFunc("POST /api/v1/deposits", handler.Deposit)
	mux.HandleFunc("POST /api/v1/redemptions", handler.Redeem)
	mux.HandleFunc("POST /api/v1/rebalance", handler.Rebalance)

	admin := func(pattern string, next http.HandlerFunc) {
		mux.Handle(pattern, requireAuth(adminAPIKey, next))
	}
	admin("POST /api/v1/rebalance/force", handler.ForceRebalance)
	admin("POST /api/v1/swaps", handler.Swap)
	admin("PUT /api/v1/assets/{key}/allocation", handler.UpdateAllocation)
	admin("POST /api/v1/assets/{key}/deactivate", handler.DeactivateAsset)
	admin("POST /api/v1/assets/{key}/reactivate", handler.ReactivateAsset)
	admin("POST /api/v1/rebalancer", handler.SetRebalancer)
	admin("POST /api/v1/pause", handler.Pause)
	admin("POST /api/v1/unpause", handler.Unpause)
	admin("POST /api/v1/snapshots/generate", handler.GenerateSnapshot)

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "admin API key not configured")
			return
		}
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authedKey, true)))
	})
}
