// Package api exposes the read-only HTTP surface of the scanner:
// /ws/opportunities (the live broadcast feed), /healthz and /metrics. Adapted from
// the teacher's routes.go, trimmed to this system's scope — no auth
// middleware and no credential storage, since there are no user accounts
// or exchange credentials here.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arbscan/internal/api/middleware"
	"arbscan/internal/sink"
	"arbscan/pkg/utils"
)

// HealthStatus reports whether the scanner is making progress, consulted
// by /healthz.
type HealthStatus interface {
	TickCount() int64
	SkipCount() int64
}

// Dependencies wires the handlers this router exposes.
type Dependencies struct {
	Broadcast *sink.BroadcastSink
	Health    HealthStatus
	Logger    *utils.Logger
}

// SetupRoutes builds the router: /healthz, /metrics, /ws/opportunities.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS)

	router.HandleFunc("/healthz", healthzHandler(deps.Health)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if deps.Broadcast != nil {
		router.HandleFunc("/ws/opportunities", deps.Broadcast.ServeWS).Methods(http.MethodGet)
	}

	return router
}

func healthzHandler(h HealthStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticks, skipped := int64(0), int64(0)
		if h != nil {
			ticks = h.TickCount()
			skipped = h.SkipCount()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       "ok",
			"ticks":        ticks,
			"ticks_skipped": skipped,
		})
	}
}
