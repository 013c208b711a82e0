// Package health serves the /health endpoint with optional dependency
// probes (configuration store, session redis).
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dalemusser/customform/httputil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Check probes one dependency and returns nil when it is healthy.
type Check func(ctx context.Context) error

// Response is the JSON body of the health endpoint.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// checkTimeout bounds each probe so a hung backend cannot stall the
// endpoint.
const checkTimeout = 3 * time.Second

// Handler runs every check per request. Any failure yields 503 with
// status "error"; otherwise 200 with status "ok".
func Handler(checks map[string]Check, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(names) == 0 {
			httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok"})
			return
		}

		results := make(map[string]string, len(names))
		failed := false
		for _, name := range names {
			check := checks[name]
			if check == nil {
				results[name] = "ok"
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				failed = true
				results[name] = "error: " + err.Error()
				logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
				continue
			}
			results[name] = "ok"
		}

		if failed {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, Response{Status: "error", Checks: results})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok", Checks: results})
	})
}

// Mount registers GET /health on r.
func Mount(r chi.Router, checks map[string]Check, logger *zap.Logger) {
	r.Method(http.MethodGet, "/health", Handler(checks, logger))
}
