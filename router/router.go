// router/router.go
package router

import (
	"github.com/dalemusser/customform/config"
	"github.com/dalemusser/customform/logging"
	"github.com/dalemusser/customform/metrics"
	"github.com/dalemusser/customform/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// New returns a chi.Router with the standard middleware stack:
//   - RequestID, RealIP
//   - Recoverer (panic → 500)
//   - body size limit (max_request_body_bytes)
//   - metrics, access log
//   - security headers, CORS and compression per config
//   - JSON NotFound / MethodNotAllowed handlers
//
// Routes, health and /metrics are mounted by the caller.
func New(coreCfg *config.CoreConfig, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.Recoverer(logger))
	r.Use(middleware.LimitBodySize(coreCfg.MaxRequestBodyBytes))
	r.Use(metrics.HTTPMetrics)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.SecureDefaults())
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.CompressFromConfig(coreCfg))

	r.NotFound(middleware.NotFoundHandler(logger))
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler(logger))

	return r
}
