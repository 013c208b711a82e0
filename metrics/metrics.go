// metrics/metrics.go
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "customform"

var reqDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: []float64{0.01, 0.1, 0.3, 1.2, 5},
	},
	[]string{"path", "method", "status"},
)

var validationTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validation_total",
		Help:      "Field validation results by form, field and outcome (valid or the failure kind).",
	},
	[]string{"form", "field", "outcome"},
)

var submissionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Form submissions by form and result (saved, rejected, error).",
	},
	[]string{"form", "result"},
)

var loginLinksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_links_total",
		Help:      "One-time login link events by result.",
	},
	[]string{"result"},
)

// Submission results.
const (
	ResultSaved    = "saved"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// RegisterDefault registers the Go and process collectors, the HTTP
// histogram and the form counters. Calling it twice is harmless.
func RegisterDefault(logger *zap.Logger) {
	mustRegister(logger, "Go collector", collectors.NewGoCollector())
	mustRegister(logger, "process collector", collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mustRegister(logger, "HTTP request histogram", reqDuration)
	mustRegister(logger, "validation counter", validationTotal)
	mustRegister(logger, "submission counter", submissionsTotal)
	mustRegister(logger, "login link counter", loginLinksTotal)
}

func mustRegister(logger *zap.Logger, name string, c prometheus.Collector) {
	err := prometheus.Register(c)
	if err == nil {
		return
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return
	}
	if logger != nil {
		logger.Fatal("failed to register "+name, zap.Error(err))
	}
	panic("metrics: failed to register " + name + ": " + err.Error())
}

// ObserveValidation counts one field validation. outcome is "valid" or the
// failure kind.
func ObserveValidation(form, field, outcome string) {
	validationTotal.WithLabelValues(form, field, outcome).Inc()
}

// ObserveSubmission counts one submit attempt.
func ObserveSubmission(form, result string) {
	submissionsTotal.WithLabelValues(form, result).Inc()
}

// ObserveLoginLink counts a login link event such as "generated",
// "missing_user", "redeemed" or "rejected".
func ObserveLoginLink(result string) {
	loginLinksTotal.WithLabelValues(result).Inc()
}

const maxPathLabelLength = 256

// HTTPMetrics records request durations labelled by chi route pattern, so
// /forms/{formID} is one series regardless of the form requested.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		protoMajor := r.ProtoMajor
		if protoMajor < 1 {
			protoMajor = 1
		}
		ww := middleware.NewWrapResponseWriter(w, protoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status < 100 || status > 599 {
			status = http.StatusInternalServerError
		}

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		if len(path) > maxPathLabelLength {
			path = truncateUTF8(path, maxPathLabelLength-3) + "..."
		}

		reqDuration.WithLabelValues(path, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// truncateUTF8 cuts s to at most maxBytes without splitting a rune.
func truncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
