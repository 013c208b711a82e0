// session/middleware.go
package session

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

type ctxKey struct{}

// Middleware loads the session into the request context and saves it
// before the first byte of the response if it changed.
func Middleware(m *Manager, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := m.Get(r)
			if err != nil {
				logger.Warn("session load failed; starting a new one", zap.Error(err))
				if s, err = m.New(); err != nil {
					http.Error(w, "session unavailable", http.StatusInternalServerError)
					return
				}
			}
			r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, s))
			sw := &saveWriter{ResponseWriter: w, r: r, s: s, m: m, logger: logger}
			next.ServeHTTP(sw, r)
			sw.flush()
		})
	}
}

// FromContext returns the request's session, or nil outside Middleware.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}

// saveWriter persists the session just before headers go out, since the
// cookie cannot be set afterwards.
type saveWriter struct {
	http.ResponseWriter
	r      *http.Request
	s      *Session
	m      *Manager
	logger *zap.Logger
	done   bool
}

func (sw *saveWriter) flush() {
	if sw.done {
		return
	}
	sw.done = true
	if !sw.s.Modified() {
		return
	}
	if err := sw.m.Save(sw.ResponseWriter, sw.r, sw.s); err != nil {
		sw.logger.Error("session save failed", zap.Error(err))
	}
}

func (sw *saveWriter) WriteHeader(code int) {
	sw.flush()
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *saveWriter) Write(b []byte) (int, error) {
	sw.flush()
	return sw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *saveWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }
