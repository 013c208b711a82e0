// auth/apikey/apikey.go
package apikey

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dalemusser/customform/httputil"
	"go.uber.org/zap"
)

// Options control how the API-key middleware behaves.
type Options struct {
	// Realm is used in the WWW-Authenticate header. Default: "customform-admin".
	Realm string

	// CookieName, if non-empty, enables cookie-based auth for browser flows.
	// A request authenticated by header or query gets a cookie holding the
	// key; later requests without a key fall back to it.
	CookieName string

	// CookieSecure marks that cookie Secure. Leave false only for plain
	// HTTP development servers.
	CookieSecure bool
}

// Require returns a middleware that enforces a static API key.
// Key lookup order:
//  1. Authorization: Bearer <token>
//  2. X-API-Key header
//  3. api_key query param
//  4. Cookie (if Options.CookieName is set)
func Require(expected string, opts Options, logger *zap.Logger) func(next http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	if logger == nil {
		logger = zap.NewNop()
	}
	realm := strings.TrimSpace(opts.Realm)
	if realm == "" {
		realm = "customform-admin"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				logger.Warn("apikey.Require used with empty expected key")
				httputil.JSONError(w, http.StatusInternalServerError, "misconfigured", "server misconfigured")
				return
			}

			key, ok := fromRequest(r)
			fromCookie := false
			if !ok && opts.CookieName != "" {
				if c, err := r.Cookie(opts.CookieName); err == nil {
					if val := strings.TrimSpace(c.Value); val != "" {
						key, ok, fromCookie = val, true, true
					}
				}
			}

			if !ok || subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
				logger.Warn("API key unauthorized",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_ip", r.RemoteAddr),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="`+realm+`"`)
				httputil.JSONError(w, http.StatusUnauthorized, "unauthorized", "a valid API key is required")
				return
			}

			if opts.CookieName != "" && !fromCookie {
				http.SetCookie(w, &http.Cookie{
					Name:     opts.CookieName,
					Value:    expected,
					Path:     "/",
					Secure:   opts.CookieSecure,
					HttpOnly: true,
					SameSite: http.SameSiteStrictMode,
				})
			}

			next.ServeHTTP(w, r)
		})
	}
}

func fromRequest(r *http.Request) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		if token := strings.TrimSpace(auth[len("Bearer "):]); token != "" {
			return token, true
		}
	}
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, true
	}
	if key := strings.TrimSpace(r.URL.Query().Get("api_key")); key != "" {
		return key, true
	}
	return "", false
}
