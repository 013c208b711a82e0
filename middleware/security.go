// middleware/security.go
package middleware

import (
	"net/http"
	"strconv"
)

// SecurityHeadersOptions selects the security headers to send. An empty
// string (or zero HSTSMaxAge) leaves that header out.
type SecurityHeadersOptions struct {
	XFrameOptions         string
	XContentTypeOptions   string
	ReferrerPolicy        string
	ContentSecurityPolicy string
	PermissionsPolicy     string

	// HSTS is only sent on TLS requests.
	HSTSMaxAge            int
	HSTSIncludeSubDomains bool
	HSTSPreload           bool
}

// DefaultSecurityHeadersOptions fits the form pages: everything loads from
// our own origin, and the live-validation script may open a WebSocket back
// to it.
func DefaultSecurityHeadersOptions() SecurityHeadersOptions {
	return SecurityHeadersOptions{
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; connect-src 'self' ws: wss:; frame-ancestors 'none'; form-action 'self'",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=()",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubDomains: true,
	}
}

// SecurityHeaders sets the headers selected by opts on every response.
func SecurityHeaders(opts SecurityHeadersOptions) func(next http.Handler) http.Handler {
	static := [][2]string{
		{"X-Frame-Options", opts.XFrameOptions},
		{"X-Content-Type-Options", opts.XContentTypeOptions},
		{"Referrer-Policy", opts.ReferrerPolicy},
		{"Content-Security-Policy", opts.ContentSecurityPolicy},
		{"Permissions-Policy", opts.PermissionsPolicy},
	}
	var hsts string
	if opts.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(opts.HSTSMaxAge)
		if opts.HSTSIncludeSubDomains {
			hsts += "; includeSubDomains"
		}
		if opts.HSTSPreload {
			hsts += "; preload"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range static {
				if kv[1] != "" {
					h.Set(kv[0], kv[1])
				}
			}
			if hsts != "" && r.TLS != nil {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecureDefaults is SecurityHeaders(DefaultSecurityHeadersOptions()).
func SecureDefaults() func(next http.Handler) http.Handler {
	return SecurityHeaders(DefaultSecurityHeadersOptions())
}
