// middleware/contenttype.go
package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/dalemusser/customform/httputil"
)

// RequireJSON rejects requests whose Content-Type is not JSON
// ("application/json" or any "+json" type) with 415.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || (mt != "application/json" && !strings.HasSuffix(mt, "+json")) {
			httputil.JSONError(w, http.StatusUnsupportedMediaType,
				"unsupported_media_type", "Content-Type must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}
