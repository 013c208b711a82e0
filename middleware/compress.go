// middleware/compress.go
package middleware

import (
	"net/http"

	"github.com/dalemusser/customform/config"
	"github.com/go-chi/chi/v5/middleware"
)

// compressLevel balances CPU cost against ratio for small HTML/JSON bodies.
const compressLevel = 5

var compressTypes = []string{
	"text/html",
	"text/css",
	"text/plain",
	"text/javascript",
	"application/javascript",
	"application/json",
}

// CompressFromConfig gzip/deflate-compresses textual responses when
// enable_compression is set, and is a no-op otherwise.
func CompressFromConfig(coreCfg *config.CoreConfig) func(next http.Handler) http.Handler {
	if coreCfg == nil || !coreCfg.EnableCompression {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.Compress(compressLevel, compressTypes...)
}
