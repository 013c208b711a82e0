// templates/adapter.go
package templates

import (
	"bytes"
	"net/http"

	"go.uber.org/zap"
)

// Render writes page as an HTML response with the given status. On a
// template error nothing of the page is sent; the client gets a plain 500.
func (e *Engine) Render(w http.ResponseWriter, status int, page string, data any) {
	var buf bytes.Buffer
	if err := e.Execute(&buf, page, data); err != nil {
		e.logger.Error("template render failed", zap.String("page", page), zap.Error(err))
		http.Error(w, "template exec error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
