package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/customform/config"
)

func TestRequireJSON(t *testing.T) {
	tests := []struct {
		ct   string
		want int
	}{
		{"application/json", http.StatusOK},
		{"application/json; charset=utf-8", http.StatusOK},
		{"application/merge-patch+json", http.StatusOK},
		{"application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"", http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/forms/x/check", strings.NewReader("{}"))
		if tt.ct != "" {
			req.Header.Set("Content-Type", tt.ct)
		}
		rec := httptest.NewRecorder()
		RequireJSON(okHandler).ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("Content-Type %q: status = %d, want %d", tt.ct, rec.Code, tt.want)
		}
	}
}

func TestLimitBodySize(t *testing.T) {
	var readErr error
	h := LimitBodySize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	if readErr == nil {
		t.Error("expected read error for oversized body")
	}

	readErr = nil
	LimitBodySize(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	if readErr != nil {
		t.Errorf("unlimited read failed: %v", readErr)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFoundHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `"not_found"`) {
		t.Errorf("404 handler: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	MethodNotAllowedHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/hello", nil))
	if rec.Code != http.StatusMethodNotAllowed || !strings.Contains(rec.Body.String(), `"method_not_allowed"`) {
		t.Errorf("405 handler: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCORSFromConfig(t *testing.T) {
	cfg := &config.CoreConfig{}
	cfg.CORS.EnableCORS = true
	cfg.CORS.CORSAllowedOrigins = []string{"https://app.example"}
	cfg.CORS.CORSAllowedMethods = []string{"GET", "POST"}

	req := httptest.NewRequest(http.MethodGet, "/api/forms/x/config", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	CORSFromConfig(cfg)(okHandler).ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q", got)
	}

	rec = httptest.NewRecorder()
	CORSFromConfig(&config.CoreConfig{})(okHandler).ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disabled CORS set Allow-Origin = %q", got)
	}
}

func TestCompressFromConfig(t *testing.T) {
	body := strings.Repeat("Invalid Input Present ", 200)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	rec := httptest.NewRecorder()
	CompressFromConfig(&config.CoreConfig{EnableCompression: true})(h).ServeHTTP(rec, req)
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", got)
	}

	rec = httptest.NewRecorder()
	CompressFromConfig(&config.CoreConfig{})(h).ServeHTTP(rec, req)
	if got := rec.Header().Get("Content-Encoding"); got != "" {
		t.Errorf("compression disabled but Content-Encoding = %q", got)
	}
}
