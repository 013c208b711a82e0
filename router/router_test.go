package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/customform/config"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func TestNew(t *testing.T) {
	r := New(&config.CoreConfig{MaxRequestBodyBytes: 1024}, nil)

	var reqID string
	r.Get("/hello", func(w http.ResponseWriter, req *http.Request) {
		reqID = chimw.GetReqID(req.Context())
		_, _ = w.Write([]byte("Hello Anonymous"))
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/hello", http.StatusOK},
		{http.MethodGet, "/missing", http.StatusNotFound},
		{http.MethodPost, "/hello", http.StatusMethodNotAllowed},
		{http.MethodGet, "/panic", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s %s: security headers missing", tt.method, tt.path)
		}
	}
	if reqID == "" {
		t.Error("request id not assigned")
	}
}
