package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	RegisterDefault(nil)
	RegisterDefault(nil) // second call is a no-op

	before := testutil.ToFloat64(validationTotal.WithLabelValues("f", "email", "domain_not_allowed"))
	ObserveValidation("f", "email", "domain_not_allowed")
	if got := testutil.ToFloat64(validationTotal.WithLabelValues("f", "email", "domain_not_allowed")); got != before+1 {
		t.Errorf("validation counter = %v, want %v", got, before+1)
	}

	ObserveSubmission("f", ResultSaved)
	if got := testutil.ToFloat64(submissionsTotal.WithLabelValues("f", ResultSaved)); got < 1 {
		t.Errorf("submission counter = %v", got)
	}

	ObserveLoginLink("generated")
	if got := testutil.ToFloat64(loginLinksTotal.WithLabelValues("generated")); got < 1 {
		t.Errorf("login link counter = %v", got)
	}
}

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	RegisterDefault(nil)
	r := chi.NewRouter()
	r.Use(HTTPMetrics)
	r.Get("/forms/{formID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/forms/custom_form_config", nil))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	want := `http_request_duration_seconds_count{method="GET",path="/forms/{formID}",status="204"} 1`
	if !strings.Contains(body, want) {
		t.Errorf("exposition missing %s", want)
	}
	if strings.Contains(body, `path="/forms/custom_form_config"`) {
		t.Error("raw path used as label")
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 3, "abc"},
		{"héllo", 2, "h"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateUTF8(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	RegisterDefault(nil)
	ObserveLoginLink("redeemed")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "customform_login_links_total") {
		t.Error("login link counter missing from exposition")
	}
}
