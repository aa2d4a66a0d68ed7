package middlewares

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func corsHandler(allowed []string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return WithCORS(allowed)(next)
}

func TestWithCORS_AllowedOrigin(t *testing.T) {
	h := corsHandler([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/v1/records", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow-origin = %q", got)
	}
	expose := rec.Header().Get("Access-Control-Expose-Headers")
	if !strings.Contains(expose, "X-Session-Token") {
		t.Errorf("expose headers must include the minted session token, got %q", expose)
	}
	if !strings.Contains(expose, "Retry-After") {
		t.Errorf("expose headers must include rate limit backoff, got %q", expose)
	}
}

func TestWithCORS_UnknownOrigin(t *testing.T) {
	h := corsHandler([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/v1/records", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin must not be echoed, got %q", got)
	}
	// Vary va siempre, para proxies
	if vary := rec.Header().Values("Vary"); len(vary) == 0 {
		t.Error("Vary headers missing on non-CORS response")
	}
}

func TestWithCORS_WildcardAndPreflight(t *testing.T) {
	h := corsHandler([]string{"*"})

	req := httptest.NewRequest(http.MethodOptions, "/v1/records", nil)
	req.Header.Set("Origin", "https://anything.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://anything.example.com" {
		t.Errorf("wildcard must echo the origin, got %q", got)
	}
}
