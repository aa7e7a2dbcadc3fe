package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCorrelationID_IssuesAndEchoesID(t *testing.T) {
	var seen string
	h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if seen == "" {
		t.Fatal("expected a generated correlation id on the request context")
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != seen {
		t.Fatalf("expected response header to echo %q, got %q", seen, got)
	}
}

func TestCorrelationID_ReusesCallerID(t *testing.T) {
	var seen string
	h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queues", nil)
	req.Header.Set("X-Correlation-ID", "caller-supplied")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "caller-supplied" {
		t.Fatalf("expected caller id to be kept, got %q", seen)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != "caller-supplied" {
		t.Fatalf("expected caller id echoed, got %q", got)
	}
}

func TestGetCorrelationID_OutsideMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetCorrelationID(req.Context()); got != "" {
		t.Fatalf("expected empty id without the middleware, got %q", got)
	}
}
