package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDMiddlewarePreservesClientID(t *testing.T) {
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := requestIDFromContext(r.Context()); got != "client-supplied-id" {
			t.Fatalf("context request id = %q, want client-supplied-id", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/filters", nil)
	req.Header.Set(requestIDHeader, "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "client-supplied-id" {
		t.Fatalf("response request id = %q, want client-supplied-id", got)
	}
}

func TestMonitoringPathClassification(t *testing.T) {
	for _, path := range []string{"/healthz", "/metrics"} {
		if !isMonitoringPath(path) {
			t.Fatalf("%s must classify as monitoring traffic", path)
		}
	}
	for _, path := range []string{"/v1/chat", "/v1/retrieve", "/"} {
		if isMonitoringPath(path) {
			t.Fatalf("%s must not classify as monitoring traffic", path)
		}
	}
}
