package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTracingCallsDownstreamAndPreservesStatus(t *testing.T) {
	h := Tracing("gateway-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	r := httptest.NewRequest("GET", "/socket.io/1/xhr-polling/sess1", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
}

func TestTracingPropagatesRequestContext(t *testing.T) {
	var sawDone bool
	h := Tracing("gateway-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawDone = r.Context() != nil
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/socket.io/1/xhr-polling/sess1", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)

	if !sawDone {
		t.Error("expected downstream handler to observe a non-nil request context")
	}
}
