package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterAllowsUpToGlobalBurst(t *testing.T) {
	l := New(Config{
		GlobalRate:      10,
		GlobalBurst:     20,
		PerIPRate:       100,
		PerIPBurst:      200,
		CleanupInterval: time.Minute,
	})

	allowed := 0
	for i := 0; i < 25; i++ {
		if l.Allow("192.168.1.1") {
			allowed++
		}
	}
	if allowed < 19 || allowed > 21 {
		t.Errorf("expected ~20 allowed with burst=20, got %d", allowed)
	}
}

func TestLimiterPerIPIsolatesClients(t *testing.T) {
	l := New(Config{
		GlobalRate:      1000,
		GlobalBurst:     1000,
		PerIPRate:       5,
		PerIPBurst:      10,
		CleanupInterval: time.Minute,
	})

	allowed1 := 0
	for i := 0; i < 20; i++ {
		if l.Allow("10.0.0.1") {
			allowed1++
		}
	}
	if allowed1 < 9 || allowed1 > 11 {
		t.Errorf("expected ~10 allowed for first IP, got %d", allowed1)
	}

	allowed2 := 0
	for i := 0; i < 20; i++ {
		if l.Allow("10.0.0.2") {
			allowed2++
		}
	}
	if allowed2 < 9 || allowed2 > 11 {
		t.Errorf("expected ~10 allowed for second IP (independent bucket), got %d", allowed2)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.1, 10.0.0.1")
	r.RemoteAddr = "192.168.1.1:1234"

	if got := ClientIP(r); got != "203.0.113.1" {
		t.Errorf("ClientIP() = %q, want 203.0.113.1", got)
	}
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.168.1.100:54321"

	if got := ClientIP(r); got != "192.168.1.100" {
		t.Errorf("ClientIP() = %q, want 192.168.1.100", got)
	}
}

func TestMiddlewareRejectsOverBudget(t *testing.T) {
	l := New(Config{
		GlobalRate:      1,
		GlobalBurst:     1,
		PerIPRate:       1000,
		PerIPBurst:      1000,
		CleanupInterval: time.Minute,
	})

	called := 0
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(200)
	}))

	r := httptest.NewRequest("GET", "/socket.io/1/xhr-polling", nil)
	r.RemoteAddr = "10.0.0.5:1111"

	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r)
	if w1.Code != 200 {
		t.Fatalf("first request: got %d, want 200", w1.Code)
	}

	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r)
	if w2.Code != 429 {
		t.Fatalf("second request: got %d, want 429", w2.Code)
	}

	if called != 1 {
		t.Fatalf("downstream handler called %d times, want 1", called)
	}
}
