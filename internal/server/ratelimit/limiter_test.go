package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewLimiter(t *testing.T) {
	if l := NewLimiter(0, time.Minute, 10); l != nil {
		t.Fatal("NewLimiter(0) should return nil")
	}
	var l *Limiter
	if !l.Allow("x").Allowed {
		t.Fatal("nil limiter should allow")
	}
	l.Close()
}

func TestLimiter_Allow(t *testing.T) {
	// 5 requests per minute, burst of 5
	l := NewLimiter(5, time.Minute, 5)
	defer l.Close()

	for i := range 5 {
		r := l.Allow("ip:1")
		if !r.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if r.Limit != 5 {
			t.Errorf("expected Limit=5, got %d", r.Limit)
		}
	}
	r := l.Allow("ip:1")
	if r.Allowed {
		t.Fatal("6th request should be rate limited")
	}
	if r.Remaining != 0 {
		t.Errorf("expected Remaining=0, got %d", r.Remaining)
	}
	if r.RetryAfter < time.Second {
		t.Errorf("expected RetryAfter >= 1s, got %v", r.RetryAfter)
	}

	// Other keys keep their full quota.
	for range 5 {
		if !l.Allow("ip:2").Allowed {
			t.Fatal("ip:2 should not be rate limited")
		}
	}
}

func TestLimiter_Refill(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLimiter(60, time.Minute, 1)
	defer l.Close()
	l.now = func() time.Time { return now }

	if !l.Allow("k").Allowed {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("k").Allowed {
		t.Fatal("second request should be limited")
	}
	now = now.Add(time.Second)
	if !l.Allow("k").Allowed {
		t.Fatal("bucket should refill after a second")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLimiter(60, time.Minute, 2)
	defer l.Close()
	l.now = func() time.Time { return now }
	l.Allow("a")
	now = now.Add(time.Hour)
	l.Allow("b")
	l.Allow("b")
	l.cleanup(now.Add(-10 * time.Minute))
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
}

func TestMiddleware(t *testing.T) {
	l := NewLimiter(1, time.Minute, 1)
	defer l.Close()
	h := Middleware(l, func(*http.Request) string { return "k" }, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("first: status %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("X-RateLimit-Limit = %q", w.Header().Get("X-RateLimit-Limit"))
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second: status %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
}
