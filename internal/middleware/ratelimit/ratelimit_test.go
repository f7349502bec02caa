package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(perMinute int) (*Limiter, *time.Time) {
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllowWithinWindow(t *testing.T) {
	rl, now := newTestLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("a") {
		t.Fatal("fourth request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other keys are independent")
	}
	if got := rl.GetMetrics().TotalHits; got != 1 {
		t.Errorf("TotalHits = %d, want 1", got)
	}

	*now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("a new window should allow again")
	}
}

func TestWindowDoesNotSlide(t *testing.T) {
	rl, now := newTestLimiter(2)
	defer rl.Stop()

	rl.Allow("a")
	*now = now.Add(50 * time.Second)
	rl.Allow("a")
	if rl.Allow("a") {
		t.Fatal("third request in the window should be limited")
	}
	if d := rl.RetryAfter("a"); d != 10*time.Second {
		t.Errorf("RetryAfter = %v, want 10s", d)
	}
}

func TestResetAndCleanup(t *testing.T) {
	rl, now := newTestLimiter(1)
	defer rl.Stop()

	rl.Allow("a")
	rl.Reset("a")
	if !rl.Allow("a") {
		t.Fatal("reset key should be allowed")
	}

	rl.Allow("b")
	*now = now.Add(11 * time.Minute)
	rl.cleanupStaleEntries()
	if got := rl.ActiveClients(); got != 0 {
		t.Errorf("ActiveClients = %d, want 0", got)
	}
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(1)
	defer rl.Stop()

	h := rl.Middleware(func(r *http.Request) string { return r.RemoteAddr }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "61" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	rl.Stop()
}
