package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisClientForTest(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return server, client
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(t *testing.T, h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/info", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLocalRateLimiterDeniesOverLimit(t *testing.T) {
	h := NewRateLimiter(2, time.Minute).Middleware()(okHandler())

	for i := 0; i < 2; i++ {
		if rec := hit(t, h, "10.0.0.1:1234"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := hit(t, h, "10.0.0.1:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// Another client is unaffected.
	if rec := hit(t, h, "10.0.0.2:1234"); rec.Code != http.StatusOK {
		t.Fatalf("expected other client to pass, got %d", rec.Code)
	}
}

func TestRedisRateLimiterSharesWindow(t *testing.T) {
	server, client := newRedisClientForTest(t)

	limiter := NewRedisFixedWindowLimiter(client, "test")
	h := NewDistributedRateLimiter(limiter, 2, time.Minute, FailClosed, "api").Middleware()(okHandler())

	for i := 0; i < 2; i++ {
		if rec := hit(t, h, "10.0.0.1:1234"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	if rec := hit(t, h, "10.0.0.1:1234"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	// The window resets after the TTL elapses.
	server.FastForward(2 * time.Minute)
	if rec := hit(t, h, "10.0.0.1:1234"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after window reset, got %d", rec.Code)
	}
}

func TestRateLimiterFailureModes(t *testing.T) {
	_, client := newRedisClientForTest(t)
	_ = client.Close()

	limiter := NewRedisFixedWindowLimiter(client, "test")

	open := NewDistributedRateLimiter(limiter, 1, time.Minute, FailOpen, "api").Middleware()(okHandler())
	if rec := hit(t, open, "10.0.0.1:1234"); rec.Code != http.StatusOK {
		t.Fatalf("fail-open: expected 200, got %d", rec.Code)
	}

	closed := NewDistributedRateLimiter(limiter, 1, time.Minute, FailClosed, "api").Middleware()(okHandler())
	if rec := hit(t, closed, "10.0.0.1:1234"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("fail-closed: expected 429, got %d", rec.Code)
	}
}
