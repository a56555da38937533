package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := RateLimitConfig{
		Requests: 2,
		Window:   time.Second,
		Logger:   logger,
	}

	handler := RateLimit(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))

	// First request should succeed
	req1 := httptest.NewRequest("POST", "/login", nil)
	req1.RemoteAddr = "192.168.1.1:12345"
	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req1)

	if w1.Code != http.StatusOK {
		t.Errorf("First request: got status %d, want %d", w1.Code, http.StatusOK)
	}

	// Second request should succeed
	req2 := httptest.NewRequest("POST", "/login", nil)
	req2.RemoteAddr = "192.168.1.1:12345"
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)

	if w2.Code != http.StatusOK {
		t.Errorf("Second request: got status %d, want %d", w2.Code, http.StatusOK)
	}

	// Third request should be rate limited
	req3 := httptest.NewRequest("POST", "/login", nil)
	req3.RemoteAddr = "192.168.1.1:12345"
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, req3)

	if w3.Code != http.StatusTooManyRequests {
		t.Errorf("Third request: got status %d, want %d", w3.Code, http.StatusTooManyRequests)
	}
}

func TestCreateRateLimiters(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	limiters := CreateRateLimiters(logger)

	for _, name := range []string{"auth", "reset", "verify", "refresh"} {
		if limiters[name] == nil {
			t.Errorf("missing %q rate limiter", name)
		}
	}
}
