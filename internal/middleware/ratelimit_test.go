package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aiwriterpros/aiwriter/internal/auth"
	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// RateLimiter Tests
// =============================================================================

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, clockwork.NewFakeClock())

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("user:a"), "request %d should be allowed", i+1)
	}
	assert.False(t, rl.Allow("user:a"), "4th request should be denied")

	// Keys are independent.
	assert.True(t, rl.Allow("user:b"))
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(1, time.Minute, clock)

	require.True(t, rl.Allow("k"))
	require.False(t, rl.Allow("k"))

	clock.Advance(40 * time.Second)
	assert.Equal(t, 20*time.Second, rl.TimeUntilReset("k"))
	assert.False(t, rl.Allow("k"))

	clock.Advance(20 * time.Second)
	assert.Zero(t, rl.TimeUntilReset("k"))
	assert.True(t, rl.Allow("k"))
}

func TestRateLimiter_Sweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(5, time.Minute, clock)

	rl.Allow("old")
	clock.Advance(30 * time.Second)
	rl.Allow("new")
	clock.Advance(30 * time.Second)

	rl.Sweep()
	assert.Equal(t, 1, rl.Len())
	assert.Zero(t, rl.TimeUntilReset("old"))
}

func TestRateLimiter_RunStopsWithContext(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(5, time.Minute, clock)
	rl.Allow("k")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Run(ctx)
		close(done)
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return rl.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// =============================================================================
// RateLimitMiddleware Tests
// =============================================================================

func TestRateLimitMiddleware_PerUser(t *testing.T) {
	clock := clockwork.NewFakeClock()
	mw := NewRateLimitMiddleware(NewRateLimiter(2, time.Minute, clock), discardLogger())
	wrapped := mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	alice := &domain.User{ID: uuid.New()}
	bob := &domain.User{ID: uuid.New()}

	send := func(u *domain.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/generate/blog_creator", nil)
		// Both users share one IP; limits still apply per user.
		req.RemoteAddr = "198.51.100.7:5000"
		req = req.WithContext(auth.SetUser(req.Context(), u))
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send(alice).Code)
	assert.Equal(t, http.StatusOK, send(alice).Code)

	rec := send(alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.ERATELIMIT, body.Error.Code)

	assert.Equal(t, http.StatusOK, send(bob).Code)
}

func TestRateLimitKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:8080"
	assert.Equal(t, "ip:10.0.0.1", rateLimitKey(req))

	req.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "ip:203.0.113.9", rateLimitKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.1, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.1", rateLimitKey(req))

	id := uuid.New()
	req = req.WithContext(auth.SetUser(req.Context(), &domain.User{ID: id}))
	assert.Equal(t, "user:"+id.String(), rateLimitKey(req))
}
