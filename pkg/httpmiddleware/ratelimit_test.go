package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(limit int) (*RateLimiter, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(RateLimitConfig{Max: limit, Window: time.Minute})
	l.now = c.now
	return l, c
}

func hit(h http.Handler, session string) *httptest.ResponseRecorder {
	return hitFrom(h, session, "192.168.1.1")
}

func hitFrom(h http.Handler, session, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/session/order", nil)
	req.RemoteAddr = ip + ":12345"
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_OverLimit(t *testing.T) {
	l, _ := newTestLimiter(2)
	h := l.Middleware()(okHandler())

	for i := range 2 {
		w := hit(h, "a")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := hit(h, "a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":"rate_limited","message":"Muitas tentativas. Aguarde um momento e tente novamente."}`, w.Body.String())

	assert.Equal(t, http.StatusOK, hitFrom(h, "b", "10.0.0.2").Code, "callers are limited independently")
}

func TestRateLimit_RotatingSessions(t *testing.T) {
	l, _ := newTestLimiter(2)
	h := l.Middleware()(okHandler())

	require.Equal(t, http.StatusOK, hit(h, "s1").Code)
	require.Equal(t, http.StatusOK, hit(h, "s2").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "s3").Code, "a fresh session ID does not reset the IP budget")
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "").Code)

	// The rejected requests were not counted against the new sessions.
	assert.Equal(t, http.StatusOK, hitFrom(h, "s3", "10.0.0.2").Code)

	// A session keeps its budget when it moves between IPs.
	l2, _ := newTestLimiter(2)
	h2 := l2.Middleware()(okHandler())
	require.Equal(t, http.StatusOK, hitFrom(h2, "a", "10.0.0.3").Code)
	require.Equal(t, http.StatusOK, hitFrom(h2, "a", "10.0.0.4").Code)
	assert.Equal(t, http.StatusTooManyRequests, hitFrom(h2, "a", "10.0.0.5").Code, "the session budget follows the session across IPs")
}

func TestRateLimit_SlidingWindow(t *testing.T) {
	l, c := newTestLimiter(4)
	h := l.Middleware()(okHandler())

	for range 4 {
		require.Equal(t, http.StatusOK, hit(h, "a").Code)
	}
	require.Equal(t, http.StatusTooManyRequests, hit(h, "a").Code)

	// Halfway through the next window half of the previous count remains.
	c.t = c.t.Add(90 * time.Second)
	assert.Equal(t, http.StatusOK, hit(h, "a").Code)
	assert.Equal(t, http.StatusOK, hit(h, "a").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "a").Code)

	c.t = c.t.Add(3 * time.Minute)
	assert.Equal(t, http.StatusOK, hit(h, "a").Code)
}

func TestRateLimit_Evict(t *testing.T) {
	l, c := newTestLimiter(1)
	h := l.Middleware()(okHandler())
	hit(h, "a")
	hit(h, "")

	l.Evict()
	assert.Len(t, l.windows, 2)

	c.t = c.t.Add(3 * time.Minute)
	l.Evict()
	assert.Empty(t, l.windows)
}

func TestRateLimit_Disabled(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{})
	h := l.Middleware()(okHandler())
	for range 10 {
		w := hit(h, "a")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimit_RunStops(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{Max: 1, Window: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}

func TestSessionAndIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:4444"
	assert.Equal(t, []string{"ip:192.168.1.1"}, SessionAndIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	assert.Equal(t, []string{"ip:203.0.113.50"}, SessionAndIP(req))

	req.AddCookie(&http.Cookie{Name: "sf_session", Value: "c1"})
	assert.Equal(t, []string{"session:c1", "ip:203.0.113.50"}, SessionAndIP(req))

	req.Header.Set("X-Session-ID", "h1")
	assert.Equal(t, []string{"session:h1", "ip:203.0.113.50"}, SessionAndIP(req))
}
