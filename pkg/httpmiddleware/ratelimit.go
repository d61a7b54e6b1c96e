package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
)

// RateLimitConfig configures a sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window. Zero disables the
	// limiter.
	Max    int           `json:"max" yaml:"max"`
	Window time.Duration `json:"window" yaml:"window"`
	// KeyFunc returns the budgets a request draws from. A request passes
	// only when every key has room left, and then counts against all of
	// them. Defaults to SessionAndIP.
	KeyFunc func(*http.Request) []string `json:"-" yaml:"-"`
}

type window struct {
	start time.Time
	prev  float64
	curr  float64
}

// RateLimiter limits requests per caller with a sliding window: the count of
// the previous fixed window is weighted by how much of it still overlaps.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewRateLimiter returns a limiter. Call Run to evict idle callers.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = SessionAndIP
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// take records a request against every key and reports whether it is
// allowed. A rejected request is not counted.
func (l *RateLimiter) take(keys []string) (remaining int, reset time.Time, ok bool) {
	now := l.now()
	start := now.Truncate(l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	remaining = l.cfg.Max
	windows := make([]*window, 0, len(keys))
	for _, key := range keys {
		w := l.windows[key]
		switch {
		case w == nil:
			w = &window{start: start}
			l.windows[key] = w
		case start.Sub(w.start) == l.cfg.Window:
			w.prev, w.curr, w.start = w.curr, 0, start
		case start.After(w.start):
			w.prev, w.curr, w.start = 0, 0, start
		}

		overlap := 1 - float64(now.Sub(w.start))/float64(l.cfg.Window)
		used := w.prev*overlap + w.curr
		reset = w.start.Add(l.cfg.Window)
		if used >= float64(l.cfg.Max) {
			return 0, reset, false
		}
		remaining = min(remaining, max(0, l.cfg.Max-int(math.Ceil(used+1))))
		windows = append(windows, w)
	}
	for _, w := range windows {
		w.curr++
	}
	return remaining, reset, true
}

// Evict drops callers idle for two windows.
func (l *RateLimiter) Evict() {
	cutoff := l.now().Add(-2 * l.cfg.Window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if w.start.Before(cutoff) {
			delete(l.windows, key)
		}
	}
}

// Run evicts idle callers every two windows until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Evict()
		}
	}
}

// Middleware enforces the limit. Rejected requests get 429 with a
// {code,message} body and Retry-After.
func (l *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		if l.cfg.Max <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, reset, ok := l.take(l.cfg.KeyFunc(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retry := max(0, reset.Sub(l.now()))
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			h.Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)

			var e jx.Encoder
			e.ObjStart()
			e.FieldStart("code")
			e.Str("rate_limited")
			e.FieldStart("message")
			e.Str("Muitas tentativas. Aguarde um momento e tente novamente.")
			e.ObjEnd()
			_, _ = w.Write(e.Bytes())
		})
	}
}

// SessionAndIP keys requests by the X-Session-ID header or sf_session
// cookie and, always, by the client IP. Session IDs are chosen by the
// client, so the IP budget caps callers that rotate them.
func SessionAndIP(r *http.Request) []string {
	ip := "ip:" + ClientIP(r)
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return []string{"session:" + id, ip}
	}
	if c, err := r.Cookie("sf_session"); err == nil && c.Value != "" {
		return []string{"session:" + c.Value, ip}
	}
	return []string{ip}
}

// ClientIP returns the first X-Forwarded-For address, X-Real-IP, or the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
