// Package health serves liveness and readiness probes.
//
// Checks run in the background and flip state only after a run of
// consecutive results, so a single slow ping does not take the instance out
// of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Option configures a check.
type Option func(*check)

// WithThresholds sets how many consecutive failures mark a check unhealthy
// and how many consecutive successes mark it healthy again. Defaults: 3, 1.
func WithThresholds(failures, successes int) Option {
	return func(c *check) {
		c.failAfter = max(1, failures)
		c.okAfter = max(1, successes)
	}
}

// StartUnhealthy makes a check report unhealthy until it first passes.
func StartUnhealthy() Option {
	return func(c *check) { c.healthy.Store(false) }
}

type check struct {
	name      string
	timeout   time.Duration
	fn        CheckFunc
	failAfter int
	okAfter   int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Owned by the goroutine calling run.
	fails int
	oks   int
}

func newCheck(name string, timeout time.Duration, fn CheckFunc, opts []Option) *check {
	c := &check{name: name, timeout: timeout, fn: fn, failAfter: 3, okAfter: 1}
	c.healthy.Store(true)
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)
	if err != nil {
		c.oks = 0
		c.fails++
		if c.fails >= c.failAfter {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	c.oks++
	if c.oks >= c.okAfter {
		c.healthy.Store(true)
	}
}

// status returns "" when healthy, otherwise the last error text.
func (c *check) status() string {
	if c.healthy.Load() {
		return ""
	}
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error()
	}
	return "unhealthy"
}

// Health holds the registered checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that reports whether the process works.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn, opts))
}

// AddReadinessCheck registers a check that reports whether the instance can
// serve traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn, opts))
}

// Start runs every check immediately and then once per interval, each in its
// own goroutine, until Stop is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := slices.Concat(h.liveness, h.readiness)
	h.mu.Unlock()

	for _, c := range checks {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				c.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop cancels the check goroutines and waits for them. It is idempotent.
func (h *Health) Stop() {
	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// SetReady sets the manual readiness flag: true once initialization is done,
// false when draining before shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the flag is set and every readiness check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.readiness {
		if c.status() != "" {
			return false
		}
	}
	return true
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := slices.Clone(h.liveness)
	h.mu.RUnlock()
	writeReport(w, checks, "")
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := slices.Clone(h.readiness)
	h.mu.RUnlock()

	notReady := ""
	if !h.ready.Load() {
		notReady = "service is not ready"
	}
	writeReport(w, checks, notReady)
}

// writeReport writes {"status":"ok"|"unhealthy","checks":{name:"ok"|error}}
// with 200 or 503.
func writeReport(w http.ResponseWriter, checks []*check, notReady string) {
	slices.SortFunc(checks, func(a, b *check) int {
		switch {
		case a.name < b.name:
			return -1
		case a.name > b.name:
			return 1
		}
		return 0
	})

	healthy := notReady == ""
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("checks")
	e.ObjStart()
	for _, c := range checks {
		e.FieldStart(c.name)
		if msg := c.status(); msg != "" {
			healthy = false
			e.Str(msg)
		} else {
			e.Str("ok")
		}
	}
	if notReady != "" {
		e.FieldStart("_readiness")
		e.Str(notReady)
	}
	e.ObjEnd()
	e.FieldStart("status")
	status := http.StatusOK
	if healthy {
		e.Str("ok")
	} else {
		e.Str("unhealthy")
		status = http.StatusServiceUnavailable
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
