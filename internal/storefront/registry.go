package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/carousel"
	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/filter"
	"github.com/xenking/storefront/internal/notify"
	"github.com/xenking/storefront/internal/order"
	"github.com/xenking/storefront/internal/storage"
)

// DefaultIdleTTL is how long an unused session stays in memory.
const DefaultIdleTTL = 30 * time.Minute

// ErrInvalidSession is returned for session IDs that are not UUIDs.
var ErrInvalidSession = errors.New("invalid session id")

// Config holds the per-session settings.
type Config struct {
	Order            order.Config
	SearchDebounce   time.Duration
	NoticeTTL        time.Duration
	CarouselFrames   []string
	CarouselInterval time.Duration
	ReducedMotion    bool
	// IdleTTL is how long a session may stay unused before it is evicted
	// from memory. Its durable state stays in the slot store.
	IdleTTL time.Duration
}

// Registry creates sessions on first use and evicts idle ones.
type Registry struct {
	cfg     Config
	cat     *catalog.Catalog
	slots   storage.Slots
	metrics *Metrics
	lg      *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry(cfg Config, cat *catalog.Catalog, slots storage.Slots, metrics *Metrics, lg *zap.Logger) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	return &Registry{
		cfg:      cfg,
		cat:      cat,
		slots:    slots,
		metrics:  metrics,
		lg:       lg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string { return uuid.NewString() }

// Session returns the session with the given ID, restoring it from the slot
// store when it is not in memory.
func (r *Registry) Session(ctx context.Context, id string) (*Session, error) {
	if err := uuid.Validate(id); err != nil {
		return nil, ErrInvalidSession
	}
	now := r.now()

	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.touch(now)
		return s, nil
	}

	created := r.restore(ctx, id)
	created.lastUsed = now

	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		created.close()
		s.touch(now)
		return s, nil
	}
	r.sessions[id] = created
	r.mu.Unlock()

	r.metrics.sessionDelta(ctx, 1)
	return created, nil
}

func (r *Registry) restore(ctx context.Context, id string) *Session {
	lg := r.lg.With(zap.String("session", id))
	engine := cart.NewEngine(ctx, cart.NewSlotStore(r.slots, id, lg))

	s := &Session{
		id:        id,
		cat:       r.cat,
		slots:     r.slots,
		metrics:   r.metrics,
		lg:        lg,
		debouncer: filter.NewDebouncer(r.cfg.SearchDebounce),
		notices:   notify.NewQueue(r.cfg.NoticeTTL),
		carousel:  carousel.New(r.cfg.CarouselFrames, r.cfg.CarouselInterval, !r.cfg.ReducedMotion),
		engine:    engine,
		composer:  order.NewComposer(r.cfg.Order, id, engine, r.cat, lg),
	}

	key := storage.NeighborhoodKey(id)
	switch v, err := r.slots.Get(ctx, key); {
	case err == nil:
		s.neighborhood = string(v)
	case !errors.Is(err, storage.ErrNotFound):
		lg.Warn("Failed to read neighborhood", zap.String("key", key), zap.Error(err))
	}

	if st := r.cat.Status(catalog.DocNeighborhoods); st.Err != nil {
		s.notices.Error(NeighborhoodsErrorNotice)
	}
	return s
}

// Len returns the number of sessions in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Evict drops sessions unused for longer than the idle TTL and returns how
// many were dropped.
func (r *Registry) Evict(ctx context.Context) int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	var evicted []*Session
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, s)
		}
	}
	r.mu.Unlock()

	for _, s := range evicted {
		s.close()
	}
	if n := len(evicted); n > 0 {
		r.metrics.sessionDelta(ctx, -int64(n))
		r.lg.Debug("Evicted idle sessions", zap.Int("count", n))
	}
	return len(evicted)
}

// Run evicts idle sessions periodically until ctx is cancelled, then drops
// every session.
func (r *Registry) Run(ctx context.Context) {
	interval := r.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.Evict(ctx)
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
