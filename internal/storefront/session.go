// Package storefront owns the per-session application state: cart,
// neighborhood selection, product filter, delivery form, notifications and
// carousel.
package storefront

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/carousel"
	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/filter"
	"github.com/xenking/storefront/internal/notify"
	"github.com/xenking/storefront/internal/order"
	"github.com/xenking/storefront/internal/storage"
)

var (
	// ErrUnknownProduct is returned when adding a product not in the catalog.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrUnknownNeighborhood is returned when selecting a neighborhood not in
	// the catalog.
	ErrUnknownNeighborhood = errors.New("unknown neighborhood")
)

// Notification texts.
const (
	AddedNotice              = "%s adicionado ao carrinho!"
	NeighborhoodsErrorNotice = "Erro ao carregar bairros de entrega."
)

// Session is the state of one storefront visitor. All methods are safe for
// concurrent use; operations on one session are serialised.
type Session struct {
	id      string
	cat     *catalog.Catalog
	slots   storage.Slots
	metrics *Metrics
	lg      *zap.Logger

	debouncer *filter.Debouncer
	notices   *notify.Queue
	carousel  *carousel.Carousel

	mu            sync.Mutex
	engine        *cart.Engine
	composer      *order.Composer
	neighborhood  string
	criteria      filter.Criteria
	pendingSearch string
	lastUsed      time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Products returns the catalog filtered and sorted with the committed
// criteria.
func (s *Session) Products() []catalog.Product {
	s.mu.Lock()
	c := s.criteria
	s.mu.Unlock()
	return filter.Apply(s.cat.Products(), c)
}

// Criteria returns the committed filter criteria and whether a search
// recomputation is pending.
func (s *Session) Criteria() (filter.Criteria, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria, s.debouncer.Pending()
}

// SetFilter updates the criteria. A change of category or sort mode applies
// at once, together with the current search text, and cancels any pending
// search. A change of search text alone is applied after the debounce delay.
// It reports whether the criteria were committed immediately.
func (s *Session) SetFilter(c filter.Criteria) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingSearch = c.Search
	if c.Category != s.criteria.Category || c.Sort != s.criteria.Sort {
		s.debouncer.Stop()
		s.criteria = c
		return true
	}
	if c.Search == s.criteria.Search {
		s.debouncer.Stop()
		return true
	}

	s.debouncer.Trigger(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.criteria.Search = s.pendingSearch
	})
	return false
}

// Cart returns a copy of the cart.
func (s *Session) Cart() cart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Cart()
}

// Totals computes the cart totals with the selected neighborhood fee.
func (s *Session) Totals() cart.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Totals(s.fee())
}

func (s *Session) fee() decimal.Decimal {
	fee, _ := s.cat.DeliveryFee(s.neighborhood)
	return fee
}

// AddToCart adds one unit of the named catalog product.
func (s *Session) AddToCart(ctx context.Context, name string) (cart.Line, error) {
	p, ok := s.cat.Product(name)
	if !ok {
		return cart.Line{}, ErrUnknownProduct
	}

	s.mu.Lock()
	l := s.engine.Add(ctx, p)
	s.mu.Unlock()

	s.metrics.cartMutation(ctx, "add")
	s.notices.Info(fmt.Sprintf(AddedNotice, p.Name))
	return l, nil
}

// ChangeQuantity adds delta to a line. Unknown lines are ignored.
func (s *Session) ChangeQuantity(ctx context.Context, lineID string, delta int) bool {
	s.mu.Lock()
	changed := s.engine.ChangeQuantity(ctx, lineID, delta)
	s.mu.Unlock()

	if changed {
		s.metrics.cartMutation(ctx, "change")
	}
	return changed
}

// RemoveLine removes a line. Unknown lines are ignored.
func (s *Session) RemoveLine(ctx context.Context, lineID string) bool {
	s.mu.Lock()
	removed := s.engine.Remove(ctx, lineID)
	s.mu.Unlock()

	if removed {
		s.metrics.cartMutation(ctx, "remove")
	}
	return removed
}

// ClearCart empties the cart if c confirms.
func (s *Session) ClearCart(ctx context.Context, c cart.Confirmer) bool {
	s.mu.Lock()
	cleared := s.engine.Clear(ctx, c)
	s.mu.Unlock()

	if cleared {
		s.metrics.cartMutation(ctx, "clear")
	}
	return cleared
}

// Neighborhood returns the selected neighborhood name, empty if none.
func (s *Session) Neighborhood() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.neighborhood
}

// SelectNeighborhood stores the selection. An empty name clears it.
func (s *Session) SelectNeighborhood(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name != "" {
		if _, ok := s.cat.Neighborhood(name); !ok {
			return ErrUnknownNeighborhood
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.neighborhood = name
	s.composer.SyncNeighborhood(name)

	key := storage.NeighborhoodKey(s.id)
	var err error
	if name == "" {
		err = s.slots.Delete(ctx, key)
	} else {
		err = s.slots.Set(ctx, key, []byte(name))
	}
	if err != nil {
		s.lg.Error("Failed to save neighborhood", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// OpenCheckout opens the delivery form.
func (s *Session) OpenCheckout() order.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composer.Open(s.neighborhood)
	return s.composer.Form()
}

// CloseCheckout closes the delivery form.
func (s *Session) CloseCheckout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composer.Close()
}

// Checkout returns the delivery form state and values.
func (s *Session) Checkout() (order.State, order.Form) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composer.State(), s.composer.Form()
}

// SubmitOrder validates and hands off the order. See order.Composer.Submit.
func (s *Session) SubmitOrder(ctx context.Context, f order.Form) (*order.Result, error) {
	s.mu.Lock()
	res, err := s.composer.Submit(ctx, f)
	s.mu.Unlock()

	var chErr *order.ChannelError
	switch {
	case err == nil:
		s.metrics.order(ctx, "sent")
	case errors.As(err, &chErr):
		s.metrics.order(ctx, "channel_failed")
	default:
		s.metrics.order(ctx, "rejected")
	}
	if res != nil && res.Cleared {
		s.metrics.cartMutation(ctx, "clear")
	}
	return res, err
}

// Notices returns the active notifications.
func (s *Session) Notices() []notify.Notice { return s.notices.Active() }

// Carousel returns the session carousel.
func (s *Session) Carousel() *carousel.Carousel { return s.carousel }

// SetReducedMotion turns carousel auto-advance off, or back on.
func (s *Session) SetReducedMotion(reduce bool) {
	s.carousel.SetAutoplay(!reduce)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) close() {
	s.debouncer.Stop()
}
