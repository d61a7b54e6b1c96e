package storefront

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/filter"
	"github.com/xenking/storefront/internal/notify"
	"github.com/xenking/storefront/internal/order"
	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/internal/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Helpers ---

func newCatalog() *catalog.Catalog {
	c := catalog.New()
	c.SetProducts([]catalog.Product{
		{Name: "Pizza", Price: decimal.NewFromInt(40), Category: "Pizzas"},
		{Name: "Suco de Laranja", Price: decimal.NewFromInt(8), Category: "Bebidas"},
		{Name: "Água", Price: decimal.NewFromInt(3), Category: "Bebidas"},
	})
	c.SetNeighborhoods([]catalog.Neighborhood{
		{Name: "Centro", DeliveryFee: decimal.NewFromInt(5)},
		{Name: "Praia", DeliveryFee: decimal.RequireFromString("7.5")},
	})
	return c
}

func newTestRegistry(t *testing.T, slots storage.Slots) *Registry {
	t.Helper()
	metrics, err := NewMetrics(nil)
	require.NoError(t, err)
	return NewRegistry(Config{
		Order:          order.Config{ChannelURL: order.ChannelURL("", "5522997407901"), ClearOnChannelFailure: true},
		SearchDebounce: 100 * time.Millisecond,
		CarouselFrames: []string{"banner1.jpg", "banner2.jpg"},
	}, newCatalog(), slots, metrics, zaptest.NewLogger(t))
}

func newTestSession(t *testing.T) (*Registry, *Session) {
	t.Helper()
	r := newTestRegistry(t, memory.New())
	s, err := r.Session(context.Background(), NewSessionID())
	require.NoError(t, err)
	t.Cleanup(r.closeAll)
	return r, s
}

// --- Tests ---

func TestSession_AddToCart(t *testing.T) {
	_, s := newTestSession(t)
	ctx := context.Background()

	l, err := s.AddToCart(ctx, "Pizza")
	require.NoError(t, err)
	assert.Equal(t, 1, l.Quantity)

	_, err = s.AddToCart(ctx, "Pizza")
	require.NoError(t, err)

	_, err = s.AddToCart(ctx, "Lasanha")
	require.ErrorIs(t, err, ErrUnknownProduct)

	c := s.Cart()
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 2, c.Lines[0].Quantity)

	notices := s.Notices()
	require.Len(t, notices, 2)
	assert.Equal(t, "Pizza adicionado ao carrinho!", notices[0].Message)
	assert.Equal(t, notify.LevelInfo, notices[0].Level)
}

func TestSession_TotalsFollowNeighborhood(t *testing.T) {
	_, s := newTestSession(t)
	ctx := context.Background()

	_, err := s.AddToCart(ctx, "Pizza")
	require.NoError(t, err)
	_, err = s.AddToCart(ctx, "Pizza")
	require.NoError(t, err)

	got := s.Totals()
	assert.Equal(t, "80", got.GrandTotal.String())

	require.NoError(t, s.SelectNeighborhood(ctx, "Centro"))
	got = s.Totals()
	assert.Equal(t, "80", got.Subtotal.String())
	assert.Equal(t, "5", got.DeliveryFee.String())
	assert.Equal(t, "85", got.GrandTotal.String())

	require.ErrorIs(t, s.SelectNeighborhood(ctx, "Longe"), ErrUnknownNeighborhood)
	assert.Equal(t, "Centro", s.Neighborhood())

	require.NoError(t, s.SelectNeighborhood(ctx, ""))
	assert.True(t, s.Totals().DeliveryFee.IsZero())
}

func TestSession_StateSurvivesEviction(t *testing.T) {
	ctx := context.Background()
	slots := memory.New()
	r := newTestRegistry(t, slots)
	defer r.closeAll()

	id := NewSessionID()
	s, err := r.Session(ctx, id)
	require.NoError(t, err)
	_, err = s.AddToCart(ctx, "Suco de Laranja")
	require.NoError(t, err)
	require.NoError(t, s.SelectNeighborhood(ctx, "Praia"))

	r.now = func() time.Time { return time.Now().Add(2 * DefaultIdleTTL) }
	assert.Equal(t, 1, r.Evict(ctx))
	assert.Zero(t, r.Len())

	restored, err := r.Session(ctx, id)
	require.NoError(t, err)
	assert.NotSame(t, s, restored)
	assert.Equal(t, "Praia", restored.Neighborhood())
	c := restored.Cart()
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "Suco de Laranja", c.Lines[0].Product.Name)
	assert.Equal(t, "15.5", restored.Totals().GrandTotal.String())
}

func TestRegistry_SessionIDs(t *testing.T) {
	r := newTestRegistry(t, memory.New())
	defer r.closeAll()
	ctx := context.Background()

	_, err := r.Session(ctx, "not-a-uuid")
	require.ErrorIs(t, err, ErrInvalidSession)

	id := NewSessionID()
	a, err := r.Session(ctx, id)
	require.NoError(t, err)
	b, err := r.Session(ctx, id)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, r.Len())

	assert.Zero(t, r.Evict(ctx), "recently used sessions stay")
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	r := newTestRegistry(t, memory.New())
	_, err := r.Session(context.Background(), NewSessionID())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
	assert.Zero(t, r.Len())
}

func TestSession_FilterDebounce(t *testing.T) {
	_, s := newTestSession(t)

	assert.Len(t, s.Products(), 3)

	immediate := s.SetFilter(filter.Criteria{Search: "laranja"})
	assert.False(t, immediate)
	_, pending := s.Criteria()
	assert.True(t, pending)
	assert.Len(t, s.Products(), 3, "search applies after the debounce delay")

	require.Eventually(t, func() bool { return len(s.Products()) == 1 }, time.Second, 5*time.Millisecond)

	s.SetFilter(filter.Criteria{Search: "laranja"})
	_, pending = s.Criteria()
	assert.False(t, pending)
}

func TestSession_CategoryAppliesImmediately(t *testing.T) {
	_, s := newTestSession(t)

	s.SetFilter(filter.Criteria{Search: "água"})
	immediate := s.SetFilter(filter.Criteria{Category: "bebidas", Search: "água", Sort: filter.SortPriceAsc})
	assert.True(t, immediate)

	c, pending := s.Criteria()
	assert.False(t, pending, "category change cancels the pending search")
	assert.Equal(t, "água", c.Search)

	got := s.Products()
	require.Len(t, got, 1)
	assert.Equal(t, "Água", got[0].Name)
}

func TestSession_ChangeAndRemove(t *testing.T) {
	_, s := newTestSession(t)
	ctx := context.Background()

	l, err := s.AddToCart(ctx, "Pizza")
	require.NoError(t, err)

	assert.True(t, s.ChangeQuantity(ctx, l.ID, 3))
	assert.Equal(t, 4, s.Cart().Lines[0].Quantity)
	assert.False(t, s.ChangeQuantity(ctx, "stale", 1))

	assert.True(t, s.RemoveLine(ctx, l.ID))
	assert.False(t, s.RemoveLine(ctx, l.ID))
	assert.True(t, s.Cart().Empty())

	_, err = s.AddToCart(ctx, "Pizza")
	require.NoError(t, err)
	assert.False(t, s.ClearCart(ctx, cart.ConfirmFunc(func(string) bool { return false })))
	assert.True(t, s.ClearCart(ctx, cart.ConfirmFunc(func(string) bool { return true })))
	assert.True(t, s.Cart().Empty())
}

func TestSession_Checkout(t *testing.T) {
	_, s := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.SelectNeighborhood(ctx, "Centro"))
	_, err := s.AddToCart(ctx, "Pizza")
	require.NoError(t, err)

	_, err = s.SubmitOrder(ctx, order.Form{})
	require.ErrorIs(t, err, order.ErrFormClosed)

	form := s.OpenCheckout()
	assert.Equal(t, "Centro", form.Neighborhood)

	require.NoError(t, s.SelectNeighborhood(ctx, "Praia"))
	state, form := s.Checkout()
	assert.Equal(t, order.StateCollecting, state)
	assert.Equal(t, "Praia", form.Neighborhood)

	form.Name = "João"
	form.Address = "Rua B, 2"
	form.Payment = "Cartão"
	res, err := s.SubmitOrder(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, "47.5", res.Totals.GrandTotal.String())
	assert.True(t, s.Cart().Empty())

	state, _ = s.Checkout()
	assert.Equal(t, order.StateCompleted, state)

	s.OpenCheckout()
	s.CloseCheckout()
	state, _ = s.Checkout()
	assert.Equal(t, order.StateClosed, state)
}

func TestSession_NeighborhoodLoadFailureNotice(t *testing.T) {
	ctx := context.Background()
	slots := memory.New()
	r := newTestRegistry(t, slots)
	defer r.closeAll()

	// A failed neighborhood document reload is reported to new sessions.
	cat := catalog.New()
	r.cat = cat
	loader, err := catalog.NewLoader(catalog.LoaderConfig{
		ProductsURL:      "file:///nonexistent/produtos.json",
		NeighborhoodsURL: "file:///nonexistent/bairros.json",
	}, cat, zaptest.NewLogger(t))
	require.NoError(t, err)
	res := loader.Load(ctx)
	require.Error(t, res.Neighborhoods)

	s, err := r.Session(ctx, NewSessionID())
	require.NoError(t, err)
	notices := s.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, NeighborhoodsErrorNotice, notices[0].Message)
	assert.Equal(t, notify.LevelError, notices[0].Level)
}

func TestSession_ReducedMotion(t *testing.T) {
	_, s := newTestSession(t)
	assert.True(t, s.Carousel().State().Autoplay)
	s.SetReducedMotion(true)
	assert.False(t, s.Carousel().State().Autoplay)
}

func TestSession_SlotErrorsAreNotFatal(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, failingSlots{})
	defer r.closeAll()

	s, err := r.Session(ctx, NewSessionID())
	require.NoError(t, err)
	_, err = s.AddToCart(ctx, "Pizza")
	require.NoError(t, err)
	require.NoError(t, s.SelectNeighborhood(ctx, "Centro"))
	assert.Equal(t, "45", s.Totals().GrandTotal.String())
}

type failingSlots struct{}

var errSlots = errors.New("slot store down")

func (failingSlots) Get(context.Context, string) ([]byte, error) { return nil, errSlots }
func (failingSlots) Set(context.Context, string, []byte) error { return errSlots }
func (failingSlots) Delete(context.Context, string) error { return errSlots }
func (failingSlots) Ping(context.Context) error { return errSlots }
