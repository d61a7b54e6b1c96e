package cart

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/catalog"
)

// --- Mock implementations ---

type mockStore struct {
	initial Cart
	saved   []Cart
}

func (m *mockStore) Load(_ context.Context) Cart { return m.initial.Clone() }

func (m *mockStore) Save(_ context.Context, c Cart) { m.saved = append(m.saved, c) }

func (m *mockStore) last() Cart {
	if len(m.saved) == 0 {
		return Cart{}
	}
	return m.saved[len(m.saved)-1]
}

// --- Helpers ---

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func newTestEngine(store *mockStore) *Engine {
	e := NewEngine(context.Background(), store)
	var n int
	e.newID = func() string {
		n++
		return fmt.Sprintf("line-%d", n)
	}
	return e
}

func pizza() catalog.Product {
	return catalog.Product{Name: "Pizza", Price: decimal.NewFromInt(40), Category: "Pizzas", Image: "pizza.jpg"}
}

func suco() catalog.Product {
	return catalog.Product{Name: "Suco", Price: decimal.RequireFromString("8.5"), Category: "Bebidas"}
}

// --- Tests ---

func TestEngine_AddIncrementsExisting(t *testing.T) {
	store := &mockStore{}
	e := newTestEngine(store)
	ctx := context.Background()

	first := e.Add(ctx, pizza())
	assert.Equal(t, 1, first.Quantity)
	assert.Equal(t, "line-1", first.ID)

	second := e.Add(ctx, pizza())
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Quantity)

	e.Add(ctx, suco())

	want := Cart{Lines: []Line{
		{ID: "line-1", Product: SnapshotOf(pizza()), Quantity: 2},
		{ID: "line-2", Product: SnapshotOf(suco()), Quantity: 1},
	}}
	if diff := cmp.Diff(want, e.Cart(), decimalEqual); diff != "" {
		t.Errorf("cart mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, store.saved, 3, "every mutation saves")
	if diff := cmp.Diff(want, store.last(), decimalEqual); diff != "" {
		t.Errorf("saved cart mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_SnapshotIsImmutable(t *testing.T) {
	e := newTestEngine(&mockStore{})
	ctx := context.Background()

	p := pizza()
	l := e.Add(ctx, p)
	p.Price = decimal.NewFromInt(99)

	got, ok := e.Line(l.ID)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(40).Equal(got.Product.Price))
}

func TestEngine_ChangeQuantity(t *testing.T) {
	store := &mockStore{}
	e := newTestEngine(store)
	ctx := context.Background()

	l := e.Add(ctx, pizza())
	require.True(t, e.ChangeQuantity(ctx, l.ID, 2))
	got, _ := e.Line(l.ID)
	assert.Equal(t, 3, got.Quantity)

	require.True(t, e.ChangeQuantity(ctx, l.ID, -1))
	got, _ = e.Line(l.ID)
	assert.Equal(t, 2, got.Quantity)

	require.True(t, e.ChangeQuantity(ctx, l.ID, -5))
	_, ok := e.Line(l.ID)
	assert.False(t, ok, "non-positive quantity removes the line")
	assert.True(t, e.Cart().Empty())
	assert.True(t, store.last().Empty())
}

func TestEngine_ChangeQuantityBounds(t *testing.T) {
	store := &mockStore{}
	e := newTestEngine(store)
	ctx := context.Background()

	l := e.Add(ctx, pizza())
	require.True(t, e.ChangeQuantity(ctx, l.ID, math.MaxInt))
	got, ok := e.Line(l.ID)
	require.True(t, ok, "a huge increment keeps the line")
	assert.Equal(t, MaxQuantity, got.Quantity)

	e.Add(ctx, pizza())
	got, _ = e.Line(l.ID)
	assert.Equal(t, MaxQuantity, got.Quantity, "adding past the cap is ignored")

	require.True(t, e.ChangeQuantity(ctx, l.ID, 1))
	got, _ = e.Line(l.ID)
	assert.Equal(t, MaxQuantity, got.Quantity)

	require.True(t, e.ChangeQuantity(ctx, l.ID, math.MinInt))
	_, ok = e.Line(l.ID)
	assert.False(t, ok, "a huge decrement removes the line")
	assert.True(t, store.last().Empty())
}

func TestEngine_DecrementToZeroRemoves(t *testing.T) {
	e := newTestEngine(&mockStore{})
	ctx := context.Background()

	l := e.Add(ctx, pizza())
	e.Add(ctx, suco())
	require.True(t, e.ChangeQuantity(ctx, l.ID, -1))

	c := e.Cart()
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "Suco", c.Lines[0].Product.Name)
}

func TestEngine_UnknownLineIsNoop(t *testing.T) {
	store := &mockStore{}
	e := newTestEngine(store)
	ctx := context.Background()
	e.Add(ctx, pizza())
	saves := len(store.saved)

	assert.False(t, e.ChangeQuantity(ctx, "missing", 1))
	assert.False(t, e.Remove(ctx, "missing"))
	assert.Len(t, store.saved, saves)
	assert.Len(t, e.Cart().Lines, 1)
}

func TestEngine_Remove(t *testing.T) {
	e := newTestEngine(&mockStore{})
	ctx := context.Background()

	a := e.Add(ctx, pizza())
	e.Add(ctx, pizza())
	b := e.Add(ctx, suco())

	require.True(t, e.Remove(ctx, a.ID))
	c := e.Cart()
	require.Len(t, c.Lines, 1)
	assert.Equal(t, b.ID, c.Lines[0].ID)
}

func TestEngine_Clear(t *testing.T) {
	e := newTestEngine(&mockStore{})
	ctx := context.Background()
	e.Add(ctx, pizza())

	var prompt string
	deny := ConfirmFunc(func(p string) bool { prompt = p; return false })
	assert.False(t, e.Clear(ctx, deny))
	assert.Equal(t, ClearPrompt, prompt)
	assert.False(t, e.Cart().Empty())

	assert.False(t, e.Clear(ctx, nil))

	allow := ConfirmFunc(func(string) bool { return true })
	assert.True(t, e.Clear(ctx, allow))
	assert.True(t, e.Cart().Empty())
}

func TestEngine_LoadsFromStore(t *testing.T) {
	initial := Cart{Lines: []Line{{ID: "x", Product: SnapshotOf(pizza()), Quantity: 2}}}
	e := newTestEngine(&mockStore{initial: initial})

	if diff := cmp.Diff(initial, e.Cart(), decimalEqual); diff != "" {
		t.Errorf("cart mismatch (-want +got):\n%s", diff)
	}
}

func TestTotals_PizzaScenario(t *testing.T) {
	e := newTestEngine(&mockStore{})
	ctx := context.Background()
	e.Add(ctx, pizza())
	e.Add(ctx, pizza())

	got := e.Totals(decimal.NewFromInt(5))
	assert.Equal(t, "80", got.Subtotal.String())
	assert.Equal(t, "5", got.DeliveryFee.String())
	assert.Equal(t, "85", got.GrandTotal.String())
	assert.Equal(t, 2, got.Count)
}

func TestTotals_EmptyCart(t *testing.T) {
	got := ComputeTotals(nil, decimal.NewFromInt(7))
	assert.True(t, got.Subtotal.IsZero())
	assert.True(t, decimal.NewFromInt(7).Equal(got.GrandTotal))
	assert.Zero(t, got.Count)
}

func TestTotals_OrderInvariant(t *testing.T) {
	f := gofakeit.New(7)

	for range 100 {
		n := f.IntRange(0, 12)
		lines := make([]Line, 0, n)
		want := decimal.Zero
		for i := range n {
			price := decimal.NewFromFloat(f.Price(0, 200)).Round(2)
			qty := f.IntRange(1, 9)
			lines = append(lines, Line{
				ID:       fmt.Sprintf("l%d", i),
				Product:  Snapshot{Name: f.Word(), Price: price},
				Quantity: qty,
			})
			want = want.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		}
		fee := decimal.NewFromFloat(f.Price(0, 30)).Round(2)

		got := ComputeTotals(lines, fee)
		require.True(t, want.Equal(got.Subtotal), "subtotal")
		require.True(t, want.Add(fee).Equal(got.GrandTotal), "grand total")

		shuffled := append([]Line(nil), lines...)
		f.ShuffleAnySlice(shuffled)
		again := ComputeTotals(shuffled, fee)
		require.True(t, got.Subtotal.Equal(again.Subtotal))
		require.True(t, got.GrandTotal.Equal(again.GrandTotal))
		require.Equal(t, got.Count, again.Count)
	}
}
