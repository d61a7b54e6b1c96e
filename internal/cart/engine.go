package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/catalog"
)

// ClearPrompt is the question shown before clearing the cart.
const ClearPrompt = "Deseja realmente limpar o carrinho?"

// Confirmer approves destructive actions.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Engine applies cart mutations and saves the cart after each of them.
//
// Engine is not safe for concurrent use; callers serialise access.
type Engine struct {
	store Store
	cart  Cart
	newID func() string
}

// NewEngine loads the cart from store.
func NewEngine(ctx context.Context, store Store) *Engine {
	return &Engine{
		store: store,
		cart:  store.Load(ctx),
		newID: uuid.NewString,
	}
}

// Cart returns a copy of the current cart.
func (e *Engine) Cart() Cart { return e.cart.Clone() }

// Line returns the line with the given ID.
func (e *Engine) Line(id string) (Line, bool) {
	i := e.index(id)
	if i < 0 {
		return Line{}, false
	}
	return e.cart.Lines[i], true
}

// Add puts one unit of p in the cart. A product already in the cart, matched
// by name, has its quantity incremented; otherwise a new line with quantity
// 1 is appended.
func (e *Engine) Add(ctx context.Context, p catalog.Product) Line {
	for i := range e.cart.Lines {
		if e.cart.Lines[i].Product.Name == p.Name {
			if e.cart.Lines[i].Quantity < MaxQuantity {
				e.cart.Lines[i].Quantity++
			}
			e.save(ctx)
			return e.cart.Lines[i]
		}
	}

	l := Line{
		ID:       e.newID(),
		Product:  SnapshotOf(p),
		Quantity: 1,
	}
	e.cart.Lines = append(e.cart.Lines, l)
	e.save(ctx)
	return l
}

// ChangeQuantity adds delta to the line quantity, removing the line when the
// result is not positive and capping it at MaxQuantity. It reports whether
// the line exists.
func (e *Engine) ChangeQuantity(ctx context.Context, id string, delta int) bool {
	i := e.index(id)
	if i < 0 {
		return false
	}
	if delta == 0 {
		return true
	}
	// Compare against the bounds before adding so that huge deltas cannot
	// overflow.
	q := e.cart.Lines[i].Quantity
	switch {
	case delta <= -q:
		e.removeAt(i)
	case delta >= MaxQuantity-q:
		e.cart.Lines[i].Quantity = MaxQuantity
	default:
		e.cart.Lines[i].Quantity = q + delta
	}
	e.save(ctx)
	return true
}

// Remove deletes the line. It reports whether the line existed.
func (e *Engine) Remove(ctx context.Context, id string) bool {
	i := e.index(id)
	if i < 0 {
		return false
	}
	e.removeAt(i)
	e.save(ctx)
	return true
}

// Clear empties the cart if c approves. It reports whether the cart was
// cleared.
func (e *Engine) Clear(ctx context.Context, c Confirmer) bool {
	if c == nil || !c.Confirm(ClearPrompt) {
		return false
	}
	e.Reset(ctx)
	return true
}

// Reset empties the cart without confirmation.
func (e *Engine) Reset(ctx context.Context) {
	e.cart = Cart{}
	e.save(ctx)
}

// Totals computes the cart totals with the given delivery fee.
func (e *Engine) Totals(fee decimal.Decimal) Totals {
	return ComputeTotals(e.cart.Lines, fee)
}

func (e *Engine) index(id string) int {
	for i, l := range e.cart.Lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) removeAt(i int) {
	e.cart.Lines = append(e.cart.Lines[:i:i], e.cart.Lines[i+1:]...)
}

func (e *Engine) save(ctx context.Context) {
	e.store.Save(ctx, e.cart.Clone())
}
