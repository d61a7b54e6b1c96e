// Package cart implements the shopping cart: lines with price snapshots,
// quantity changes, totals and persistence of the whole cart after every
// mutation.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/catalog"
)

// Snapshot is the product data captured when a product enters the cart.
// Later catalog loads never change it.
type Snapshot struct {
	Name        string
	Price       decimal.Decimal
	Category    string
	Description string
	Image       string
}

// SnapshotOf copies the product's fields.
func SnapshotOf(p catalog.Product) Snapshot {
	return Snapshot{
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		Description: p.Description,
		Image:       p.Image,
	}
}

// MaxQuantity is the largest quantity a single line can hold.
const MaxQuantity = 999

// Line is one product entry in the cart. Quantity is always at least 1.
type Line struct {
	ID       string
	Product  Snapshot
	Quantity int
}

// Total returns price times quantity.
func (l Line) Total() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the ordered list of lines. Insertion order is display order.
type Cart struct {
	Lines []Line
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool { return len(c.Lines) == 0 }

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	if c.Lines == nil {
		return Cart{}
	}
	return Cart{Lines: append([]Line(nil), c.Lines...)}
}

// Totals are the derived cart amounts.
type Totals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	GrandTotal  decimal.Decimal
	// Count is the total number of items.
	Count int
}

// ComputeTotals sums the lines and adds the delivery fee. The result does not
// depend on line order.
func ComputeTotals(lines []Line, fee decimal.Decimal) Totals {
	t := Totals{
		Subtotal:    decimal.Zero,
		DeliveryFee: fee,
	}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Total())
		t.Count += l.Quantity
	}
	t.GrandTotal = t.Subtotal.Add(fee)
	return t
}
