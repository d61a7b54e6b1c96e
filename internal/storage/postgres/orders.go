package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/order"
)

const insertOrderSQL = `INSERT INTO orders
	(id, session_id, items, subtotal, delivery_fee, total, neighborhood, payment_method, message, dispatched, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

var _ order.Journal = (*OrderJournal)(nil)

// OrderJournal implements order.Journal backed by the orders table.
type OrderJournal struct {
	pool *pgxpool.Pool
}

// NewOrderJournal returns an OrderJournal that uses the given pool.
func NewOrderJournal(pool *pgxpool.Pool) *OrderJournal {
	return &OrderJournal{pool: pool}
}

// Append stores the order. Lines are serialized to JSON for the JSONB
// column.
func (j *OrderJournal) Append(ctx context.Context, r order.Record) error {
	_, err := j.pool.Exec(ctx, insertOrderSQL,
		r.ID,
		r.Session,
		encodeLines(r.Lines),
		r.Totals.Subtotal,
		r.Totals.DeliveryFee,
		r.Totals.GrandTotal,
		r.Form.Neighborhood,
		r.Form.Payment,
		r.Text,
		r.Dispatched,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", r.ID, err)
	}
	return nil
}

func encodeLines(lines []cart.Line) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(l.Product.Name)
		e.FieldStart("price")
		e.Num(jx.Num(l.Product.Price.String()))
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("total")
		e.Num(jx.Num(l.Total().String()))
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}
