//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/order"
	"github.com/xenking/storefront/internal/storage"
	storepg "github.com/xenking/storefront/internal/storage/postgres"
)

type PostgresSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
}

func TestPostgres(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		postgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	pool, err := storepg.NewPool(ctx, connStr)
	s.Require().NoError(err)
	s.pool = pool

	s.Require().NoError(storepg.RunMigrations(ctx, pool))
	s.Require().NoError(storepg.RunMigrations(ctx, pool), "migrations are idempotent")
}

func (s *PostgresSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *PostgresSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE slots, orders`)
	s.Require().NoError(err)
}

func (s *PostgresSuite) TestSlots() {
	ctx := context.Background()
	slots := storepg.NewSlots(s.pool)
	key := storage.CartKey("c0ffee00-0000-4000-8000-000000000001")

	s.NoError(slots.Ping(ctx))

	_, err := slots.Get(ctx, key)
	s.ErrorIs(err, storage.ErrNotFound)

	s.Require().NoError(slots.Set(ctx, key, []byte(`[{"name":"Pizza"}]`)))
	s.Require().NoError(slots.Set(ctx, key, []byte(`[]`)))
	got, err := slots.Get(ctx, key)
	s.Require().NoError(err)
	s.Equal(`[]`, string(got))

	s.Require().NoError(slots.Delete(ctx, key))
	s.Require().NoError(slots.Delete(ctx, key), "deleting a missing slot is not an error")
	_, err = slots.Get(ctx, key)
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *PostgresSuite) TestCartRoundTrip() {
	ctx := context.Background()
	session := "c0ffee00-0000-4000-8000-000000000002"
	store := cart.NewSlotStore(storepg.NewSlots(s.pool), session, zap.NewNop())

	want := cart.Cart{Lines: []cart.Line{{
		ID:       "line-1",
		Product:  cart.Snapshot{Name: "Pizza", Price: decimal.RequireFromString("39.90"), Category: "Pizzas"},
		Quantity: 2,
	}}}
	store.Save(ctx, want)

	got := store.Load(ctx)
	s.Require().Len(got.Lines, 1)
	s.Equal("Pizza", got.Lines[0].Product.Name)
	s.Equal(2, got.Lines[0].Quantity)
	s.True(want.Lines[0].Product.Price.Equal(got.Lines[0].Product.Price))
}

type journalRow struct {
	ID           string
	Total        decimal.Decimal
	Neighborhood string
	Dispatched   bool
	Items        int
}

// ordersOf reads back the journal of a session, newest first.
func (s *PostgresSuite) ordersOf(ctx context.Context, session string) []journalRow {
	rows, err := s.pool.Query(ctx, `SELECT id, total, neighborhood, dispatched, jsonb_array_length(items)
		FROM orders WHERE session_id = $1 ORDER BY created_at DESC`, session)
	s.Require().NoError(err)
	defer rows.Close()

	var out []journalRow
	for rows.Next() {
		var r journalRow
		s.Require().NoError(rows.Scan(&r.ID, &r.Total, &r.Neighborhood, &r.Dispatched, &r.Items))
		out = append(out, r)
	}
	s.Require().NoError(rows.Err())
	return out
}

func (s *PostgresSuite) TestOrderJournal() {
	ctx := context.Background()
	journal := storepg.NewOrderJournal(s.pool)
	session := "c0ffee00-0000-4000-8000-000000000003"

	lines := []cart.Line{{
		ID:       "line-1",
		Product:  cart.Snapshot{Name: "Pizza", Price: decimal.NewFromInt(40)},
		Quantity: 2,
	}}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"order-1", "order-2"} {
		s.Require().NoError(journal.Append(ctx, order.Record{
			ID:         id,
			Session:    session,
			Lines:      lines,
			Totals:     cart.ComputeTotals(lines, decimal.NewFromInt(5)),
			Form:       order.Form{Name: "Maria", Neighborhood: "Centro", Payment: "Pix"},
			Text:       "Olá, gostaria fazer um pedido",
			Dispatched: i == 0,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries := s.ordersOf(ctx, session)
	s.Require().Len(entries, 2)
	s.Equal("order-2", entries[0].ID, "newest first")
	s.False(entries[0].Dispatched)
	s.True(entries[1].Dispatched)
	s.Equal("85", entries[1].Total.String())
	s.Equal("Centro", entries[1].Neighborhood)
	s.Equal(1, entries[1].Items)

	s.Empty(s.ordersOf(ctx, "someone-else"))

	// The order ID is the primary key.
	s.Error(journal.Append(ctx, order.Record{ID: "order-1", Session: session, CreatedAt: base}))
}
