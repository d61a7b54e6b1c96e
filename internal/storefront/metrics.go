package storefront

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the storefront instruments.
type Metrics struct {
	cartMutations metric.Int64Counter
	orders        metric.Int64Counter
	sessions      metric.Int64UpDownCounter
}

// NewMetrics creates the instruments. A nil provider disables them.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter("storefront")

	cartMutations, err := meter.Int64Counter("storefront.cart.mutations",
		metric.WithDescription("Cart mutations by operation"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cart mutations counter")
	}
	orders, err := meter.Int64Counter("storefront.orders",
		metric.WithDescription("Order submissions by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	sessions, err := meter.Int64UpDownCounter("storefront.sessions.active",
		metric.WithDescription("Sessions held in memory"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create sessions counter")
	}

	return &Metrics{
		cartMutations: cartMutations,
		orders:        orders,
		sessions:      sessions,
	}, nil
}

func (m *Metrics) cartMutation(ctx context.Context, op string) {
	m.cartMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) order(ctx context.Context, outcome string) {
	m.orders.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) sessionDelta(ctx context.Context, n int64) {
	m.sessions.Add(ctx, n)
}
