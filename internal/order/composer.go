package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cart"
)

// State is the delivery form state.
type State int

const (
	// StateClosed means the form is not shown.
	StateClosed State = iota
	// StateCollecting means the form is open and the cart is editable.
	StateCollecting
	// StateSubmitting means a submission is being validated and dispatched.
	StateSubmitting
	// StateCompleted means the last submission was handed off. The form is
	// closed.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateCollecting:
		return "collecting"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Cart is the part of the cart engine the composer needs.
type Cart interface {
	Cart() cart.Cart
	Reset(ctx context.Context)
}

// FeeLookup resolves neighborhood delivery fees.
type FeeLookup interface {
	DeliveryFee(name string) (decimal.Decimal, bool)
}

// Journal records composed orders.
type Journal interface {
	Append(ctx context.Context, r Record) error
}

// Config holds composer settings shared by all sessions.
type Config struct {
	// ChannelURL is the base of the outbound link, e.g. https://wa.me/5522999999999.
	ChannelURL string
	// ClearOnChannelFailure clears the cart and closes the form even when the
	// channel fails.
	ClearOnChannelFailure bool
	Renderer              *Renderer
	Channel               Channel
	// Journal is optional.
	Journal Journal
}

// Result describes a handed-off order.
type Result struct {
	ID     string
	Text   string
	Link   string
	Totals cart.Totals
	// Cleared reports whether the cart was cleared.
	Cleared bool
}

// Composer drives the delivery form for one session.
//
// Composer is not safe for concurrent use; callers serialise access.
type Composer struct {
	cfg     Config
	session string
	cart    Cart
	fees    FeeLookup
	lg      *zap.Logger
	now     func() time.Time

	state State
	form  Form
}

// NewComposer returns a closed composer.
func NewComposer(cfg Config, session string, c Cart, fees FeeLookup, lg *zap.Logger) *Composer {
	if cfg.Channel == nil {
		cfg.Channel = LinkChannel{}
	}
	if cfg.Renderer == nil {
		cfg.Renderer = defaultRenderer
	}
	return &Composer{
		cfg:     cfg,
		session: session,
		cart:    c,
		fees:    fees,
		lg:      lg,
		now:     time.Now,
	}
}

// State returns the current state.
func (c *Composer) State() State { return c.state }

// Open shows the form, prefilling the neighborhood with the session
// selection.
func (c *Composer) Open(neighborhood string) {
	c.state = StateCollecting
	c.form.Neighborhood = neighborhood
}

// SyncNeighborhood updates the form neighborhood while the form is open.
func (c *Composer) SyncNeighborhood(neighborhood string) {
	if c.state == StateCollecting {
		c.form.Neighborhood = neighborhood
	}
}

// Close hides the form. Entered values are kept for the next Open.
func (c *Composer) Close() {
	c.state = StateClosed
}

// Form returns the last entered form values.
func (c *Composer) Form() Form { return c.form }

// Submit validates f against the cart, composes the message and sends it.
//
// Validation failures return ErrMissingFields or ErrEmptyCart and leave the
// form collecting. A channel failure returns a *ChannelError together with
// the composed result; whether the cart was cleared is reported in
// Result.Cleared.
func (c *Composer) Submit(ctx context.Context, f Form) (*Result, error) {
	if c.state != StateCollecting {
		return nil, ErrFormClosed
	}
	c.state = StateSubmitting
	c.form = f

	snapshot := c.cart.Cart()
	if err := Validate(f, snapshot); err != nil {
		c.state = StateCollecting
		return nil, err
	}
	f = f.Normalize()

	fee, ok := c.fees.DeliveryFee(f.Neighborhood)
	if !ok {
		c.lg.Warn("Unknown delivery neighborhood, fee set to zero",
			zap.String("neighborhood", f.Neighborhood),
		)
		fee = decimal.Zero
	}
	totals := cart.ComputeTotals(snapshot.Lines, fee)

	text, err := c.cfg.Renderer.Render(Message{Lines: snapshot.Lines, Totals: totals, Form: f})
	if err != nil {
		c.state = StateCollecting
		return nil, errors.Wrap(err, "compose order")
	}

	res := &Result{
		ID:     uuid.NewString(),
		Text:   text,
		Link:   Link(c.cfg.ChannelURL, text),
		Totals: totals,
	}

	sendErr := c.cfg.Channel.Send(ctx, Dispatch{OrderID: res.ID, Link: res.Link, Text: text})
	c.journal(ctx, Record{
		ID:         res.ID,
		Session:    c.session,
		Lines:      snapshot.Lines,
		Totals:     totals,
		Form:       f,
		Text:       text,
		Dispatched: sendErr == nil,
		CreatedAt:  c.now(),
	})

	if sendErr != nil {
		c.lg.Warn("Order channel failed", zap.String("order_id", res.ID), zap.Error(sendErr))
		if !c.cfg.ClearOnChannelFailure {
			c.state = StateCollecting
			return res, &ChannelError{Err: sendErr}
		}
		c.complete(ctx, res)
		return res, &ChannelError{Err: sendErr}
	}

	c.complete(ctx, res)
	return res, nil
}

func (c *Composer) complete(ctx context.Context, res *Result) {
	c.cart.Reset(ctx)
	res.Cleared = true
	c.form = Form{}
	c.state = StateCompleted
}

func (c *Composer) journal(ctx context.Context, r Record) {
	if c.cfg.Journal == nil {
		return
	}
	if err := c.cfg.Journal.Append(ctx, r); err != nil {
		c.lg.Error("Failed to journal order", zap.String("order_id", r.ID), zap.Error(err))
	}
}
