package order

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Dispatch is an order handed to a channel.
type Dispatch struct {
	OrderID string
	Link    string
	Text    string
}

// Channel delivers composed orders to the messaging service.
type Channel interface {
	Send(ctx context.Context, d Dispatch) error
}

// LinkChannel leaves opening the link to the client. It never fails.
type LinkChannel struct{}

func (LinkChannel) Send(context.Context, Dispatch) error { return nil }

// WebhookChannel posts the order to a relay that forwards it.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel returns a channel posting to url. A nil client uses
// http.DefaultClient.
func NewWebhookChannel(url string, client *http.Client) *WebhookChannel {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookChannel{url: url, client: client}
}

func (w *WebhookChannel) Send(ctx context.Context, d Dispatch) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(d.OrderID)
	e.FieldStart("link")
	e.Str(d.Link)
	e.FieldStart("text")
	e.Str(d.Text)
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
