// Package order validates the delivery form, composes the order message and
// hands it off to an outbound messaging channel.
package order

import (
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/cart"
)

// User-visible messages.
const (
	MissingFieldsMessage  = "Por favor, preencha todos os campos obrigatórios."
	EmptyCartMessage      = "Seu carrinho está vazio."
	ChannelFailureMessage = "Não foi possível abrir o WhatsApp. Verifique seu bloqueador de pop-ups."
)

var (
	// ErrMissingFields is returned when a required form field is blank.
	ErrMissingFields = errors.New(MissingFieldsMessage)
	// ErrEmptyCart is returned when submitting with an empty cart.
	ErrEmptyCart = errors.New(EmptyCartMessage)
	// ErrFormClosed is returned when submitting while the form is not open.
	ErrFormClosed = errors.New("delivery form is not open")
)

// ChannelError reports that the outbound channel could not be opened.
type ChannelError struct {
	Err error
}

func (e *ChannelError) Error() string {
	return ChannelFailureMessage + ": " + e.Err.Error()
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Form is the delivery form.
type Form struct {
	Name         string
	Address      string
	Neighborhood string
	Reference    string
	Payment      string
	Remarks      string
}

// Normalize trims surrounding whitespace from every single-line field.
// Remarks are kept as typed.
func (f Form) Normalize() Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Address = strings.TrimSpace(f.Address)
	f.Neighborhood = strings.TrimSpace(f.Neighborhood)
	f.Reference = strings.TrimSpace(f.Reference)
	f.Payment = strings.TrimSpace(f.Payment)
	return f
}

// Validate checks the required fields, then that c has lines.
func Validate(f Form, c cart.Cart) error {
	f = f.Normalize()
	if f.Name == "" || f.Address == "" || f.Neighborhood == "" || f.Payment == "" {
		return ErrMissingFields
	}
	if c.Empty() {
		return ErrEmptyCart
	}
	return nil
}

// Record is a composed order as written to the journal.
type Record struct {
	ID         string
	Session    string
	Lines      []cart.Line
	Totals     cart.Totals
	Form       Form
	Text       string
	Dispatched bool
	CreatedAt  time.Time
}
