// Package format renders monetary values for display and coerces loosely
// typed numeric input.
package format

import (
	"math"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// nbsp separates the currency symbol from the amount, as browsers do for
// pt-BR currency formatting.
const nbsp = "\u00a0"

// symbols maps ISO currency codes to their display symbol.
var symbols = map[currency.Unit]string{
	currency.BRL: "R$",
	currency.USD: "US$",
	currency.EUR: "€",
	currency.GBP: "£",
}

// Money formats decimal amounts in a fixed currency and locale.
type Money struct {
	unit    currency.Unit
	symbol  string
	printer *message.Printer
}

// BRL is the default formatter: Brazilian real, pt-BR digits.
var BRL = MustMoney("BRL", "pt-BR")

// NewMoney returns a formatter for the ISO 4217 code and BCP 47 locale.
func NewMoney(code, locale string) (*Money, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, errors.Wrapf(err, "parse currency %q", code)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, errors.Wrapf(err, "parse locale %q", locale)
	}
	sym, ok := symbols[unit]
	if !ok {
		sym = unit.String()
	}
	return &Money{
		unit:    unit,
		symbol:  sym,
		printer: message.NewPrinter(tag),
	}, nil
}

// MustMoney is like NewMoney but panics on invalid input.
func MustMoney(code, locale string) *Money {
	m, err := NewMoney(code, locale)
	if err != nil {
		panic(err)
	}
	return m
}

// Unit returns the currency unit.
func (m *Money) Unit() currency.Unit { return m.unit }

// Format renders v with symbol and two fraction digits, e.g. "R$ 1.234,50".
func (m *Money) Format(v decimal.Decimal) string {
	return m.symbol + nbsp + m.Amount(v)
}

// Amount renders v without the currency symbol, e.g. "1.234,50".
func (m *Money) Amount(v decimal.Decimal) string {
	f := v.Round(2).InexactFloat64()
	return m.printer.Sprint(number.Decimal(f, number.Scale(2)))
}

// ToDecimal coerces v to a decimal, returning def when v is not a finite
// number. Accepted inputs: decimal.Decimal, integer and float kinds, and
// numeric strings (surrounding spaces ignored).
func ToDecimal(v any, def decimal.Decimal) decimal.Decimal {
	switch x := v.(type) {
	case decimal.Decimal:
		return x
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return def
		}
		return decimal.NewFromFloat(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			// Blank input coerces to zero.
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return def
		}
		return d
	default:
		return def
	}
}

// QueryComponent percent-encodes s for use in a URL query value or path
// segment. Spaces become %20 rather than "+".
func QueryComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
