package catalog

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/format"
)

// ErrMalformed is returned when a document is not a JSON array of objects.
var ErrMalformed = errors.New("malformed catalog document")

// amount is a loosely typed numeric field: a JSON number, a numeric string,
// or absent/null.
type amount struct {
	value any
	set   bool
}

func (a *amount) decode(d *jx.Decoder) error {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return errors.Wrapf(err, "parse number %q", n.String())
		}
		a.value, a.set = v, true
		return nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		a.value, a.set = s, true
		return nil
	case jx.Null:
		return d.Null()
	default:
		return d.Skip()
	}
}

// decodeText reads a string field, tolerating null and numbers.
func decodeText(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", d.Skip()
	}
}

type rawProduct struct {
	name        string
	price       amount
	category    string
	description string
	image       string
}

func (p *rawProduct) decode(d *jx.Decoder) error {
	if d.Next() != jx.Object {
		return errors.Wrap(ErrMalformed, "product entry is not an object")
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "nome", "name":
			p.name, err = decodeText(d)
		case "preco", "price":
			err = p.price.decode(d)
		case "categoria", "category":
			p.category, err = decodeText(d)
		case "descricao", "description":
			p.description, err = decodeText(d)
		case "imagem", "image":
			p.image, err = decodeText(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// product validates the raw entry. Entries without a name or without a
// non-negative price are rejected.
func (p *rawProduct) product() (Product, bool) {
	if strings.TrimSpace(p.name) == "" || !p.price.set {
		return Product{}, false
	}
	if s, ok := p.price.value.(string); ok && strings.TrimSpace(s) == "" {
		return Product{}, false
	}
	invalid := decimal.NewFromInt(-1)
	price := format.ToDecimal(p.price.value, invalid)
	if price.IsNegative() {
		return Product{}, false
	}
	return Product{
		Name:        p.name,
		Price:       price,
		Category:    p.category,
		Description: p.description,
		Image:       p.image,
	}, true
}

type rawNeighborhood struct {
	name string
	fee  amount
}

func (n *rawNeighborhood) decode(d *jx.Decoder) error {
	if d.Next() != jx.Object {
		return errors.Wrap(ErrMalformed, "neighborhood entry is not an object")
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "nome", "name":
			var err error
			n.name, err = decodeText(d)
			return err
		case "valor", "deliveryFee", "fee":
			return n.fee.decode(d)
		default:
			return d.Skip()
		}
	})
}

// neighborhood validates the raw entry. A fee that is not a number falls
// back to zero; a negative fee rejects the entry.
func (n *rawNeighborhood) neighborhood() (Neighborhood, bool) {
	if strings.TrimSpace(n.name) == "" {
		return Neighborhood{}, false
	}
	fee := format.ToDecimal(n.fee.value, decimal.Zero)
	if fee.IsNegative() {
		return Neighborhood{}, false
	}
	return Neighborhood{Name: n.name, DeliveryFee: fee}, true
}

// DecodeProducts parses a products document. It returns the valid products
// in document order and the number of rejected entries.
func DecodeProducts(data []byte) ([]Product, int, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Array {
		return nil, 0, errors.Wrap(ErrMalformed, "products document is not an array")
	}

	var (
		out      []Product
		rejected int
	)
	if err := d.Arr(func(d *jx.Decoder) error {
		var raw rawProduct
		if err := raw.decode(d); err != nil {
			return err
		}
		p, ok := raw.product()
		if !ok {
			rejected++
			return nil
		}
		out = append(out, p)
		return nil
	}); err != nil {
		return nil, 0, errors.Wrap(err, "decode products")
	}
	return out, rejected, nil
}

// DecodeNeighborhoods parses a neighborhoods document. It returns the valid
// neighborhoods in document order and the number of rejected entries.
func DecodeNeighborhoods(data []byte) ([]Neighborhood, int, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Array {
		return nil, 0, errors.Wrap(ErrMalformed, "neighborhoods document is not an array")
	}

	var (
		out      []Neighborhood
		rejected int
	)
	if err := d.Arr(func(d *jx.Decoder) error {
		var raw rawNeighborhood
		if err := raw.decode(d); err != nil {
			return err
		}
		n, ok := raw.neighborhood()
		if !ok {
			rejected++
			return nil
		}
		out = append(out, n)
		return nil
	}); err != nil {
		return nil, 0, errors.Wrap(err, "decode neighborhoods")
	}
	return out, rejected, nil
}
