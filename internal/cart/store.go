package cart

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/format"
	"github.com/xenking/storefront/internal/storage"
)

// Store persists a cart. Load never fails: a missing or unreadable snapshot
// yields an empty cart. Save is best-effort.
type Store interface {
	Load(ctx context.Context) Cart
	Save(ctx context.Context, c Cart)
}

// SlotStore keeps the cart snapshot in one storage slot.
type SlotStore struct {
	slots storage.Slots
	key   string
	lg    *zap.Logger
}

// NewSlotStore returns a store for the session's cart slot.
func NewSlotStore(slots storage.Slots, session string, lg *zap.Logger) *SlotStore {
	return &SlotStore{
		slots: slots,
		key:   storage.CartKey(session),
		lg:    lg,
	}
}

func (s *SlotStore) Load(ctx context.Context) Cart {
	data, err := s.slots.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.lg.Warn("Failed to read cart snapshot", zap.String("key", s.key), zap.Error(err))
		}
		return Cart{}
	}

	c, err := Unmarshal(data)
	if err != nil {
		s.lg.Warn("Discarding malformed cart snapshot", zap.String("key", s.key), zap.Error(err))
		return Cart{}
	}
	return c
}

func (s *SlotStore) Save(ctx context.Context, c Cart) {
	if err := s.slots.Set(ctx, s.key, Marshal(c)); err != nil {
		s.lg.Error("Failed to save cart snapshot", zap.String("key", s.key), zap.Error(err))
	}
}

// Marshal encodes the cart snapshot as a JSON array of lines.
func Marshal(c Cart) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, l := range c.Lines {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(l.ID)
		e.FieldStart("name")
		e.Str(l.Product.Name)
		e.FieldStart("price")
		e.Num(jx.Num(l.Product.Price.String()))
		if l.Product.Category != "" {
			e.FieldStart("category")
			e.Str(l.Product.Category)
		}
		if l.Product.Description != "" {
			e.FieldStart("description")
			e.Str(l.Product.Description)
		}
		if l.Product.Image != "" {
			e.FieldStart("image")
			e.Str(l.Product.Image)
		}
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

// Unmarshal decodes a cart snapshot. Besides the native format it accepts
// the legacy layout [{"produto":{"nome","preco",...},"quantidade":n}].
// Lines without a name or with a quantity below 1 are dropped; lines
// without an ID get a fresh one.
func Unmarshal(data []byte) (Cart, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Array {
		return Cart{}, errors.New("cart snapshot is not an array")
	}

	var c Cart
	if err := d.Arr(func(d *jx.Decoder) error {
		var l rawLine
		if err := l.decode(d); err != nil {
			return err
		}
		line, ok := l.line()
		if ok {
			c.Lines = append(c.Lines, line)
		}
		return nil
	}); err != nil {
		return Cart{}, errors.Wrap(err, "decode cart snapshot")
	}
	return c, nil
}

type rawLine struct {
	id       string
	product  rawSnapshot
	quantity int
}

type rawSnapshot struct {
	name        string
	price       any
	category    string
	description string
	image       string
}

func (l *rawLine) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			s, err := d.Str()
			l.id = s
			return err
		case "quantity", "quantidade":
			n, err := d.Int()
			l.quantity = n
			return err
		case "produto", "product":
			return d.Obj(func(d *jx.Decoder, key string) error {
				return l.product.field(d, key)
			})
		default:
			return l.product.field(d, key)
		}
	})
}

func (s *rawSnapshot) field(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "name", "nome":
		s.name, err = d.Str()
	case "price", "preco":
		switch d.Next() {
		case jx.String:
			s.price, err = d.Str()
		case jx.Number:
			var n jx.Num
			n, err = d.Num()
			s.price = n.String()
		default:
			err = d.Skip()
		}
	case "category", "categoria":
		s.category, err = optionalStr(d)
	case "description", "descricao":
		s.description, err = optionalStr(d)
	case "image", "imagem":
		s.image, err = optionalStr(d)
	default:
		err = d.Skip()
	}
	return err
}

func optionalStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func (l rawLine) line() (Line, bool) {
	if strings.TrimSpace(l.product.name) == "" || l.quantity < 1 {
		return Line{}, false
	}
	price := format.ToDecimal(l.product.price, decimal.Zero)
	if price.IsNegative() {
		price = decimal.Zero
	}
	id := l.id
	if id == "" {
		id = uuid.NewString()
	}
	return Line{
		ID: id,
		Product: Snapshot{
			Name:        l.product.name,
			Price:       price,
			Category:    l.product.category,
			Description: l.product.description,
			Image:       l.product.image,
		},
		Quantity: min(l.quantity, MaxQuantity),
	}, true
}
