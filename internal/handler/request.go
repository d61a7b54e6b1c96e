package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/order"
)

const maxBodySize = 64 << 10

var errBadRequest = errors.New("malformed request body")

// decodeBody reads the JSON object in r's body and calls fn for every field.
// Unknown fields must be skipped by fn.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(data) == 0 {
		return errBadRequest
	}
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		return fn(d, key)
	}); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}

// decodeString reads a string, accepting null as empty.
func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

type addItemRequest struct {
	Product string
}

func (req *addItemRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "product", "name", "nome":
		req.Product, err = decodeString(d)
	default:
		err = d.Skip()
	}
	return err
}

type changeItemRequest struct {
	Delta int
	set   bool
}

func (req *changeItemRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "delta":
		req.Delta, err = d.Int()
		req.set = true
	default:
		err = d.Skip()
	}
	return err
}

type neighborhoodRequest struct {
	Name string
}

func (req *neighborhoodRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "name", "bairro":
		req.Name, err = decodeString(d)
	default:
		err = d.Skip()
	}
	return err
}

type filterRequest struct {
	Category string
	Search   string
	Sort     string
}

func (req *filterRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "category", "categoria":
		req.Category, err = decodeString(d)
	case "q", "search", "busca":
		req.Search, err = decodeString(d)
	case "sort", "ordenacao":
		req.Sort, err = decodeString(d)
	default:
		err = d.Skip()
	}
	return err
}

type orderRequest struct {
	Form order.Form
}

func (req *orderRequest) decode(d *jx.Decoder, key string) (err error) {
	f := &req.Form
	switch key {
	case "name", "nome":
		f.Name, err = decodeString(d)
	case "address", "endereco":
		f.Address, err = decodeString(d)
	case "neighborhood", "bairro":
		f.Neighborhood, err = decodeString(d)
	case "reference", "referencia":
		f.Reference, err = decodeString(d)
	case "payment", "pagamento":
		f.Payment, err = decodeString(d)
	case "remarks", "observacoes":
		f.Remarks, err = decodeString(d)
	default:
		err = d.Skip()
	}
	return err
}
