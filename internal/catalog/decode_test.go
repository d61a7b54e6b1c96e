package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProducts(t *testing.T) {
	data := []byte(`[
		{"nome":"Pizza","preco":40,"categoria":"Pizzas","descricao":"Mussarela","imagem":"pizza.jpg"},
		{"nome":"Suco","preco":"8.50","categoria":"Bebidas"},
		{"name":"Soda","price":5,"category":"Bebidas","extra":{"a":[1,2]}},
		{"nome":"","preco":10},
		{"nome":"Sem preço"},
		{"nome":"Grátis","preco":""},
		{"nome":"Negativo","preco":-3},
		{"nome":"Lixo","preco":"abc"}
	]`)

	products, rejected, err := DecodeProducts(data)
	require.NoError(t, err)
	assert.Equal(t, 5, rejected)
	require.Len(t, products, 3)

	assert.Equal(t, "Pizza", products[0].Name)
	assert.True(t, decimal.NewFromInt(40).Equal(products[0].Price))
	assert.Equal(t, "Pizzas", products[0].Category)
	assert.Equal(t, "Mussarela", products[0].Description)
	assert.Equal(t, "pizza.jpg", products[0].Image)

	assert.Equal(t, "Suco", products[1].Name)
	assert.True(t, decimal.RequireFromString("8.5").Equal(products[1].Price))

	assert.Equal(t, "Soda", products[2].Name)
	assert.Equal(t, "Bebidas", products[2].Category)
}

func TestDecodeProducts_Malformed(t *testing.T) {
	for _, doc := range []string{`{"nome":"Pizza"}`, `"x"`, `[1,2]`, `[{"nome":`} {
		t.Run(doc, func(t *testing.T) {
			_, _, err := DecodeProducts([]byte(doc))
			require.Error(t, err)
		})
	}

	_, _, err := DecodeProducts([]byte(`null`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeNeighborhoods(t *testing.T) {
	data := []byte(`[
		{"nome":"Centro","valor":5},
		{"nome":"Bairro Alto","valor":"7.5"},
		{"nome":"Sem taxa"},
		{"nome":"Texto","valor":"x"},
		{"nome":"Negativo","valor":-1},
		{"valor":3}
	]`)

	got, rejected, err := DecodeNeighborhoods(data)
	require.NoError(t, err)
	assert.Equal(t, 2, rejected)
	require.Len(t, got, 4)

	fees := map[string]string{}
	for _, n := range got {
		fees[n.Name] = n.DeliveryFee.StringFixed(2)
	}
	assert.Equal(t, map[string]string{
		"Centro":      "5.00",
		"Bairro Alto": "7.50",
		"Sem taxa":    "0.00",
		"Texto":       "0.00",
	}, fees)
}
