package order

import (
	"strings"
	"text/template"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/format"
)

// DefaultTemplate is the order message layout.
const DefaultTemplate = `Olá, gostaria fazer um pedido:

{{range .Lines}}- {{.Product.Name}} (x{{.Quantity}}) - {{money .Total}}
{{end}}
Valor entrega: {{money .Totals.DeliveryFee}}
Total: {{money .Totals.GrandTotal}}

Nome: {{.Form.Name}}
Endereço: {{.Form.Address}}
Bairro: {{.Form.Neighborhood}}
Ponto de referência: {{.Form.Reference}}
Forma de Pagamento: {{.Form.Payment}}
Observações: {{.Form.Remarks}}

*Aguarde nosso retorno para confirmar seu pedido.*`

// Message is the data available to the message template.
type Message struct {
	Lines  []cart.Line
	Totals cart.Totals
	Form   Form
}

var defaultRenderer = func() *Renderer {
	r, err := NewRenderer("", nil)
	if err != nil {
		panic(err)
	}
	return r
}()

// Renderer renders order messages.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses layout, or DefaultTemplate when layout is empty. The
// template can call money to format amounts.
func NewRenderer(layout string, money *format.Money) (*Renderer, error) {
	if layout == "" {
		layout = DefaultTemplate
	}
	if money == nil {
		money = format.BRL
	}
	tmpl, err := template.New("order").
		Funcs(template.FuncMap{
			"money": func(v decimal.Decimal) string { return money.Format(v) },
		}).
		Option("missingkey=error").
		Parse(layout)
	if err != nil {
		return nil, errors.Wrap(err, "parse order template")
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the template.
func (r *Renderer) Render(m Message) (string, error) {
	var sb strings.Builder
	if err := r.tmpl.Execute(&sb, m); err != nil {
		return "", errors.Wrap(err, "render order message")
	}
	return sb.String(), nil
}

// Link appends text to channelURL as the "text" query parameter, percent
// encoding every reserved character.
func Link(channelURL, text string) string {
	sep := "?"
	if strings.Contains(channelURL, "?") {
		sep = "&"
	}
	return channelURL + sep + "text=" + format.QueryComponent(text)
}

// ChannelURL returns base if set, otherwise the wa.me link for phone.
func ChannelURL(base, phone string) string {
	if base != "" {
		return base
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return "https://wa.me/" + digits
}
