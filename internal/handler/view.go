package handler

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/carousel"
	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/filter"
	"github.com/xenking/storefront/internal/format"
	"github.com/xenking/storefront/internal/notify"
	"github.com/xenking/storefront/internal/order"
	"github.com/xenking/storefront/internal/storefront"
)

// Display texts.
const (
	NoProductsMessage      = "Nenhum produto encontrado."
	ProductsErrorMessage   = "Não foi possível carregar os produtos no momento. Tente novamente mais tarde."
	EmptyCartMessage       = "Carrinho vazio."
	SelectNeighborhoodText = "Selecione"
	DeliveryLabel          = "Valor entrega: "

	thumbnailPlaceholder = "https://via.placeholder.com/300x200?text="
	imagePlaceholder     = "https://via.placeholder.com/600x400?text="
)

func encodeAmount(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.StringFixed(2)))
}

func encodeStrField(e *jx.Encoder, name, v string) {
	if v == "" {
		return
	}
	e.FieldStart(name)
	e.Str(v)
}

type apiError struct {
	Code    string
	Message string
	// Order is set when the order was composed but the channel failed.
	Order *orderView
}

func (v apiError) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(v.Code)
	e.FieldStart("message")
	e.Str(v.Message)
	if v.Order != nil {
		e.FieldStart("order")
		v.Order.Encode(e)
	}
	e.ObjEnd()
}

type productView struct {
	Name        string
	Price       decimal.Decimal
	PriceText   string
	Category    string
	Description string
	Thumbnail   string
	Image       string
}

func (h *Handler) productView(p catalog.Product) productView {
	v := productView{
		Name:        p.Name,
		Price:       p.Price,
		PriceText:   h.money.Format(p.Price),
		Category:    p.Category,
		Description: p.Description,
	}
	if p.Image != "" {
		v.Thumbnail = h.imageBaseURL + "img/mini/" + p.Image
		v.Image = h.imageBaseURL + "img/" + p.Image
	} else {
		name := format.QueryComponent(p.Name)
		v.Thumbnail = thumbnailPlaceholder + name
		v.Image = imagePlaceholder + name
	}
	return v
}

func (v productView) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(v.Name)
	e.FieldStart("price")
	encodeAmount(e, v.Price)
	e.FieldStart("priceText")
	e.Str(v.PriceText)
	encodeStrField(e, "category", v.Category)
	encodeStrField(e, "description", v.Description)
	e.FieldStart("thumbnail")
	e.Str(v.Thumbnail)
	e.FieldStart("image")
	e.Str(v.Image)
	e.ObjEnd()
}

type productsView struct {
	Products   []productView
	Categories []string
	Criteria   filter.Criteria
	// Pending reports a debounced search not yet applied.
	Pending bool
	Message string
	Error   string
}

func (h *Handler) productsView(products []catalog.Product, c filter.Criteria) productsView {
	v := productsView{
		Products:   make([]productView, 0, len(products)),
		Categories: filter.Categories(h.cat.Products()),
		Criteria:   c,
	}
	for _, p := range products {
		v.Products = append(v.Products, h.productView(p))
	}
	st := h.cat.Status(catalog.DocProducts)
	switch {
	case st.Err != nil && !st.Loaded:
		v.Error = ProductsErrorMessage
	case len(products) == 0:
		v.Message = NoProductsMessage
	}
	return v
}

func (v productsView) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("products")
	e.ArrStart()
	for _, p := range v.Products {
		p.Encode(e)
	}
	e.ArrEnd()
	e.FieldStart("categories")
	e.ArrStart()
	for _, c := range v.Categories {
		e.Str(c)
	}
	e.ArrEnd()
	e.FieldStart("criteria")
	e.ObjStart()
	e.FieldStart("category")
	e.Str(v.Criteria.Category)
	e.FieldStart("q")
	e.Str(v.Criteria.Search)
	e.FieldStart("sort")
	e.Str(string(v.Criteria.Sort))
	e.ObjEnd()
	e.FieldStart("pending")
	e.Bool(v.Pending)
	encodeStrField(e, "message", v.Message)
	encodeStrField(e, "error", v.Error)
	e.ObjEnd()
}

type neighborhoodOption struct {
	Value string
	Label string
	Fee   decimal.Decimal
}

type neighborhoodsView struct {
	Options  []neighborhoodOption
	Selected string
	Label    string
	Error    string
}

func (h *Handler) neighborhoodsView(selected string) neighborhoodsView {
	list := h.cat.Neighborhoods()
	v := neighborhoodsView{
		Options:  make([]neighborhoodOption, 0, len(list)+1),
		Selected: selected,
		Label:    DeliveryLabel + "-",
	}
	v.Options = append(v.Options, neighborhoodOption{Label: SelectNeighborhoodText})
	for _, n := range list {
		v.Options = append(v.Options, neighborhoodOption{
			Value: n.Name,
			Label: n.Name + " - " + h.money.Format(n.DeliveryFee),
			Fee:   n.DeliveryFee,
		})
	}
	if fee, ok := h.cat.DeliveryFee(selected); ok && fee.IsPositive() {
		v.Label = DeliveryLabel + h.money.Format(fee)
	}
	if st := h.cat.Status(catalog.DocNeighborhoods); st.Err != nil {
		v.Error = storefront.NeighborhoodsErrorNotice
	}
	return v
}

func (v neighborhoodsView) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("options")
	e.ArrStart()
	for _, o := range v.Options {
		e.ObjStart()
		e.FieldStart("value")
		e.Str(o.Value)
		e.FieldStart("label")
		e.Str(o.Label)
		if o.Value != "" {
			e.FieldStart("fee")
			encodeAmount(e, o.Fee)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("selected")
	e.Str(v.Selected)
	e.FieldStart("label")
	e.Str(v.Label)
	encodeStrField(e, "error", v.Error)
	e.ObjEnd()
}

type totalsView struct {
	totals cart.Totals
	money  *format.Money
}

func (v totalsView) Encode(e *jx.Encoder) {
	t := v.totals
	e.ObjStart()
	e.FieldStart("subtotal")
	encodeAmount(e, t.Subtotal)
	e.FieldStart("subtotalText")
	e.Str(v.money.Format(t.Subtotal))
	e.FieldStart("deliveryFee")
	encodeAmount(e, t.DeliveryFee)
	e.FieldStart("deliveryFeeText")
	e.Str(v.money.Format(t.DeliveryFee))
	e.FieldStart("grandTotal")
	encodeAmount(e, t.GrandTotal)
	e.FieldStart("grandTotalText")
	e.Str(v.money.Format(t.GrandTotal))
	e.FieldStart("count")
	e.Int(t.Count)
	e.FieldStart("badge")
	e.Str(v.money.Amount(t.GrandTotal))
	e.ObjEnd()
}

type noticesView []notify.Notice

func (v noticesView) Encode(e *jx.Encoder) {
	e.ArrStart()
	for _, n := range v {
		e.ObjStart()
		e.FieldStart("id")
		e.UInt64(n.ID)
		e.FieldStart("level")
		e.Str(string(n.Level))
		e.FieldStart("message")
		e.Str(n.Message)
		e.FieldStart("expiresAt")
		e.Str(n.ExpiresAt.UTC().Format(time.RFC3339Nano))
		e.ObjEnd()
	}
	e.ArrEnd()
}

type cartView struct {
	Cart    cart.Cart
	Totals  cart.Totals
	Notices []notify.Notice
	// Changed is false when a mutation targeted an unknown line.
	Changed bool
	money   *format.Money
}

func (h *Handler) cartView(c cart.Cart, t cart.Totals, notices []notify.Notice, changed bool) cartView {
	return cartView{Cart: c, Totals: t, Notices: notices, Changed: changed, money: h.money}
}

func (v cartView) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range v.Cart.Lines {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(l.ID)
		e.FieldStart("name")
		e.Str(l.Product.Name)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unitPrice")
		encodeAmount(e, l.Product.Price)
		e.FieldStart("total")
		encodeAmount(e, l.Total())
		e.FieldStart("totalText")
		e.Str(v.money.Format(l.Total()))
		e.ObjEnd()
	}
	e.ArrEnd()
	if v.Cart.Empty() {
		e.FieldStart("message")
		e.Str(EmptyCartMessage)
	}
	e.FieldStart("totals")
	totalsView{totals: v.Totals, money: v.money}.Encode(e)
	e.FieldStart("notices")
	noticesView(v.Notices).Encode(e)
	e.FieldStart("changed")
	e.Bool(v.Changed)
	e.ObjEnd()
}

type carouselView carousel.State

func (v carouselView) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("index")
	e.Int(v.Index)
	e.FieldStart("frames")
	e.ArrStart()
	for _, f := range v.Frames {
		e.Str(f)
	}
	e.ArrEnd()
	e.FieldStart("autoplay")
	e.Bool(v.Autoplay)
	if !v.NextAt.IsZero() {
		e.FieldStart("nextAt")
		e.Str(v.NextAt.UTC().Format(time.RFC3339Nano))
	}
	e.ObjEnd()
}

type checkoutView struct {
	State order.State
	Form  order.Form
}

func (v checkoutView) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("state")
	e.Str(v.State.String())
	e.FieldStart("form")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(v.Form.Name)
	e.FieldStart("address")
	e.Str(v.Form.Address)
	e.FieldStart("neighborhood")
	e.Str(v.Form.Neighborhood)
	e.FieldStart("reference")
	e.Str(v.Form.Reference)
	e.FieldStart("payment")
	e.Str(v.Form.Payment)
	e.FieldStart("remarks")
	e.Str(v.Form.Remarks)
	e.ObjEnd()
	e.ObjEnd()
}

type orderView struct {
	Result *order.Result
	money  *format.Money
}

func (v *orderView) Encode(e *jx.Encoder) {
	r := v.Result
	e.ObjStart()
	e.FieldStart("id")
	e.Str(r.ID)
	e.FieldStart("link")
	e.Str(r.Link)
	e.FieldStart("text")
	e.Str(r.Text)
	e.FieldStart("totals")
	totalsView{totals: r.Totals, money: v.money}.Encode(e)
	e.FieldStart("cleared")
	e.Bool(r.Cleared)
	e.ObjEnd()
}
