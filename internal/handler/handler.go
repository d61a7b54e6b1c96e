// Package handler exposes the storefront over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/format"
	"github.com/xenking/storefront/internal/storefront"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to the img/ and img/mini/ image paths.
	// When empty, the paths are returned relative.
	ImageBaseURL string
	// Money formats amounts. Defaults to format.BRL.
	Money *format.Money
	// OrderLimit wraps the order submission route, typically a rate limiter.
	OrderLimit func(http.Handler) http.Handler
}

// Handler serves the catalog and per-session storefront routes.
type Handler struct {
	cat          *catalog.Catalog
	sessions     *storefront.Registry
	money        *format.Money
	imageBaseURL string
	orderLimit   func(http.Handler) http.Handler
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig, cat *catalog.Catalog, sessions *storefront.Registry) *Handler {
	if cfg.Money == nil {
		cfg.Money = format.BRL
	}
	if cfg.OrderLimit == nil {
		cfg.OrderLimit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		cat:          cat,
		sessions:     sessions,
		money:        cfg.Money,
		imageBaseURL: cfg.ImageBaseURL,
		orderLimit:   cfg.OrderLimit,
	}
}

// Routes mounts the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog/products", h.ListProducts)
		r.Get("/catalog/products/{name}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(h.withSession)

			r.Get("/catalog/neighborhoods", h.ListNeighborhoods)

			r.Get("/carousel", h.GetCarousel)
			r.Post("/carousel/next", h.NextFrame)
			r.Post("/carousel/prev", h.PrevFrame)
			r.Post("/carousel/select/{index}", h.SelectFrame)

			r.Route("/session", func(r chi.Router) {
				r.Get("/products", h.SessionProducts)
				r.Put("/filter", h.SetFilter)

				r.Get("/cart", h.GetCart)
				r.Delete("/cart", h.ClearCart)
				r.Post("/cart/items", h.AddItem)
				r.Patch("/cart/items/{lineID}", h.ChangeItem)
				r.Delete("/cart/items/{lineID}", h.RemoveItem)

				r.Put("/neighborhood", h.SelectNeighborhood)

				r.Post("/checkout", h.OpenCheckout)
				r.Get("/checkout", h.GetCheckout)
				r.Delete("/checkout", h.CloseCheckout)
				r.With(h.orderLimit).Post("/order", h.SubmitOrder)
			})
		})
	})
}

// Router returns a chi router serving the API.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	h.Routes(r)
	return r
}

type encoder interface {
	Encode(e *jx.Encoder)
}

func writeJSON(w http.ResponseWriter, status int, v encoder) {
	var e jx.Encoder
	v.Encode(&e)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}
