package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/carousel"
	"github.com/xenking/storefront/internal/filter"
)

func criteriaFromQuery(q url.Values) filter.Criteria {
	return filter.Criteria{
		Category: q.Get("category"),
		Search:   q.Get("q"),
		Sort:     filter.ParseSortMode(q.Get("sort")),
	}
}

// ListProducts serves the product grid filtered by the query parameters.
// It does not touch session state.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	c := criteriaFromQuery(r.URL.Query())
	writeJSON(w, http.StatusOK, h.productsView(filter.Apply(h.cat.Products(), c), c))
}

// GetProduct serves the product detail modal.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid product name")
		return
	}
	p, ok := h.cat.Product(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_product", "product not found")
		return
	}
	writeJSON(w, http.StatusOK, h.productView(p))
}

// ListNeighborhoods serves the selector options with the session's selection.
func (h *Handler) ListNeighborhoods(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, h.neighborhoodsView(s.Neighborhood()))
}

// SessionProducts serves the grid for the session's committed criteria.
func (h *Handler) SessionProducts(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	c, pending := s.Criteria()
	v := h.productsView(s.Products(), c)
	v.Pending = pending
	writeJSON(w, http.StatusOK, v)
}

// SetFilter updates the session criteria. Search changes are debounced, so
// the response may still show the previous search with pending set.
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeBody(r, req.decode); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s := sessionFrom(r.Context())
	s.SetFilter(filter.Criteria{
		Category: req.Category,
		Search:   req.Search,
		Sort:     filter.ParseSortMode(req.Sort),
	})
	h.SessionProducts(w, r)
}

// GetCarousel serves the carousel position.
func (h *Handler) GetCarousel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, carouselView(sessionFrom(r.Context()).Carousel().State()))
}

func (h *Handler) NextFrame(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Carousel()
	c.Next()
	writeJSON(w, http.StatusOK, carouselView(c.State()))
}

func (h *Handler) PrevFrame(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Carousel()
	c.Prev()
	writeJSON(w, http.StatusOK, carouselView(c.State()))
}

func (h *Handler) SelectFrame(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Carousel()
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err == nil {
		err = c.Select(i)
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_index", carousel.ErrOutOfRange.Error())
		return
	}
	writeJSON(w, http.StatusOK, carouselView(c.State()))
}
