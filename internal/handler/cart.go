package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/storefront"
)

func (h *Handler) writeCart(w http.ResponseWriter, status int, s *storefront.Session, changed bool) {
	writeJSON(w, status, h.cartView(s.Cart(), s.Totals(), s.Notices(), changed))
}

// GetCart serves the cart panel with totals and active notices.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, http.StatusOK, sessionFrom(r.Context()), true)
}

// AddItem adds one unit of a catalog product.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeBody(r, req.decode); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s := sessionFrom(r.Context())
	if _, err := s.AddToCart(r.Context(), req.Product); err != nil {
		if errors.Is(err, storefront.ErrUnknownProduct) {
			writeError(w, http.StatusNotFound, "unknown_product", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	h.writeCart(w, http.StatusCreated, s, true)
}

// ChangeItem adds delta to a line's quantity. A stale line ID leaves the
// cart unchanged.
func (h *Handler) ChangeItem(w http.ResponseWriter, r *http.Request) {
	var req changeItemRequest
	if err := decodeBody(r, req.decode); err != nil || !req.set {
		writeError(w, http.StatusBadRequest, "bad_request", "delta is required")
		return
	}
	s := sessionFrom(r.Context())
	changed := s.ChangeQuantity(r.Context(), chi.URLParam(r, "lineID"), req.Delta)
	h.writeCart(w, http.StatusOK, s, changed)
}

// RemoveItem removes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	removed := s.RemoveLine(r.Context(), chi.URLParam(r, "lineID"))
	h.writeCart(w, http.StatusOK, s, removed)
}

// ClearCart empties the cart. The caller confirms with ?confirm=true.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if !confirmed {
		writeError(w, http.StatusPreconditionRequired, "confirmation_required", cart.ClearPrompt)
		return
	}
	s := sessionFrom(r.Context())
	cleared := s.ClearCart(r.Context(), cart.ConfirmFunc(func(string) bool { return true }))
	h.writeCart(w, http.StatusOK, s, cleared)
}

// SelectNeighborhood stores the delivery neighborhood. An empty name clears
// the selection.
func (h *Handler) SelectNeighborhood(w http.ResponseWriter, r *http.Request) {
	var req neighborhoodRequest
	if err := decodeBody(r, req.decode); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s := sessionFrom(r.Context())
	if err := s.SelectNeighborhood(r.Context(), req.Name); err != nil {
		if errors.Is(err, storefront.ErrUnknownNeighborhood) {
			writeError(w, http.StatusUnprocessableEntity, "unknown_neighborhood", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, h.neighborhoodsView(s.Neighborhood()))
}
