package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/order"
)

func (h *Handler) writeCheckout(w http.ResponseWriter, r *http.Request) {
	state, form := sessionFrom(r.Context()).Checkout()
	writeJSON(w, http.StatusOK, checkoutView{State: state, Form: form})
}

// OpenCheckout opens the delivery form, prefilled with the selected
// neighborhood.
func (h *Handler) OpenCheckout(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).OpenCheckout()
	h.writeCheckout(w, r)
}

// GetCheckout serves the delivery form state.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	h.writeCheckout(w, r)
}

// CloseCheckout closes the delivery form.
func (h *Handler) CloseCheckout(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).CloseCheckout()
	h.writeCheckout(w, r)
}

// SubmitOrder validates the delivery form and hands the order off.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeBody(r, req.decode); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, err := sessionFrom(r.Context()).SubmitOrder(r.Context(), req.Form)
	if err != nil {
		status, body := h.mapOrderError(err, res)
		if status >= http.StatusInternalServerError {
			zctx.From(r.Context()).Warn("Order hand-off failed", zap.Error(err))
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusCreated, &orderView{Result: res, money: h.money})
}

// mapOrderError converts submission errors to a status and error body.
func (h *Handler) mapOrderError(err error, res *order.Result) (int, apiError) {
	switch {
	case errors.Is(err, order.ErrMissingFields):
		return http.StatusUnprocessableEntity, apiError{Code: "missing_fields", Message: order.MissingFieldsMessage}
	case errors.Is(err, order.ErrEmptyCart):
		return http.StatusUnprocessableEntity, apiError{Code: "empty_cart", Message: order.EmptyCartMessage}
	case errors.Is(err, order.ErrFormClosed):
		return http.StatusConflict, apiError{Code: "form_closed", Message: err.Error()}
	}

	var chErr *order.ChannelError
	if errors.As(err, &chErr) {
		body := apiError{Code: "channel_failed", Message: order.ChannelFailureMessage}
		if res != nil {
			body.Order = &orderView{Result: res, money: h.money}
		}
		return http.StatusBadGateway, body
	}

	return http.StatusInternalServerError, apiError{Code: "internal", Message: "internal error"}
}
