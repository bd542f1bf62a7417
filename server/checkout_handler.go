package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nullashop.io/shop/checkout"
	"nullashop.io/shop/models/enum"
)

type CheckoutHandler struct {
	checkout *checkout.Manager
	timeout  time.Duration
}

func NewCheckoutHandler(m *checkout.Manager, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{checkout: m, timeout: timeout}
}

type checkoutStateResponse struct {
	State enum.CheckoutState `json:"state"`
}

func (h *CheckoutHandler) State(w http.ResponseWriter, r *http.Request) {
	key := cartKeyFrom(r.Context())
	respondJSON(w, http.StatusOK, checkoutStateResponse{State: h.checkout.State(key)})
}

// Begin starts a checkout attempt. Without a session the flow parks in
// awaiting_login and the client shows the login prompt.
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	key := cartKeyFrom(r.Context())
	state, err := h.checkout.Begin(key, sessionFrom(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			respondError(w, http.StatusBadRequest, "購物車是空的")
		case errors.Is(err, checkout.ErrSubmitting):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, checkoutStateResponse{State: state})
}

// Abandon closes the login prompt without authenticating.
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	key := cartKeyFrom(r.Context())
	h.checkout.Abandon(key)
	respondJSON(w, http.StatusOK, checkoutStateResponse{State: h.checkout.State(key)})
}

// Confirm materializes the cart into an order and returns the receipt.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key := cartKeyFrom(r.Context())
	receipt, err := h.checkout.Confirm(ctx, key, sessionFrom(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrLoginRequired):
			respondError(w, http.StatusUnauthorized, "請先登入")
		case errors.Is(err, checkout.ErrEmptyCart):
			respondError(w, http.StatusBadRequest, "購物車是空的")
		case errors.Is(err, checkout.ErrSubmitting), errors.Is(err, checkout.ErrNotConfirmable):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusBadGateway, "訂單儲存失敗")
		}
		return
	}

	respondJSON(w, http.StatusCreated, receipt)
}
