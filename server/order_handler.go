package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"nullashop.io/shop"
	"nullashop.io/shop/models/enum"
	"nullashop.io/shop/order"
)

type OrderHandler struct {
	shop    shop.Service
	timeout time.Duration
}

func NewOrderHandler(s shop.Service, timeout time.Duration) *OrderHandler {
	return &OrderHandler{shop: s, timeout: timeout}
}

// ListMine returns the signed-in user's orders, newest first.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session := sessionFrom(r.Context())
	orders, err := h.shop.ListUserOrders(ctx, session.User.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// Get returns one order. Non-owners get a 404 rather than a 403 so order
// ids cannot be probed, except admins who may read any order.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "orderID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.shop.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondError(w, http.StatusNotFound, "order not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	session := sessionFrom(r.Context())
	if o.UserID != session.User.ID && !session.User.IsAdmin() {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Cancel lets the owner cancel an order that has not shipped yet.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "orderID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	session := sessionFrom(r.Context())
	if err := h.shop.CancelOrder(ctx, id, session.User.ID); err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			respondError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, shop.ErrNotOrderOwner):
			respondError(w, http.StatusForbidden, "不能取消別人的訂單")
		case errors.Is(err, shop.ErrOrderNotCancellable):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to cancel order")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListAll is the back-office order list.
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := queryUint(r, "limit", 50)
	offset := queryUint(r, "offset", 0)

	orders, err := h.shop.ListAllOrders(ctx, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status enum.OrderStatus `json:"status"`
}

// UpdateStatus moves an order through the back-office status flow.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "orderID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.Valid() {
		respondError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := h.shop.UpdateOrderStatus(ctx, id, req.Status); err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			respondError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, shop.ErrInvalidStatusChange):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to update order status")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
