package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"nullashop.io/shop"
	"nullashop.io/shop/cart"
	"nullashop.io/shop/models"
	"nullashop.io/shop/product"
)

type CartHandler struct {
	carts   *cart.Store
	catalog shop.Service
	timeout time.Duration
}

func NewCartHandler(carts *cart.Store, catalog shop.Service, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, catalog: catalog, timeout: timeout}
}

type cartView struct {
	Items       []models.CartItem `json:"items"`
	TotalAmount float64           `json:"total_amount"`
	TotalCount  uint64            `json:"total_count"`
}

func (h *CartHandler) view(key string) cartView {
	return cartView{
		Items:       h.carts.Items(key),
		TotalAmount: h.carts.TotalAmount(key),
		TotalCount:  h.carts.TotalCount(key),
	}
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.view(cartKeyFrom(r.Context())))
}

type addItemRequest struct {
	ProductID uint64 `json:"product_id"`
}

// AddItem resolves the product from the catalog and puts one unit in the
// cart. Incrementing an existing line keeps its original snapshot of name,
// price and image.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == 0 {
		respondError(w, http.StatusBadRequest, "product_id required")
		return
	}

	p, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondError(w, http.StatusNotFound, "商品不存在")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	key := cartKeyFrom(r.Context())
	h.carts.AddItem(key, models.CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Image:     p.CoverImage(),
	})

	respondJSON(w, http.StatusOK, h.view(key))
}

type updateQuantityRequest struct {
	Quantity uint64 `json:"quantity"`
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := cartKeyFrom(r.Context())
	if err := h.carts.UpdateQuantity(key, productID, req.Quantity); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, h.view(key))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	key := cartKeyFrom(r.Context())
	h.carts.RemoveItem(key, productID)
	respondJSON(w, http.StatusOK, h.view(key))
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	key := cartKeyFrom(r.Context())
	h.carts.Clear(key)
	respondJSON(w, http.StatusOK, h.view(key))
}
