package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"nullashop.io/shop"
	"nullashop.io/shop/models"
	"nullashop.io/shop/product"
)

// maxImageUpload caps a single product image at 10 MB.
const maxImageUpload = 10 << 20

type ProductHandler struct {
	shop    shop.Service
	timeout time.Duration
}

func NewProductHandler(s shop.Service, timeout time.Duration) *ProductHandler {
	return &ProductHandler{shop: s, timeout: timeout}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := queryUint(r, "limit", 20)
	offset := queryUint(r, "offset", 0)

	products, err := h.shop.ListProducts(ctx, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Featured(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.shop.ListFeaturedProducts(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list featured products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	term := r.URL.Query().Get("q")
	if term == "" {
		respondJSON(w, http.StatusOK, []*models.Product{})
		return
	}

	products, err := h.shop.SearchProducts(ctx, term)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to search products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.shop.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondError(w, http.StatusNotFound, "商品不存在")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Featured    bool    `json:"featured"`
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "name required")
		return
	}

	p := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Featured:    req.Featured,
	}
	if err := h.shop.CreateProduct(ctx, p); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create product")
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "name required")
		return
	}

	p := &models.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Featured:    req.Featured,
	}
	if err := h.shop.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondError(w, http.StatusNotFound, "商品不存在")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.shop.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondError(w, http.StatusNotFound, "商品不存在")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// AttachImage accepts a multipart upload and attaches it to the product.
func (h *ProductHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageUpload))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	owner := ""
	if session := sessionFrom(r.Context()); session != nil {
		owner = session.User.ID
	}

	p, err := h.shop.AttachProductImage(ctx, id, owner, header.Filename, data)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondError(w, http.StatusNotFound, "商品不存在")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to attach image")
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

type removeImageRequest struct {
	URL string `json:"url"`
}

func (h *ProductHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := pathID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req removeImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		respondError(w, http.StatusBadRequest, "url required")
		return
	}

	if err := h.shop.RemoveProductImage(ctx, id, req.URL); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondError(w, http.StatusNotFound, "商品不存在")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to remove image")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func pathID(r *http.Request, param string) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, param), 10, 64)
}

func queryUint(r *http.Request, param string, fallback uint64) uint64 {
	v := r.URL.Query().Get(param)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
