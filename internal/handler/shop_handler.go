package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storefront/internal/container"
	"storefront/internal/service"
	"storefront/internal/session"
	apperrors "storefront/pkg/errors"
)

// ShopHandler serves the catalog and the cart
type ShopHandler struct {
	container *container.Container
}

// NewShopHandler creates a new shop handler
func NewShopHandler(container *container.Container) *ShopHandler {
	return &ShopHandler{container: container}
}

// ProductsResponse is the filtered catalog
type ProductsResponse struct {
	Products []service.ProductCard `json:"products"`
	Count    int                   `json:"count"`
}

// ListProducts handles GET /api/products
func (h *ShopHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()
	q := r.URL.Query()

	filter := service.Filter{
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
		Search:   q.Get("search"),
	}
	if raw := q.Get("maxPrice"); raw != "" {
		maxPrice, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeErrorResponse(w, r, log, apperrors.NewValidationError("maxPrice must be a number.", nil))
			return
		}
		filter.MaxPrice = maxPrice
	}

	cards, err := h.container.Services.Catalog.Browse(h.container.State(), filter)
	if err != nil {
		writeErrorResponse(w, r, log, err)
		return
	}
	respondJSON(w, log, http.StatusOK, ProductsResponse{Products: cards, Count: len(cards)})
}

func (h *ShopHandler) respondCart(w http.ResponseWriter, r *http.Request, view session.CartView, err error) {
	log := h.container.GetLogger()
	if err != nil {
		writeErrorResponse(w, r, log, err)
		return
	}
	respondJSON(w, log, http.StatusOK, view)
}

// GetCart handles GET /api/cart
func (h *ShopHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r, h.container.Services.Cart.View(h.container.State()), nil)
}

// AddItem handles POST /api/cart/items
func (h *ShopHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.respondCart(w, r, session.CartView{}, err)
		return
	}
	if req.ProductID == "" {
		h.respondCart(w, r, session.CartView{}, apperrors.NewValidationError("productId is required.", nil))
		return
	}
	view, err := h.container.Services.Cart.Add(r.Context(), h.container.State(), req.ProductID)
	h.respondCart(w, r, view, err)
}

// UpdateItem handles PATCH /api/cart/items/{productID}
func (h *ShopHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.respondCart(w, r, session.CartView{}, err)
		return
	}
	view, err := h.container.Services.Cart.UpdateQuantity(r.Context(), h.container.State(), chi.URLParam(r, "productID"), req.Delta)
	h.respondCart(w, r, view, err)
}

// RemoveItem handles DELETE /api/cart/items/{productID}
func (h *ShopHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.container.Services.Cart.Remove(r.Context(), h.container.State(), chi.URLParam(r, "productID"))
	h.respondCart(w, r, view, err)
}

// Checkout handles POST /api/cart/checkout
func (h *ShopHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	state := h.container.State()
	err := h.container.Services.Cart.Checkout(r.Context(), state)
	h.respondCart(w, r, h.container.Services.Cart.View(state), err)
}
