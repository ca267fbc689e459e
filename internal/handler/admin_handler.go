package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/container"
	"storefront/internal/middleware"
	"storefront/internal/service"
)

// AdminHandler serves the admin screen
type AdminHandler struct {
	container *container.Container
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(container *container.Container) *AdminHandler {
	return &AdminHandler{container: container}
}

func (h *AdminHandler) admin() *service.AdminService {
	return h.container.Services.Admin
}

func (h *AdminHandler) respond(w http.ResponseWriter, r *http.Request, status int, data interface{}, err error) {
	log := h.container.GetLogger()
	if err != nil {
		writeErrorResponse(w, r, log, err)
		return
	}
	respondJSON(w, log, status, data)
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin().Stats(r.Context())
	h.respond(w, r, http.StatusOK, stats, err)
}

// ListProducts handles GET /api/admin/products
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.admin().ListProducts(r.Context())
	h.respond(w, r, http.StatusOK, map[string]interface{}{"products": products}, err)
}

// CreateProduct handles POST /api/admin/products
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	product, err := h.admin().CreateProduct(r.Context(), h.container.State(), in)
	h.respond(w, r, http.StatusCreated, product, err)
}

// DeleteProduct handles DELETE /api/admin/products/{productID}
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	err := h.admin().DeleteProduct(r.Context(), h.container.State(), chi.URLParam(r, "productID"))
	h.respond(w, r, http.StatusOK, map[string]bool{"deleted": true}, err)
}

// ListCustomers handles GET /api/admin/customers
func (h *AdminHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.admin().ListCustomers(r.Context())
	h.respond(w, r, http.StatusOK, map[string]interface{}{"customers": customers}, err)
}

// CreateUpload handles POST /api/admin/uploads
func (h *AdminHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContentType string `json:"contentType"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.respond(w, r, 0, nil, err)
		return
	}
	upload, err := h.admin().ImageUploadURL(r.Context(), req.ContentType)
	h.respond(w, r, http.StatusCreated, upload, err)
}

// RegisterRoutes registers the admin routes behind the role gate
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminOnly(func() error {
			return h.admin().Authorize(h.container.State())
		}, h.container.GetLogger()))

		r.Get("/stats", h.Stats)
		r.Get("/products", h.ListProducts)
		r.Post("/products", h.CreateProduct)
		r.Delete("/products/{productID}", h.DeleteProduct)
		r.Get("/customers", h.ListCustomers)
		r.Post("/uploads", h.CreateUpload)
	})
}
