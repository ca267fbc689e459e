package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/session"
	"storefront/pkg/blob"
	apperrors "storefront/pkg/errors"
	"storefront/pkg/logger"
	"storefront/pkg/sanitize"
)

// ImageSigner issues presigned product image uploads
type ImageSigner interface {
	PresignUpload(ctx context.Context, contentType string) (*blob.Presigned, error)
}

// Stats is the admin dashboard summary
type Stats struct {
	Products  int     `json:"totalProducts"`
	Customers int     `json:"totalCustomers"`
	Orders    int     `json:"totalOrders"`
	Revenue   float64 `json:"totalRevenue"`
}

// ProductInput is the admin product form
type ProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"imageUrl"`
	Badge       string  `json:"badge"`
}

func (in *ProductInput) sanitize() {
	in.Name = sanitize.Text(in.Name)
	in.Description = sanitize.Text(in.Description)
	in.Badge = sanitize.Text(in.Badge)
	in.Category = strings.TrimSpace(in.Category)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
}

func (in *ProductInput) validate() error {
	details := map[string]interface{}{}
	if in.Name == "" {
		details["name"] = "Product name is required."
	}
	if in.Category == "" {
		details["category"] = "Category is required."
	}
	if in.ImageURL == "" {
		details["imageUrl"] = "Image URL is required."
	}
	if in.Price <= 0 {
		details["price"] = "Price must be greater than 0."
	}
	if in.Stock < 0 {
		details["stock"] = "Stock cannot be negative."
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("Invalid product.", details)
	}
	return nil
}

// AdminService backs the admin screen
type AdminService struct {
	repos   *repository.Repositories
	catalog *CatalogService
	images  ImageSigner
	now     func() time.Time
	logger  *logger.Logger
}

// NewAdminService creates a new admin service. images may be nil when uploads are not configured.
func NewAdminService(repos *repository.Repositories, catalog *CatalogService, images ImageSigner, log *logger.Logger) *AdminService {
	return &AdminService{
		repos:   repos,
		catalog: catalog,
		images:  images,
		now:     time.Now,
		logger:  log.Named("admin"),
	}
}

// Authorize admits only an admin session
func (s *AdminService) Authorize(state *session.State) error {
	user := state.User()
	if user == nil {
		return apperrors.NewAuthenticationError("Please sign in.")
	}
	if !user.IsAdmin() {
		return apperrors.NewAuthorizationError("Access denied. Admin only.")
	}
	return nil
}

func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	products, err := s.repos.Product.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count products", err)
	}
	customers, err := s.repos.Profile.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count customers", err)
	}
	return &Stats{Products: len(products), Customers: len(customers)}, nil
}

func (s *AdminService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repos.Product.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list products", err)
	}
	return products, nil
}

// ListCustomers returns every profile, newest first
func (s *AdminService) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	customers, err := s.repos.Profile.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list customers", err)
	}
	return customers, nil
}

// CreateProduct adds a product and refreshes the storefront catalog
func (s *AdminService) CreateProduct(ctx context.Context, state *session.State, in ProductInput) (*domain.Product, error) {
	in.sanitize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	product := &domain.Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
		Badge:       in.Badge,
		CreatedAt:   s.now().UTC(),
	}
	if user := state.User(); user != nil {
		product.CreatedBy = user.UID
	}

	if err := s.repos.Product.Create(ctx, product); err != nil {
		state.Notify("Failed to add product", domain.SeverityError)
		return nil, apperrors.NewInternalError("failed to add product", err)
	}

	s.refresh(ctx, state)
	state.Notify("Product added successfully!", domain.SeveritySuccess)
	s.logger.Info("product created", zap.String("product_id", product.ID), zap.String("created_by", product.CreatedBy))
	return product, nil
}

func (s *AdminService) DeleteProduct(ctx context.Context, state *session.State, id string) error {
	existing, err := s.repos.Product.Get(ctx, id)
	if err != nil {
		state.Notify("Failed to delete product", domain.SeverityError)
		return apperrors.NewInternalError("failed to delete product", err)
	}
	if existing == nil {
		return apperrors.NewNotFoundError("Product not found")
	}

	if err := s.repos.Product.Delete(ctx, id); err != nil {
		state.Notify("Failed to delete product", domain.SeverityError)
		return apperrors.NewInternalError("failed to delete product", err)
	}

	s.refresh(ctx, state)
	state.Notify("Product deleted successfully!", domain.SeveritySuccess)
	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}

// ImageUploadURL presigns an upload for a product image
func (s *AdminService) ImageUploadURL(ctx context.Context, contentType string) (*blob.Presigned, error) {
	if s.images == nil {
		return nil, apperrors.NewServiceUnavailableError("Image uploads are not configured")
	}
	if !strings.HasPrefix(contentType, "image/") || len(contentType) == len("image/") {
		return nil, apperrors.NewValidationError("Only image uploads are allowed.", map[string]interface{}{
			"contentType": contentType,
		})
	}

	upload, err := s.images.PresignUpload(ctx, contentType)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to presign upload", err)
	}
	return upload, nil
}

func (s *AdminService) refresh(ctx context.Context, state *session.State) {
	if err := s.catalog.Load(ctx, state); err != nil {
		s.logger.Warn("failed to refresh catalog", zap.Error(err))
	}
}
