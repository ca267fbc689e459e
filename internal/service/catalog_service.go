package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/session"
	apperrors "storefront/pkg/errors"
	"storefront/pkg/logger"
)

// Catalog sort orders
const (
	SortNewest    = "newest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
)

// DefaultMaxPrice is the upper bound of the price slider
const DefaultMaxPrice = 1000

// Filter narrows and orders the catalog
type Filter struct {
	Category string
	MaxPrice float64
	Sort     string
	Search   string
}

// Normalize fills defaults and rejects unknown sort orders
func (f *Filter) Normalize() error {
	f.Category = strings.TrimSpace(f.Category)
	if strings.EqualFold(f.Category, "all") {
		f.Category = ""
	}
	if f.MaxPrice <= 0 {
		f.MaxPrice = DefaultMaxPrice
	}
	f.Search = strings.ToLower(strings.TrimSpace(f.Search))

	switch f.Sort {
	case "":
		f.Sort = SortNewest
	case SortNewest, SortPriceLow, SortPriceHigh:
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unknown sort %q", f.Sort), map[string]interface{}{
			"sort": []string{SortNewest, SortPriceLow, SortPriceHigh},
		})
	}
	return nil
}

func (f *Filter) matches(p domain.Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if p.Price > f.MaxPrice {
		return false
	}
	if f.Search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), f.Search) ||
		strings.Contains(strings.ToLower(p.Description), f.Search)
}

// ProductCard is a product as listed in the storefront
type ProductCard struct {
	domain.Product
	Icon string `json:"icon"`
}

// CatalogService loads and filters the product catalog
type CatalogService struct {
	products repository.ProductRepository
	logger   *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(products repository.ProductRepository, log *logger.Logger) *CatalogService {
	return &CatalogService{products: products, logger: log.Named("catalog")}
}

// Load reads every product into the session, newest first
func (s *CatalogService) Load(ctx context.Context, state *session.State) error {
	products, err := s.products.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	state.SetProducts(products)
	s.logger.Debug("catalog loaded", zap.Int("products", len(products)))
	return nil
}

// Browse applies f to the loaded catalog
func (s *CatalogService) Browse(state *session.State, f Filter) ([]ProductCard, error) {
	if err := f.Normalize(); err != nil {
		return nil, err
	}

	var matched []domain.Product
	for _, p := range state.Products() {
		if f.matches(p) {
			matched = append(matched, p)
		}
	}

	switch f.Sort {
	case SortPriceLow:
		slices.SortStableFunc(matched, func(a, b domain.Product) int { return cmp.Compare(a.Price, b.Price) })
	case SortPriceHigh:
		slices.SortStableFunc(matched, func(a, b domain.Product) int { return cmp.Compare(b.Price, a.Price) })
	default:
		slices.SortStableFunc(matched, func(a, b domain.Product) int { return b.CreatedAt.Compare(a.CreatedAt) })
	}

	cards := make([]ProductCard, 0, len(matched))
	for _, p := range matched {
		cards = append(cards, ProductCard{Product: p, Icon: domain.CategoryIcon(p.Category)})
	}
	return cards, nil
}

// Find returns a loaded product, falling back to the store
func (s *CatalogService) Find(ctx context.Context, state *session.State, id string) (*domain.Product, error) {
	for _, p := range state.Products() {
		if p.ID == id {
			return &p, nil
		}
	}
	return s.products.Get(ctx, id)
}
