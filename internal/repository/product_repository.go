package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"storefront/internal/domain"
	"storefront/internal/store"
)

const (
	productsRoot = "products"
	cartsRoot    = "carts"
)

// productRepository handles the product collection
type productRepository struct {
	kv store.Store
}

// NewProductRepository creates a new product repository
func NewProductRepository(kv store.Store) ProductRepository {
	return &productRepository{kv: kv}
}

// List returns all products, newest first
func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	children, err := r.kv.Children(ctx, productsRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]domain.Product, 0, len(children))
	for id, raw := range children {
		var p domain.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode product %s: %w", id, err)
		}
		p.ID = id
		products = append(products, p)
	}

	sort.Slice(products, func(i, j int) bool {
		if products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].ID < products[j].ID
		}
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (r *productRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	raw, err := r.kv.Read(ctx, store.Join(productsRoot, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var p domain.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	p.ID = id
	return &p, nil
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	if err := r.kv.Write(ctx, store.Join(productsRoot, product.ID), product); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	if err := r.kv.Delete(ctx, store.Join(productsRoot, id)); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// cartRepository stores signed-in carts as an array of lines
type cartRepository struct {
	kv store.Store
}

// NewCartRepository creates a new cart repository
func NewCartRepository(kv store.Store) CartRepository {
	return &cartRepository{kv: kv}
}

func (r *cartRepository) Get(ctx context.Context, uid string) (*domain.Cart, error) {
	raw, err := r.kv.Read(ctx, store.Join(cartsRoot, uid))
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return &domain.Cart{Lines: lines}, nil
}

func (r *cartRepository) Save(ctx context.Context, uid string, cart *domain.Cart) error {
	lines := cart.Lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	if err := r.kv.Write(ctx, store.Join(cartsRoot, uid), lines); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}
