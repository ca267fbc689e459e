package repository

import (
	"context"

	"storefront/internal/domain"
	"storefront/internal/store"
)

// ProfileRepository defines the operations on users/{id}
type ProfileRepository interface {
	// Get retrieves a profile, nil when the account has none
	Get(ctx context.Context, uid string) (*domain.Profile, error)

	// Create writes a full profile
	Create(ctx context.Context, uid string, profile *domain.Profile) error

	// Update merges fields into the profile
	Update(ctx context.Context, uid string, fields map[string]interface{}) error

	// MarkEmailVerified sets emailVerified=true
	MarkEmailVerified(ctx context.Context, uid string) error

	// List returns every profile, newest first
	List(ctx context.Context) ([]domain.Customer, error)
}

// UsernameRepository defines the operations on usernames/{lowercaseName}
type UsernameRepository interface {
	// IsTaken reports whether the username is reserved
	IsTaken(ctx context.Context, username string) (bool, error)

	// Reserve maps the username to an account id
	Reserve(ctx context.Context, username, uid string) error
}

// ProductRepository defines the operations on products/{id}
type ProductRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
}

// CartRepository defines the operations on carts/{id}
type CartRepository interface {
	// Get returns the saved cart, nil when none was saved
	Get(ctx context.Context, uid string) (*domain.Cart, error)
	Save(ctx context.Context, uid string, cart *domain.Cart) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Profile  ProfileRepository
	Username UsernameRepository
	Product  ProductRepository
	Cart     CartRepository
}

// NewRepositories builds every repository over one key-value store
func NewRepositories(kv store.Store) *Repositories {
	return &Repositories{
		Profile:  NewProfileRepository(kv),
		Username: NewUsernameRepository(kv),
		Product:  NewProductRepository(kv),
		Cart:     NewCartRepository(kv),
	}
}
