package service

import (
	"storefront/internal/session"
)

// Services aggregates the collaborators the session initializes
type Services struct {
	Catalog *CatalogService
	Cart    *CartService
	Profile *ProfileService
	Admin   *AdminService
}

// Initializers are run by the resolver after each identity change, in order.
// The catalog and cart are loaded for guests too.
func (s *Services) Initializers() []session.Initializer {
	return []session.Initializer{
		{Name: "catalog", Guest: true, Load: s.Catalog.Load},
		{Name: "profile", Load: s.Profile.Load},
		{Name: "cart", Guest: true, Load: s.Cart.Load},
	}
}
