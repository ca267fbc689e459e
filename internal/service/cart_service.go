package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/localstore"
	"storefront/internal/repository"
	"storefront/internal/session"
	apperrors "storefront/pkg/errors"
	"storefront/pkg/logger"
)

// CartService keeps the session cart and persists it. Signed-in carts live in
// the key-value store, guest carts in local storage.
type CartService struct {
	carts   repository.CartRepository
	catalog *CatalogService
	local   session.LocalStore
	logger  *logger.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts repository.CartRepository, catalog *CatalogService, local session.LocalStore, log *logger.Logger) *CartService {
	return &CartService{carts: carts, catalog: catalog, local: local, logger: log.Named("cart")}
}

// Load replaces the session cart with the saved one
func (s *CartService) Load(ctx context.Context, state *session.State) error {
	if user := state.User(); user != nil {
		saved, err := s.carts.Get(ctx, user.UID)
		if err != nil {
			return err
		}
		if saved == nil {
			saved = &domain.Cart{}
		}
		state.SetCart(*saved)
		return nil
	}

	cart, err := s.loadGuest(ctx)
	if err != nil {
		return err
	}
	state.SetCart(cart)
	return nil
}

func (s *CartService) loadGuest(ctx context.Context) (domain.Cart, error) {
	raw, err := s.local.Get(ctx, localstore.KeyGuestCart)
	if err != nil {
		return domain.Cart{}, err
	}
	if raw == nil {
		return domain.Cart{}, nil
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		s.logger.Warn("discarding unreadable guest cart", zap.Error(err))
		return domain.Cart{}, nil
	}
	return domain.Cart{Lines: lines}, nil
}

// View summarizes the session cart
func (s *CartService) View(state *session.State) session.CartView {
	return session.NewCartView(state.Cart())
}

// Add puts one unit of the product in the cart
func (s *CartService) Add(ctx context.Context, state *session.State, productID string) (session.CartView, error) {
	product, err := s.catalog.Find(ctx, state, productID)
	if err != nil {
		return session.CartView{}, apperrors.NewInternalError("failed to look up product", err)
	}
	if product == nil {
		return session.CartView{}, apperrors.NewNotFoundError("Product not found")
	}

	cart := state.UpdateCart(func(c *domain.Cart) { c.Add(*product) })
	s.save(ctx, state, cart)
	state.Notify("Product added to cart!", domain.SeveritySuccess)
	return session.NewCartView(cart), nil
}

// UpdateQuantity changes a line by delta; the line goes away at zero
func (s *CartService) UpdateQuantity(ctx context.Context, state *session.State, productID string, delta int) (session.CartView, error) {
	if delta == 0 {
		return session.CartView{}, apperrors.NewValidationError("Quantity change must not be zero.", nil)
	}

	found := false
	cart := state.UpdateCart(func(c *domain.Cart) { found = c.UpdateQuantity(productID, delta) })
	if !found {
		return session.CartView{}, apperrors.NewNotFoundError("Product is not in your cart")
	}
	s.save(ctx, state, cart)
	return session.NewCartView(cart), nil
}

// Remove drops the product's line
func (s *CartService) Remove(ctx context.Context, state *session.State, productID string) (session.CartView, error) {
	found := false
	cart := state.UpdateCart(func(c *domain.Cart) { found = c.Remove(productID) })
	if !found {
		return session.CartView{}, apperrors.NewNotFoundError("Product is not in your cart")
	}
	s.save(ctx, state, cart)
	return session.NewCartView(cart), nil
}

// Checkout is a placeholder until payments exist
func (s *CartService) Checkout(_ context.Context, state *session.State) error {
	cart := state.Cart()
	if len(cart.Lines) == 0 {
		state.Notify("Your cart is empty", domain.SeverityInfo)
		return apperrors.NewValidationError("Your cart is empty", nil)
	}
	state.Notify("Checkout feature coming soon!", domain.SeverityInfo)
	return nil
}

// save persists the cart. A failed write keeps the in-memory cart.
func (s *CartService) save(ctx context.Context, state *session.State, cart domain.Cart) {
	var err error
	if user := state.User(); user != nil {
		err = s.carts.Save(ctx, user.UID, &cart)
	} else {
		err = s.saveGuest(ctx, cart)
	}
	if err != nil {
		s.logger.Warn("failed to save cart", zap.Error(err))
	}
}

func (s *CartService) saveGuest(ctx context.Context, cart domain.Cart) error {
	lines := cart.Lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("failed to encode guest cart: %w", err)
	}
	return s.local.Set(ctx, localstore.KeyGuestCart, raw)
}
