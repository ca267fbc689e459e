package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/localstore"
	apperrors "storefront/pkg/errors"
)

func TestCart_GuestCartPersistsLocally(t *testing.T) {
	f := newFixture(t)
	f.seed(t, sampleProducts()...)
	ctx := context.Background()

	_, err := f.cart.Add(ctx, f.state, "p1")
	require.NoError(t, err)
	view, err := f.cart.Add(ctx, f.state, "p1")
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Count)
	assert.Equal(t, 90.0, view.Total)

	raw, err := f.local.Get(ctx, localstore.KeyGuestCart)
	require.NoError(t, err)
	var lines []domain.CartLine
	require.NoError(t, json.Unmarshal(raw, &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "Brake Pads", lines[0].Name)

	notes := f.state.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, "Product added to cart!", notes[0].Message)

	// a fresh session reads the same guest cart
	f.state.SetCart(domain.Cart{})
	require.NoError(t, f.cart.Load(ctx, f.state))
	assert.Equal(t, 2, f.cart.View(f.state).Count)
}

func TestCart_SignedInCartIsStoredPerAccount(t *testing.T) {
	f := newFixture(t)
	f.seed(t, sampleProducts()...)
	ctx := context.Background()

	f.signIn("u1", "rider@shop.com", domain.RoleCustomer)
	require.NoError(t, f.cart.Load(ctx, f.state))
	assert.Zero(t, f.cart.View(f.state).Count)

	_, err := f.cart.Add(ctx, f.state, "p2")
	require.NoError(t, err)

	saved, err := f.repos.Cart.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 1, saved.Count())

	raw, err := f.local.Get(ctx, localstore.KeyGuestCart)
	require.NoError(t, err)
	assert.Nil(t, raw, "guest cart untouched")

	f.state.SetUser(nil)
	require.NoError(t, f.cart.Load(ctx, f.state))
	assert.Zero(t, f.cart.View(f.state).Count)
}

func TestCart_PriceIsSnapshotAtAddTime(t *testing.T) {
	f := newFixture(t)
	f.seed(t, sampleProducts()...)
	ctx := context.Background()

	_, err := f.cart.Add(ctx, f.state, "p2")
	require.NoError(t, err)

	repriced := sampleProducts()[1]
	repriced.Price = 99
	f.seed(t, repriced)

	view, err := f.cart.Add(ctx, f.state, "p2")
	require.NoError(t, err)
	assert.Equal(t, 25.0, view.Items[0].Price)
	assert.Equal(t, 50.0, view.Total)
}

func TestCart_UpdateQuantityAndRemove(t *testing.T) {
	f := newFixture(t)
	f.seed(t, sampleProducts()...)
	ctx := context.Background()

	_, err := f.cart.Add(ctx, f.state, "p1")
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, f.state, "p2")
	require.NoError(t, err)

	view, err := f.cart.UpdateQuantity(ctx, f.state, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Count)

	view, err = f.cart.UpdateQuantity(ctx, f.state, "p1", -3)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "p2", view.Items[0].ProductID)

	_, err = f.cart.UpdateQuantity(ctx, f.state, "p1", 1)
	assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.AsAppError(err).Type)
	_, err = f.cart.UpdateQuantity(ctx, f.state, "p2", 0)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.AsAppError(err).Type)

	view, err = f.cart.Remove(ctx, f.state, "p2")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.Total)

	_, err = f.cart.Remove(ctx, f.state, "p2")
	assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.AsAppError(err).Type)
}

func TestCart_AddUnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.cart.Add(context.Background(), f.state, "nope")
	assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.AsAppError(err).Type)
	assert.Empty(t, f.state.Notifications())
}

func TestCart_Checkout(t *testing.T) {
	f := newFixture(t)
	f.seed(t, sampleProducts()...)
	ctx := context.Background()

	err := f.cart.Checkout(ctx, f.state)
	require.Error(t, err)
	notes := f.state.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Your cart is empty", notes[0].Message)
	assert.Equal(t, domain.SeverityInfo, notes[0].Severity)

	_, err = f.cart.Add(ctx, f.state, "p1")
	require.NoError(t, err)
	require.NoError(t, f.cart.Checkout(ctx, f.state))
	notes = f.state.Notifications()
	assert.Equal(t, "Checkout feature coming soon!", notes[len(notes)-1].Message)
	assert.Equal(t, 1, f.cart.View(f.state).Count, "checkout keeps the cart")
}

func TestCart_CorruptGuestCartIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.local.Set(ctx, localstore.KeyGuestCart, []byte("not json")))

	require.NoError(t, f.cart.Load(ctx, f.state))
	assert.Zero(t, f.cart.View(f.state).Count)
}

func TestCart_StoreFailureKeepsSessionCart(t *testing.T) {
	f := newFixture(t)
	f.seed(t, sampleProducts()...)
	f.signIn("u1", "rider@shop.com", domain.RoleCustomer)

	f.mr.SetError("server down")
	view, err := f.cart.Add(context.Background(), f.state, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Count)
}
