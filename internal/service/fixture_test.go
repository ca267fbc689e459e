package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/localstore"
	"storefront/internal/repository"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/pkg/logger"
	"storefront/pkg/redis"
)

type fixture struct {
	mr      *miniredis.Miniredis
	repos   *repository.Repositories
	local   *localstore.Store
	state   *session.State
	catalog *CatalogService
	cart    *CartService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	local, err := localstore.Open(context.Background(), filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	log := logger.NewNop()
	repos := repository.NewRepositories(store.NewRedisStore(client, log))
	catalog := NewCatalogService(repos.Product, log)
	return &fixture{
		mr:      mr,
		repos:   repos,
		local:   local,
		state:   session.NewState(time.Minute),
		catalog: catalog,
		cart:    NewCartService(repos.Cart, catalog, local, log),
	}
}

func (f *fixture) seed(t *testing.T, products ...domain.Product) {
	t.Helper()
	for i := range products {
		require.NoError(t, f.repos.Product.Create(context.Background(), &products[i]))
	}
	require.NoError(t, f.catalog.Load(context.Background(), f.state))
}

func (f *fixture) signIn(uid, email string, role domain.Role) {
	f.state.SetUser(&domain.CurrentUserView{UID: uid, DisplayName: "rider", Email: email, Role: role})
}

var base = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleProducts() []domain.Product {
	return []domain.Product{
		{ID: "p1", Name: "Brake Pads", Description: "Ceramic pads", Price: 45, Category: "brakes", CreatedAt: base},
		{ID: "p2", Name: "Engine Oil", Description: "Synthetic 10W-40", Price: 25, Category: "lubricants", CreatedAt: base.Add(time.Hour)},
		{ID: "p3", Name: "LED Headlight", Description: "Bright and efficient", Price: 1200, Category: "electronics", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "p4", Name: "Chain Kit", Description: "Heavy duty brake-safe chain", Price: 90, Category: "engine", CreatedAt: base.Add(3 * time.Hour)},
	}
}
