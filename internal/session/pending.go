package session

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/localstore"
)

// LocalStore is the durable local key-value storage
type LocalStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// PendingCache keeps the PendingVerification record in local storage so a
// restarted process can resume the wait.
type PendingCache struct {
	local LocalStore
}

func NewPendingCache(local LocalStore) *PendingCache {
	return &PendingCache{local: local}
}

func (c *PendingCache) Save(ctx context.Context, p *domain.PendingVerification) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pending verification: %w", err)
	}
	return c.local.Set(ctx, localstore.KeyPendingVerification, raw)
}

// Load returns the cached record, nil when none is cached. An unreadable
// record is dropped and reported as absent.
func (c *PendingCache) Load(ctx context.Context) (*domain.PendingVerification, error) {
	raw, err := c.local.Get(ctx, localstore.KeyPendingVerification)
	if err != nil || raw == nil {
		return nil, err
	}

	var p domain.PendingVerification
	if err := json.Unmarshal(raw, &p); err != nil || p.Email == "" || p.ContinuationToken == "" {
		_ = c.local.Delete(ctx, localstore.KeyPendingVerification)
		return nil, nil
	}
	return &p, nil
}

func (c *PendingCache) Clear(ctx context.Context) error {
	return c.local.Delete(ctx, localstore.KeyPendingVerification)
}
