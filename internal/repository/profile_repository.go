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
	usersRoot     = "users"
	usernamesRoot = "usernames"
)

// profileRepository handles profiles in the key-value store
type profileRepository struct {
	kv store.Store
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(kv store.Store) ProfileRepository {
	return &profileRepository{kv: kv}
}

func (r *profileRepository) Get(ctx context.Context, uid string) (*domain.Profile, error) {
	raw, err := r.kv.Read(ctx, store.Join(usersRoot, uid))
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var profile domain.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, uid string, profile *domain.Profile) error {
	if err := r.kv.Write(ctx, store.Join(usersRoot, uid), profile); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *profileRepository) Update(ctx context.Context, uid string, fields map[string]interface{}) error {
	if err := r.kv.Update(ctx, store.Join(usersRoot, uid), fields); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func (r *profileRepository) MarkEmailVerified(ctx context.Context, uid string) error {
	return r.Update(ctx, uid, map[string]interface{}{"emailVerified": true})
}

func (r *profileRepository) List(ctx context.Context) ([]domain.Customer, error) {
	children, err := r.kv.Children(ctx, usersRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	customers := make([]domain.Customer, 0, len(children))
	for uid, raw := range children {
		var profile domain.Profile
		if err := json.Unmarshal(raw, &profile); err != nil {
			return nil, fmt.Errorf("failed to decode profile %s: %w", uid, err)
		}
		customers = append(customers, domain.Customer{UID: uid, Profile: profile})
	}

	sort.Slice(customers, func(i, j int) bool {
		if customers[i].CreatedAt.Equal(customers[j].CreatedAt) {
			return customers[i].UID < customers[j].UID
		}
		return customers[i].CreatedAt.After(customers[j].CreatedAt)
	})
	return customers, nil
}

// usernameRepository handles username reservations
type usernameRepository struct {
	kv store.Store
}

// NewUsernameRepository creates a new username repository
func NewUsernameRepository(kv store.Store) UsernameRepository {
	return &usernameRepository{kv: kv}
}

func (r *usernameRepository) IsTaken(ctx context.Context, username string) (bool, error) {
	taken, err := r.kv.Exists(ctx, store.Join(usernamesRoot, domain.NormalizeUsername(username)))
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return taken, nil
}

func (r *usernameRepository) Reserve(ctx context.Context, username, uid string) error {
	if err := r.kv.Write(ctx, store.Join(usernamesRoot, domain.NormalizeUsername(username)), uid); err != nil {
		return fmt.Errorf("failed to reserve username: %w", err)
	}
	return nil
}
