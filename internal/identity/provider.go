// Package identity talks to the hosted identity backend and tracks the
// signed-in account of the session.
package identity

import (
	"context"
	"errors"

	"storefront/internal/domain"
)

// ErrNoSession is returned when an operation needs a signed-in account
var ErrNoSession = errors.New("no signed-in account")

// Provider is the identity part of the backend service
type Provider interface {
	CreateAccount(ctx context.Context, email, password string) (*domain.Account, error)
	SignIn(ctx context.Context, email, password string) (*domain.Account, error)
	// Refresh exchanges a refresh token for a fresh ID token
	Refresh(ctx context.Context, refreshToken string) (*domain.Account, error)
	// Reload fetches the authoritative account record, including the verification flag
	Reload(ctx context.Context, acct *domain.Account) (*domain.Account, error)
	UpdateProfile(ctx context.Context, acct *domain.Account, displayName, photoURL string) error
	SendVerificationEmail(ctx context.Context, acct *domain.Account, redirectURL string) error
	SendPasswordReset(ctx context.Context, email string) error
	SignInWithIdP(ctx context.Context, providerID, accessToken, requestURI string) (*domain.Account, error)
}
