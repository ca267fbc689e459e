package domain

import (
	"strings"
	"time"
)

// Role is the application role stored on a profile
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Identity provider ids as reported by the backend
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
)

// Account is the identity-provider record for a signed-in user
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	DisplayName   string    `json:"display_name,omitempty"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	ProviderID    string    `json:"provider_id"`
	IDToken       string    `json:"-"`
	RefreshToken  string    `json:"-"`
	ExpiresAt     time.Time `json:"-"`
}

// IsPasswordIdentity reports whether the account signs in with email and password
func (a *Account) IsPasswordIdentity() bool {
	return a.ProviderID == "" || a.ProviderID == ProviderPassword
}

// FallbackName is the display name used when no profile username exists
func (a *Account) FallbackName() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	if local, _, _ := strings.Cut(a.Email, "@"); local != "" {
		return local
	}
	return "User"
}

// Profile is the application record stored at users/{id}
type Profile struct {
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PhotoURL      string    `json:"photoURL"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"createdAt"`
	EmailVerified bool      `json:"emailVerified"`
}

// DefaultProfile synthesizes a customer profile from provider fields
func DefaultProfile(acct *Account) Profile {
	return Profile{
		Username:      acct.FallbackName(),
		Email:         acct.Email,
		PhotoURL:      acct.PhotoURL,
		Role:          RoleCustomer,
		EmailVerified: acct.EmailVerified,
	}
}

// CurrentUserView is the in-memory view of the signed-in user
type CurrentUserView struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

// IsAdmin reports whether the view carries the admin role
func (v *CurrentUserView) IsAdmin() bool {
	return v != nil && v.Role == RoleAdmin
}

// Initial returns the avatar initial for the header
func (v *CurrentUserView) Initial() string {
	if v == nil || v.DisplayName == "" {
		return "U"
	}
	return strings.ToUpper(string([]rune(v.DisplayName)[0]))
}

// PendingVerification is the short-lived record kept while a signup or an
// unverified login waits for the email link to be clicked. The continuation
// token is the provider refresh token; no password is kept.
type PendingVerification struct {
	Email             string    `json:"email"`
	ContinuationToken string    `json:"continuationToken"`
	CreatedAt         time.Time `json:"createdAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// Expired reports whether the record is past its expiry
func (p *PendingVerification) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// NormalizeUsername returns the key used for username reservations
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Customer is a profile listed with its account id
type Customer struct {
	UID string `json:"uid"`
	Profile
}
