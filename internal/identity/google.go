package identity

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"storefront/internal/domain"
	apperrors "storefront/pkg/errors"
	"storefront/pkg/logger"
)

// GoogleConfig configures the Google sign-in flow
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides google.Endpoint when set
	Endpoint *oauth2.Endpoint
	// UserinfoOptions are appended when building the userinfo client
	UserinfoOptions []option.ClientOption
}

// GoogleProfile is what Google reports about the signed-in user
type GoogleProfile struct {
	Name    string
	Email   string
	Picture string
}

// GoogleResult is the outcome of a completed Google sign-in
type GoogleResult struct {
	Account *domain.Account
	Profile GoogleProfile
}

// GoogleSignIn runs the authorization-code flow and exchanges the Google
// access token for a backend session
type GoogleSignIn struct {
	oauthConfig *oauth2.Config
	userinfo    []option.ClientOption
	provider    Provider
	logger      *logger.Logger
}

// NewGoogleSignIn creates the Google sign-in flow
func NewGoogleSignIn(cfg GoogleConfig, provider Provider, log *logger.Logger) *GoogleSignIn {
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	return &GoogleSignIn{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: endpoint,
		},
		userinfo: cfg.UserinfoOptions,
		provider: provider,
		logger:   log.Named("identity.google"),
	}
}

// AuthCodeURL is where the browser is sent to pick a Google account
func (g *GoogleSignIn) AuthCodeURL(state string) string {
	return g.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Complete exchanges the authorization code, reads the Google profile and
// signs in to the backend with the Google access token
func (g *GoogleSignIn) Complete(ctx context.Context, code string) (*GoogleResult, error) {
	if code == "" {
		return nil, apperrors.NewProviderError(apperrors.CodePopupClosed, fmt.Errorf("missing authorization code"))
	}

	token, err := g.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.NewProviderError(apperrors.CodeUnknown, fmt.Errorf("failed to exchange code: %w", err))
	}

	opts := append([]option.ClientOption{option.WithTokenSource(g.oauthConfig.TokenSource(ctx, token))}, g.userinfo...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, apperrors.NewProviderError(apperrors.CodeUnknown, fmt.Errorf("failed to fetch Google profile: %w", err))
	}

	acct, err := g.provider.SignInWithIdP(ctx, domain.ProviderGoogle, token.AccessToken, g.oauthConfig.RedirectURL)
	if err != nil {
		return nil, err
	}
	if acct.DisplayName == "" {
		acct.DisplayName = info.Name
	}
	if acct.PhotoURL == "" {
		acct.PhotoURL = info.Picture
	}
	if acct.Email == "" {
		acct.Email = info.Email
	}

	g.logger.Info("google sign-in completed", zap.String("uid", acct.ID))
	return &GoogleResult{
		Account: acct,
		Profile: GoogleProfile{Name: info.Name, Email: info.Email, Picture: info.Picture},
	}, nil
}
