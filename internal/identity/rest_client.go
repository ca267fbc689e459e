package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"storefront/internal/domain"
	apperrors "storefront/pkg/errors"
	"storefront/pkg/logger"
)

// tokens within this window of expiry are refreshed before use
const tokenExpirySkew = 30 * time.Second

// RESTClient implements Provider against an Identity Toolkit compatible API
type RESTClient struct {
	identityURL string
	tokenURL    string
	apiKey      string
	httpClient  *http.Client
	logger      *logger.Logger
}

// NewRESTClient creates a new identity backend client
func NewRESTClient(identityURL, tokenURL, apiKey string, log *logger.Logger) *RESTClient {
	return &RESTClient{
		identityURL: strings.TrimRight(identityURL, "/"),
		tokenURL:    strings.TrimRight(tokenURL, "/"),
		apiKey:      apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log.Named("identity.rest"),
	}
}

type backendError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type tokenResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type idpResponse struct {
	tokenResponse
	ProviderID    string `json:"providerId"`
	EmailVerified bool   `json:"emailVerified"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type lookupResponse struct {
	Users []struct {
		LocalID          string `json:"localId"`
		Email            string `json:"email"`
		EmailVerified    bool   `json:"emailVerified"`
		DisplayName      string `json:"displayName"`
		PhotoURL         string `json:"photoUrl"`
		ProviderUserInfo []struct {
			ProviderID string `json:"providerId"`
		} `json:"providerUserInfo"`
	} `json:"users"`
}

func (c *RESTClient) CreateAccount(ctx context.Context, email, password string) (*domain.Account, error) {
	var resp tokenResponse
	err := c.postJSON(ctx, c.identityURL+"/v1/accounts:signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.accountFromTokens(resp), nil
}

func (c *RESTClient) SignIn(ctx context.Context, email, password string) (*domain.Account, error) {
	var resp tokenResponse
	err := c.postJSON(ctx, c.identityURL+"/v1/accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.accountFromTokens(resp), nil
}

func (c *RESTClient) Refresh(ctx context.Context, refreshToken string) (*domain.Account, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	var resp refreshResponse
	if err := c.do(ctx, c.tokenURL+"/v1/token", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &resp); err != nil {
		return nil, err
	}

	return c.accountFromTokens(tokenResponse{
		LocalID:      resp.UserID,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}), nil
}

func (c *RESTClient) Reload(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	current, err := c.fresh(ctx, acct)
	if err != nil {
		return nil, err
	}

	var resp lookupResponse
	if err := c.postJSON(ctx, c.identityURL+"/v1/accounts:lookup", map[string]interface{}{
		"idToken": current.IDToken,
	}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, apperrors.NewProviderError(apperrors.CodeUserNotFound, fmt.Errorf("lookup returned no users"))
	}

	u := resp.Users[0]
	reloaded := *current
	reloaded.ID = u.LocalID
	reloaded.Email = u.Email
	reloaded.EmailVerified = u.EmailVerified
	reloaded.DisplayName = u.DisplayName
	reloaded.PhotoURL = u.PhotoURL
	reloaded.ProviderID = domain.ProviderPassword
	if len(u.ProviderUserInfo) > 0 {
		reloaded.ProviderID = u.ProviderUserInfo[0].ProviderID
		for _, p := range u.ProviderUserInfo {
			if p.ProviderID == domain.ProviderPassword {
				reloaded.ProviderID = domain.ProviderPassword
				break
			}
		}
	}
	return &reloaded, nil
}

func (c *RESTClient) UpdateProfile(ctx context.Context, acct *domain.Account, displayName, photoURL string) error {
	current, err := c.fresh(ctx, acct)
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"idToken":           current.IDToken,
		"displayName":       displayName,
		"returnSecureToken": false,
	}
	if photoURL != "" {
		body["photoUrl"] = photoURL
	}
	return c.postJSON(ctx, c.identityURL+"/v1/accounts:update", body, nil)
}

func (c *RESTClient) SendVerificationEmail(ctx context.Context, acct *domain.Account, redirectURL string) error {
	current, err := c.fresh(ctx, acct)
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"requestType": "VERIFY_EMAIL",
		"idToken":     current.IDToken,
	}
	if redirectURL != "" {
		body["continueUrl"] = redirectURL
	}
	return c.postJSON(ctx, c.identityURL+"/v1/accounts:sendOobCode", body, nil)
}

func (c *RESTClient) SendPasswordReset(ctx context.Context, email string) error {
	return c.postJSON(ctx, c.identityURL+"/v1/accounts:sendOobCode", map[string]interface{}{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

func (c *RESTClient) SignInWithIdP(ctx context.Context, providerID, accessToken, requestURI string) (*domain.Account, error) {
	postBody := url.Values{}
	postBody.Set("access_token", accessToken)
	postBody.Set("providerId", providerID)

	var resp idpResponse
	err := c.postJSON(ctx, c.identityURL+"/v1/accounts:signInWithIdp", map[string]interface{}{
		"postBody":            postBody.Encode(),
		"requestUri":          requestURI,
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	acct := c.accountFromTokens(resp.tokenResponse)
	acct.ProviderID = providerID
	acct.EmailVerified = acct.EmailVerified || resp.EmailVerified
	return acct, nil
}

// fresh returns acct with an ID token that is not about to expire
func (c *RESTClient) fresh(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	if acct == nil {
		return nil, ErrNoSession
	}
	if acct.IDToken != "" && (acct.ExpiresAt.IsZero() || time.Until(acct.ExpiresAt) > tokenExpirySkew) {
		return acct, nil
	}
	if acct.RefreshToken == "" {
		return nil, ErrNoSession
	}

	refreshed, err := c.Refresh(ctx, acct.RefreshToken)
	if err != nil {
		return nil, err
	}
	merged := *acct
	merged.IDToken = refreshed.IDToken
	merged.RefreshToken = refreshed.RefreshToken
	merged.ExpiresAt = refreshed.ExpiresAt
	return &merged, nil
}

// accountFromTokens builds an account from a token response, filling the
// verification flag and sign-in provider from the ID token claims
func (c *RESTClient) accountFromTokens(resp tokenResponse) *domain.Account {
	acct := &domain.Account{
		ID:           resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		PhotoURL:     resp.PhotoURL,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ProviderID:   domain.ProviderPassword,
	}

	if secs, err := strconv.Atoi(resp.ExpiresIn); err == nil {
		acct.ExpiresAt = time.Now().Add(time.Duration(secs) * time.Second)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.IDToken, claims); err != nil {
		c.logger.Debug("id token claims unavailable", zap.Error(err))
		return acct
	}

	if sub, _ := claims["sub"].(string); sub != "" && acct.ID == "" {
		acct.ID = sub
	}
	if email, _ := claims["email"].(string); email != "" && acct.Email == "" {
		acct.Email = email
	}
	if verified, ok := claims["email_verified"].(bool); ok {
		acct.EmailVerified = verified
	}
	if fb, ok := claims["firebase"].(map[string]interface{}); ok {
		if p, _ := fb["sign_in_provider"].(string); p != "" {
			acct.ProviderID = p
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && acct.ExpiresAt.IsZero() {
		acct.ExpiresAt = exp.Time
	}
	return acct
}

func (c *RESTClient) postJSON(ctx context.Context, endpoint string, body interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, endpoint, "application/json", bytes.NewReader(jsonBody), out)
}

func (c *RESTClient) do(ctx context.Context, endpoint, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(c.apiKey), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewProviderError(apperrors.CodeUnknown, fmt.Errorf("failed to call identity backend: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("identity_call",
		zap.String("endpoint", operationName(endpoint)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		var be backendError
		_ = json.Unmarshal(respBody, &be)
		code := apperrors.CodeFromBackend(be.Error.Message)
		return apperrors.NewProviderError(code,
			fmt.Errorf("identity backend returned status %d: %s", resp.StatusCode, be.Error.Message))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// operationName trims the endpoint to its last path element for logs
func operationName(endpoint string) string {
	if i := strings.LastIndex(endpoint, "/"); i >= 0 {
		return endpoint[i+1:]
	}
	return endpoint
}
