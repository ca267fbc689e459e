package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"storefront/internal/domain"
	apperrors "storefront/pkg/errors"
	"storefront/pkg/logger"
)

func newGoogleServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "rider",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer rider", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "g-1",
			"email":   "rider@gmail.com",
			"name":    "Rider One",
			"picture": "https://example.com/p.png",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogle(t *testing.T, fb *fakeBackend, srv *httptest.Server) *GoogleSignIn {
	return NewGoogleSignIn(GoogleConfig{
		ClientID:        "client",
		ClientSecret:    "secret",
		RedirectURL:     "http://localhost:8080/api/auth/google/callback",
		Endpoint:        &oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
		UserinfoOptions: []option.ClientOption{option.WithEndpoint(srv.URL + "/")},
	}, fb.client(), logger.NewNop())
}

func TestGoogleSignIn_AuthCodeURL(t *testing.T) {
	fb := newFakeBackend(t)
	srv := newGoogleServer(t)
	g := newTestGoogle(t, fb, srv)

	u, err := url.Parse(g.AuthCodeURL("state-123"))
	require.NoError(t, err)
	assert.Equal(t, "state-123", u.Query().Get("state"))
	assert.Equal(t, "client", u.Query().Get("client_id"))
	assert.Equal(t, "select_account", u.Query().Get("prompt"))
}

func TestGoogleSignIn_Complete(t *testing.T) {
	fb := newFakeBackend(t)
	srv := newGoogleServer(t)
	g := newTestGoogle(t, fb, srv)

	result, err := g.Complete(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "rider@gmail.com", result.Account.Email)
	assert.Equal(t, domain.ProviderGoogle, result.Account.ProviderID)
	assert.Equal(t, "Rider One", result.Account.DisplayName)
	assert.Equal(t, "https://example.com/p.png", result.Profile.Picture)
}

func TestGoogleSignIn_Failures(t *testing.T) {
	fb := newFakeBackend(t)
	srv := newGoogleServer(t)
	g := newTestGoogle(t, fb, srv)

	_, err := g.Complete(context.Background(), "")
	assert.Equal(t, apperrors.CodePopupClosed, providerCode(t, err))

	_, err = g.Complete(context.Background(), "bad-code")
	assert.Equal(t, apperrors.CodeUnknown, providerCode(t, err))
}
