package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront/pkg/logger"
)

const testAPIKey = "test-key"

type fakeUser struct {
	ID          string
	Email       string
	Password    string
	DisplayName string
	Verified    bool
	Refresh     string
	Provider    string
}

// fakeBackend mimics the identity REST API closely enough for the client
type fakeBackend struct {
	t      *testing.T
	server *httptest.Server

	mu      sync.Mutex
	users   map[string]*fakeUser
	seq     int
	calls   map[string]int
	oob     map[string]int
	failAll string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		t:     t,
		users: make(map[string]*fakeUser),
		calls: make(map[string]int),
		oob:   make(map[string]int),
	}
	fb.server = httptest.NewServer(http.HandlerFunc(fb.handle))
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) client() *RESTClient {
	return NewRESTClient(fb.server.URL, fb.server.URL, testAPIKey, logger.NewNop())
}

func (fb *fakeBackend) addUser(email, password string, verified bool) *fakeUser {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.addUserLocked(email, password, verified)
}

func (fb *fakeBackend) addUserLocked(email, password string, verified bool) *fakeUser {
	fb.seq++
	u := &fakeUser{
		ID:       fmt.Sprintf("uid-%d", fb.seq),
		Email:    email,
		Password: password,
		Verified: verified,
		Refresh:  fmt.Sprintf("refresh-%d", fb.seq),
		Provider: "password",
	}
	fb.users[email] = u
	return u
}

func (fb *fakeBackend) setVerified(email string, verified bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.users[email].Verified = verified
}

func (fb *fakeBackend) callCount(op string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[op]
}

func (fb *fakeBackend) oobCount(requestType string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.oob[requestType]
}

func makeIDToken(u *fakeUser, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":            u.ID,
		"email":          u.Email,
		"email_verified": u.Verified,
		"exp":            time.Now().Add(ttl).Unix(),
		"firebase":       map[string]interface{}{"sign_in_provider": u.Provider},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("fake-backend"))
	if err != nil {
		panic(err)
	}
	return signed
}

func (fb *fakeBackend) tokenBody(u *fakeUser) map[string]interface{} {
	return map[string]interface{}{
		"localId":      u.ID,
		"email":        u.Email,
		"displayName":  u.DisplayName,
		"idToken":      makeIDToken(u, time.Hour),
		"refreshToken": u.Refresh,
		"expiresIn":    "3600",
	}
}

func writeBackendError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"code": 400, "message": message},
	})
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (fb *fakeBackend) userByToken(idToken string) *fakeUser {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil
	}
	sub, _ := claims["sub"].(string)
	for _, u := range fb.users {
		if u.ID == sub {
			return u
		}
	}
	return nil
}

func (fb *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") != testAPIKey {
		writeBackendError(w, "API_KEY_INVALID")
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	op := strings.TrimPrefix(r.URL.Path, "/v1/")
	fb.calls[op]++

	if fb.failAll != "" {
		writeBackendError(w, fb.failAll)
		return
	}

	if op == "token" {
		_ = r.ParseForm()
		for _, u := range fb.users {
			if u.Refresh == r.PostForm.Get("refresh_token") {
				writeJSON(w, map[string]interface{}{
					"id_token":      makeIDToken(u, time.Hour),
					"refresh_token": u.Refresh,
					"expires_in":    "3600",
					"user_id":       u.ID,
				})
				return
			}
		}
		writeBackendError(w, "INVALID_REFRESH_TOKEN")
		return
	}

	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	str := func(k string) string { s, _ := body[k].(string); return s }

	switch op {
	case "accounts:signUp":
		if _, exists := fb.users[str("email")]; exists {
			writeBackendError(w, "EMAIL_EXISTS")
			return
		}
		if len(str("password")) < 6 {
			writeBackendError(w, "WEAK_PASSWORD : Password should be at least 6 characters")
			return
		}
		u := fb.addUserLocked(str("email"), str("password"), false)
		writeJSON(w, fb.tokenBody(u))

	case "accounts:signInWithPassword":
		u, ok := fb.users[str("email")]
		if !ok {
			writeBackendError(w, "EMAIL_NOT_FOUND")
			return
		}
		if u.Password != str("password") {
			writeBackendError(w, "INVALID_PASSWORD")
			return
		}
		writeJSON(w, fb.tokenBody(u))

	case "accounts:lookup":
		u := fb.userByToken(str("idToken"))
		if u == nil {
			writeBackendError(w, "INVALID_ID_TOKEN")
			return
		}
		writeJSON(w, map[string]interface{}{
			"users": []map[string]interface{}{{
				"localId":          u.ID,
				"email":            u.Email,
				"emailVerified":    u.Verified,
				"displayName":      u.DisplayName,
				"providerUserInfo": []map[string]string{{"providerId": u.Provider}},
			}},
		})

	case "accounts:update":
		u := fb.userByToken(str("idToken"))
		if u == nil {
			writeBackendError(w, "INVALID_ID_TOKEN")
			return
		}
		u.DisplayName = str("displayName")
		writeJSON(w, map[string]interface{}{"localId": u.ID})

	case "accounts:sendOobCode":
		fb.oob[str("requestType")]++
		if str("requestType") == "PASSWORD_RESET" {
			if _, ok := fb.users[str("email")]; !ok {
				writeBackendError(w, "EMAIL_NOT_FOUND")
				return
			}
		}
		writeJSON(w, map[string]interface{}{"kind": "identitytoolkit#GetOobConfirmationCodeResponse"})

	case "accounts:signInWithIdp":
		form, _ := url.ParseQuery(str("postBody"))
		email := form.Get("access_token") + "@gmail.com"
		u, ok := fb.users[email]
		if !ok {
			u = fb.addUserLocked(email, "", true)
			u.Provider = form.Get("providerId")
		}
		resp := fb.tokenBody(u)
		resp["providerId"] = u.Provider
		resp["emailVerified"] = true
		writeJSON(w, resp)

	default:
		http.NotFound(w, r)
	}
}

// memorySessions is an in-memory SessionStore
type memorySessions struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemorySessions() *memorySessions {
	return &memorySessions{data: make(map[string][]byte)}
}

func (m *memorySessions) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memorySessions) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memorySessions) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
