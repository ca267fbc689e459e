package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"storefront/internal/container"
	"storefront/internal/domain"
	"storefront/internal/session"
	apperrors "storefront/pkg/errors"
)

const oauthStateCookie = "oauth_state"

// SessionHandler exposes the session view and the auth flows
type SessionHandler struct {
	container *container.Container
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(container *container.Container) *SessionHandler {
	return &SessionHandler{container: container}
}

func (h *SessionHandler) resolver() *session.Resolver {
	return h.container.Resolver
}

// respondView writes the session snapshot, or err when the flow failed
func (h *SessionHandler) respondView(w http.ResponseWriter, r *http.Request, err error) {
	log := h.container.GetLogger()
	if err != nil {
		writeErrorResponse(w, r, log, err)
		return
	}
	respondJSON(w, log, http.StatusOK, h.resolver().View())
}

// GetSession handles GET /api/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, nil)
}

// SetTab handles POST /api/session/tab
func (h *SessionHandler) SetTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab domain.Tab `json:"tab"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.respondView(w, r, err)
		return
	}
	h.respondView(w, r, h.resolver().ShowTab(r.Context(), req.Tab))
}

// Signup handles POST /api/auth/signup
func (h *SessionHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var form session.SignupForm
	if err := decodeJSON(r, &form); err != nil {
		h.respondView(w, r, err)
		return
	}
	h.respondView(w, r, h.resolver().Signup(r.Context(), form))
}

// Login handles POST /api/auth/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var form session.LoginForm
	if err := decodeJSON(r, &form); err != nil {
		h.respondView(w, r, err)
		return
	}
	h.respondView(w, r, h.resolver().Login(r.Context(), form))
}

// ResetPassword handles POST /api/auth/password-reset
func (h *SessionHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.respondView(w, r, err)
		return
	}
	h.respondView(w, r, h.resolver().ResetPassword(r.Context(), req.Email))
}

// ResendVerification handles POST /api/auth/verification/resend
func (h *SessionHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, h.resolver().ResendVerification(r.Context()))
}

// ChangeEmail handles POST /api/auth/verification/change-email
func (h *SessionHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, h.resolver().ChangeEmail(r.Context()))
}

// SignOut handles POST /api/auth/signout
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, h.resolver().SignOut(r.Context()))
}

// GoogleStart handles GET /api/auth/google by redirecting to the consent page
func (h *SessionHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	url, err := h.resolver().GoogleAuthURL(state)
	if err != nil {
		h.respondView(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusFound)
}

// GoogleCallback handles GET /api/auth/google/callback
func (h *SessionHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/api/auth/google", MaxAge: -1})

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		h.respondView(w, r, apperrors.NewValidationError("Invalid sign-in state.", nil))
		return
	}

	// a dismissed consent page arrives without a code
	code := r.URL.Query().Get("code")
	if r.URL.Query().Get("error") != "" {
		code = ""
	}

	err = h.resolver().CompleteGoogleSignIn(r.Context(), code)
	if apperrors.AsAppError(err).Code == apperrors.CodePopupClosed {
		err = nil
	}
	h.respondView(w, r, err)
}
