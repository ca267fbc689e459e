package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/identity"
	"storefront/internal/metrics"
	"storefront/internal/repository"
	"storefront/pkg/logger"
)

// settleTimeout bounds how long a flow waits for its identity event
const settleTimeout = 10 * time.Second

// Initializer loads part of the main application into the state
type Initializer struct {
	Name  string
	// Guest initializers also run when nobody is signed in
	Guest bool
	Load  func(ctx context.Context, state *State) error
}

// Deps are the collaborators of a Resolver
type Deps struct {
	Auth         *identity.Auth
	Gate         *Gate
	Google       *identity.GoogleSignIn
	Profiles     repository.ProfileRepository
	Usernames    repository.UsernameRepository
	State        *State
	Initializers []Initializer

	AdminEmail        string
	VerifyRedirectURL string
	// ResetReturnDelay is how long the reset tab stays up after a reset email is sent
	ResetReturnDelay time.Duration
}

// Resolver turns identity changes into what the session shows. Identity
// events, gate transitions and user flows are serialized by one lock.
type Resolver struct {
	auth         *identity.Auth
	gate         *Gate
	google       *identity.GoogleSignIn
	profiles     repository.ProfileRepository
	usernames    repository.UsernameRepository
	state        *State
	initializers []Initializer

	adminEmail        string
	verifyRedirectURL string
	resetReturnDelay  time.Duration

	logger *logger.Logger
	now    func() time.Time

	mu sync.Mutex
	// keepTabOnSignOut is set when the resolver itself signs out an
	// unverified account; the sign-out event that follows keeps the tab.
	keepTabOnSignOut bool
	resetTimer       *time.Timer
	unsubscribe      func()
}

// NewResolver creates the resolver
func NewResolver(deps Deps, log *logger.Logger) *Resolver {
	r := &Resolver{
		auth:              deps.Auth,
		gate:              deps.Gate,
		google:            deps.Google,
		profiles:          deps.Profiles,
		usernames:         deps.Usernames,
		state:             deps.State,
		initializers:      deps.Initializers,
		adminEmail:        strings.TrimSpace(deps.AdminEmail),
		verifyRedirectURL: deps.VerifyRedirectURL,
		resetReturnDelay:  deps.ResetReturnDelay,
		logger:            log.Named("session.resolver"),
		now:               time.Now,
	}
	if r.resetReturnDelay <= 0 {
		r.resetReturnDelay = 3 * time.Second
	}
	return r
}

// Start subscribes to identity changes and gate transitions
func (r *Resolver) Start(ctx context.Context) {
	r.gate.OnTransition(r.onGateTransition)
	r.unsubscribe = r.auth.OnAuthStateChanged(r.handleIdentity)
}

// Stop unsubscribes and cancels pending timers
func (r *Resolver) Stop() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.mu.Lock()
	if r.resetTimer != nil {
		r.resetTimer.Stop()
	}
	r.mu.Unlock()
}

// State exposes the session state owned by the resolver
func (r *Resolver) State() *State {
	return r.state
}

// View snapshots the session including the gate's countdown
func (r *Resolver) View() View {
	v := r.state.Snapshot()
	v.Verification = r.gate.State().String()
	remaining := r.gate.CooldownRemaining()
	v.ResendCooldown = int((remaining + time.Second - 1) / time.Second)
	return v
}

// Settle waits until identity events caused by earlier calls are handled
func (r *Resolver) Settle(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := r.auth.Sync(ctx); err != nil {
		r.logger.Warn("identity events did not settle", zap.Error(err))
	}
}

func (r *Resolver) handleIdentity(ctx context.Context, acct *domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if acct == nil {
		r.showSignedOut(ctx)
		return
	}

	reloaded, err := r.auth.Reload(ctx)
	switch {
	case errors.Is(err, identity.ErrNoSession):
		// signed out since the event was queued; its own event follows
		return
	case err != nil:
		r.logger.Warn("failed to reload account", zap.String("uid", acct.ID), zap.Error(err))
		reloaded = acct
	case reloaded.ID != acct.ID:
		return
	}

	if reloaded.IsPasswordIdentity() && !reloaded.EmailVerified {
		metrics.IdentityEvents.WithLabelValues(metrics.EventDeniedUnverified).Inc()
		r.logger.Info("unverified account signed back out", zap.String("uid", reloaded.ID))
		r.keepTabOnSignOut = true
		r.auth.SignOut(ctx)
		r.showVerification(ctx)
		return
	}

	r.grantAccess(ctx, reloaded)
}

func (r *Resolver) showSignedOut(ctx context.Context) {
	metrics.IdentityEvents.WithLabelValues(metrics.EventSignedOut).Inc()
	r.state.SetUser(nil)

	if r.keepTabOnSignOut {
		r.keepTabOnSignOut = false
		r.state.ShowAuth(r.state.Tab())
	} else {
		tab := domain.TabSignup
		pending, err := r.gate.Pending(ctx)
		if err != nil {
			r.logger.Warn("failed to read pending verification", zap.Error(err))
		}
		if pending != nil && !pending.Expired(r.now()) {
			tab = domain.TabVerify
			r.state.SetVerifyEmail(pending.Email)
			if r.gate.State() != GateAwaiting {
				if _, err := r.gate.Resume(ctx); err != nil {
					r.logger.Warn("failed to resume verification", zap.Error(err))
				}
			}
		}
		r.state.ShowAuth(tab)
	}

	r.runInitializers(ctx, true)
}

// showVerification puts the gate back on screen for a denied account
func (r *Resolver) showVerification(ctx context.Context) {
	resumed, err := r.gate.Resume(ctx)
	if err != nil {
		r.logger.Warn("failed to resume verification", zap.Error(err))
	}
	if resumed {
		r.state.SetVerifyEmail(r.gate.Email())
		r.state.ShowAuth(domain.TabVerify)
		return
	}
	r.state.ShowAuth(domain.TabLogin)
}

func (r *Resolver) grantAccess(ctx context.Context, acct *domain.Account) {
	profile := r.loadProfile(ctx, acct)

	view := &domain.CurrentUserView{
		UID:         acct.ID,
		DisplayName: profile.Username,
		PhotoURL:    profile.PhotoURL,
		Email:       acct.Email,
		Role:        profile.Role,
	}
	if view.DisplayName == "" {
		view.DisplayName = acct.FallbackName()
	}
	if view.PhotoURL == "" {
		view.PhotoURL = acct.PhotoURL
	}
	if view.Role == "" {
		view.Role = domain.RoleCustomer
	}
	if r.isAdminEmail(acct.Email) {
		view.Role = domain.RoleAdmin
	}

	if err := r.gate.pending.Clear(ctx); err != nil {
		r.logger.Warn("failed to clear pending verification", zap.Error(err))
	}
	r.gate.Stop()

	r.state.SetUser(view)
	r.state.SetVerifyEmail("")
	r.state.ShowMain()
	metrics.IdentityEvents.WithLabelValues(metrics.EventSignedIn).Inc()
	r.logger.Info("access granted", zap.String("uid", view.UID), zap.String("role", string(view.Role)))

	r.runInitializers(ctx, false)
}

// loadProfile reads the stored profile, falling back to a default one when
// it is absent or unreadable. A stored profile that lags behind the
// provider's verification flag is brought up to date.
func (r *Resolver) loadProfile(ctx context.Context, acct *domain.Account) domain.Profile {
	profile, err := r.profiles.Get(ctx, acct.ID)
	if err != nil {
		r.logger.Warn("failed to read profile, using defaults", zap.String("uid", acct.ID), zap.Error(err))
		return domain.DefaultProfile(acct)
	}
	if profile == nil {
		return domain.DefaultProfile(acct)
	}

	if acct.EmailVerified && !profile.EmailVerified {
		if err := r.profiles.MarkEmailVerified(ctx, acct.ID); err != nil {
			r.logger.Warn("failed to converge profile verification", zap.String("uid", acct.ID), zap.Error(err))
		} else {
			profile.EmailVerified = true
		}
	}
	return *profile
}

func (r *Resolver) isAdminEmail(email string) bool {
	return r.adminEmail != "" && strings.EqualFold(strings.TrimSpace(email), r.adminEmail)
}

func (r *Resolver) runInitializers(ctx context.Context, guest bool) {
	for _, in := range r.initializers {
		if guest && !in.Guest {
			continue
		}
		if err := in.Load(ctx, r.state); err != nil {
			r.logger.Error("initializer failed", zap.String("initializer", in.Name), zap.Error(err))
		}
	}
}

func (r *Resolver) onGateTransition(ctx context.Context, t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// a flow may have restarted or abandoned the wait while this was queued
	if !r.gate.Current(t) {
		r.logger.Info("dropping stale verification outcome", zap.String("email", t.Email))
		return
	}

	switch t.Kind {
	case TransitionVerified:
		r.state.ShowAuth(domain.TabSuccess)
		if _, err := r.auth.SignInWithToken(ctx, t.ContinuationToken); err != nil {
			r.logger.Warn("failed to sign in after verification", zap.String("email", t.Email), zap.Error(err))
			r.state.SetVerifyEmail("")
			r.state.ShowAuth(domain.TabLogin)
			r.state.SetFormMessage(domain.TabLogin, "Email verified! Please log in.", true)
		}

	case TransitionAbandoned:
		r.state.SetVerifyEmail("")
		r.state.ShowAuth(domain.TabSignup)
		if t.Expired {
			r.state.Notify("Verification session expired. Please sign up again.", domain.SeverityWarning)
		}
	}
}
