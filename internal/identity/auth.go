package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/localstore"
	apperrors "storefront/pkg/errors"
	"storefront/pkg/logger"
)

// Listener receives the signed-in account, or nil after sign-out
type Listener func(ctx context.Context, acct *domain.Account)

// SessionStore persists the refresh token of the current session
type SessionStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type authEvent struct {
	acct    *domain.Account
	target  uint64 // 0 delivers to every listener
	barrier chan struct{}
}

// Auth holds the signed-in account and notifies listeners on every change.
// Notifications are queued and delivered in order on one goroutine, so a
// listener may call back into Auth.
type Auth struct {
	provider Provider
	sessions SessionStore
	logger   *logger.Logger

	mu        sync.Mutex
	current   *domain.Account
	listeners map[uint64]Listener
	nextID    uint64
	queue     []authEvent

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAuth creates the auth state holder
func NewAuth(provider Provider, sessions SessionStore, log *logger.Logger) *Auth {
	return &Auth{
		provider:  provider,
		sessions:  sessions,
		logger:    log.Named("identity.auth"),
		listeners: make(map[uint64]Listener),
		wake:      make(chan struct{}, 1),
	}
}

// Start begins delivering notifications
func (a *Auth) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.dispatch(ctx, a.done)
}

// Stop ends delivery and waits for the dispatcher to exit
func (a *Auth) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// OnAuthStateChanged registers fn and queues the current state for it.
// The returned func unsubscribes.
func (a *Auth) OnAuthStateChanged(fn Listener) func() {
	a.mu.Lock()
	a.nextID++
	id := a.nextID
	a.listeners[id] = fn
	a.queue = append(a.queue, authEvent{acct: copyAccount(a.current), target: id})
	a.mu.Unlock()
	a.signal()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// CurrentUser returns a copy of the signed-in account, or nil
func (a *Auth) CurrentUser() *domain.Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyAccount(a.current)
}

// Provider exposes the backend the session talks to
func (a *Auth) Provider() Provider {
	return a.provider
}

// SetSession makes acct the signed-in account and notifies listeners
func (a *Auth) SetSession(ctx context.Context, acct *domain.Account) {
	a.mu.Lock()
	a.current = copyAccount(acct)
	a.queue = append(a.queue, authEvent{acct: copyAccount(acct)})
	a.mu.Unlock()
	a.signal()

	a.persist(ctx, acct)
	a.logger.Info("session established", zap.String("uid", acct.ID))
}

// SignInWithToken establishes a session from a refresh token
func (a *Auth) SignInWithToken(ctx context.Context, refreshToken string) (*domain.Account, error) {
	acct, err := a.provider.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	acct, err = a.provider.Reload(ctx, acct)
	if err != nil {
		return nil, err
	}
	a.SetSession(ctx, acct)
	return acct, nil
}

// SignOut drops the session. Listeners are only notified if someone was signed in.
func (a *Auth) SignOut(ctx context.Context) {
	a.mu.Lock()
	wasSignedIn := a.current != nil
	a.current = nil
	if wasSignedIn {
		a.queue = append(a.queue, authEvent{})
	}
	a.mu.Unlock()

	if a.sessions != nil {
		if err := a.sessions.Delete(ctx, localstore.KeyAuthSession); err != nil {
			a.logger.Warn("failed to clear persisted session", zap.Error(err))
		}
	}
	if wasSignedIn {
		a.signal()
		a.logger.Info("signed out")
	}
}

// Reload refreshes the signed-in account from the backend without notifying listeners
func (a *Auth) Reload(ctx context.Context) (*domain.Account, error) {
	current := a.CurrentUser()
	if current == nil {
		return nil, ErrNoSession
	}

	reloaded, err := a.provider.Reload(ctx, current)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	stillCurrent := a.current != nil && a.current.ID == reloaded.ID
	if stillCurrent {
		a.current = copyAccount(reloaded)
	}
	a.mu.Unlock()

	if stillCurrent && reloaded.RefreshToken != current.RefreshToken {
		a.persist(ctx, reloaded)
	}
	return reloaded, nil
}

// Restore re-establishes the persisted session, if any
func (a *Auth) Restore(ctx context.Context) error {
	if a.sessions == nil {
		return nil
	}

	token, err := a.sessions.Get(ctx, localstore.KeyAuthSession)
	if err != nil {
		return fmt.Errorf("failed to read persisted session: %w", err)
	}
	if len(token) == 0 {
		return nil
	}

	if _, err := a.SignInWithToken(ctx, string(token)); err != nil {
		// keep the token through outages; only a rejected token is dropped
		if sessionRevoked(err) {
			if derr := a.sessions.Delete(ctx, localstore.KeyAuthSession); derr != nil {
				a.logger.Warn("failed to clear persisted session", zap.Error(derr))
			}
		}
		return fmt.Errorf("failed to restore session: %w", err)
	}
	return nil
}

func sessionRevoked(err error) bool {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case apperrors.CodeInvalidCredential, apperrors.CodeUserNotFound, apperrors.CodeUserDisabled:
		return true
	}
	return false
}

// Sync waits until every notification queued before the call has been
// delivered. It must not be called from a listener.
func (a *Auth) Sync(ctx context.Context) error {
	barrier := make(chan struct{})

	a.mu.Lock()
	if a.cancel == nil {
		a.mu.Unlock()
		return nil
	}
	done := a.done
	a.queue = append(a.queue, authEvent{barrier: barrier})
	a.mu.Unlock()
	a.signal()

	select {
	case <-barrier:
		return nil
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Auth) persist(ctx context.Context, acct *domain.Account) {
	if a.sessions == nil || acct.RefreshToken == "" {
		return
	}
	if err := a.sessions.Set(ctx, localstore.KeyAuthSession, []byte(acct.RefreshToken)); err != nil {
		a.logger.Warn("failed to persist session", zap.Error(err))
	}
}

func (a *Auth) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Auth) dispatch(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.wake:
		}

		for {
			a.mu.Lock()
			if len(a.queue) == 0 {
				a.mu.Unlock()
				break
			}
			ev := a.queue[0]
			a.queue = a.queue[1:]
			if ev.barrier != nil {
				a.mu.Unlock()
				close(ev.barrier)
				continue
			}

			var targets []Listener
			if ev.target != 0 {
				if fn, ok := a.listeners[ev.target]; ok {
					targets = append(targets, fn)
				}
			} else {
				ids := make([]uint64, 0, len(a.listeners))
				for id := range a.listeners {
					ids = append(ids, id)
				}
				slices.Sort(ids)
				for _, id := range ids {
					targets = append(targets, a.listeners[id])
				}
			}
			a.mu.Unlock()

			for _, fn := range targets {
				if ctx.Err() != nil {
					return
				}
				fn(ctx, copyAccount(ev.acct))
			}
		}
	}
}

func copyAccount(acct *domain.Account) *domain.Account {
	if acct == nil {
		return nil
	}
	c := *acct
	return &c
}
