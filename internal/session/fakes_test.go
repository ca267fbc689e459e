package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/identity"
	"storefront/internal/localstore"
	"storefront/internal/repository"
	"storefront/internal/store"
	apperrors "storefront/pkg/errors"
	"storefront/pkg/logger"
	"storefront/pkg/redis"
)

type fakeAccount struct {
	ID          string
	Email       string
	Password    string
	DisplayName string
	PhotoURL    string
	Provider    string
	Token       string
	// Retired tokens still refresh, as the backend honours them until expiry
	Retired  []string
	Verified bool
}

// fakeProvider is an in-memory identity backend
type fakeProvider struct {
	mu         sync.Mutex
	byEmail    map[string]*fakeAccount
	seq        int
	calls      map[string]int
	refreshErr error
	// refreshHook runs before each Refresh answers
	refreshHook func()
	resets      []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		byEmail: make(map[string]*fakeAccount),
		calls:   make(map[string]int),
	}
}

func (p *fakeProvider) add(email, password string, verified bool) *fakeAccount {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addLocked(email, password, verified, domain.ProviderPassword)
}

func (p *fakeProvider) addLocked(email, password string, verified bool, provider string) *fakeAccount {
	p.seq++
	a := &fakeAccount{
		ID:       fmt.Sprintf("uid-%d", p.seq),
		Email:    email,
		Password: password,
		Provider: provider,
		Token:    fmt.Sprintf("refresh-%d", p.seq),
		Verified: verified,
	}
	p.byEmail[email] = a
	return a
}

func (p *fakeProvider) verify(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byEmail[email].Verified = true
}

func (p *fakeProvider) rotate(email, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.byEmail[email]
	a.Retired = append(a.Retired, a.Token)
	a.Token = token
}

func (p *fakeProvider) setRefreshErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshErr = err
}

func (p *fakeProvider) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *fakeProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *fakeProvider) toAccount(a *fakeAccount) *domain.Account {
	return &domain.Account{
		ID:            a.ID,
		Email:         a.Email,
		EmailVerified: a.Verified,
		DisplayName:   a.DisplayName,
		PhotoURL:      a.PhotoURL,
		ProviderID:    a.Provider,
		IDToken:       "id-" + a.ID,
		RefreshToken:  a.Token,
		ExpiresAt:     time.Now().Add(time.Hour),
	}
}

func (p *fakeProvider) byID(id string) *fakeAccount {
	for _, a := range p.byEmail {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (p *fakeProvider) CreateAccount(_ context.Context, email, password string) (*domain.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["CreateAccount"]++
	if _, ok := p.byEmail[email]; ok {
		return nil, apperrors.NewProviderError(apperrors.CodeEmailAlreadyInUse, nil)
	}
	return p.toAccount(p.addLocked(email, password, false, domain.ProviderPassword)), nil
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (*domain.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["SignIn"]++
	a, ok := p.byEmail[email]
	if !ok {
		return nil, apperrors.NewProviderError(apperrors.CodeUserNotFound, nil)
	}
	if a.Password != password {
		return nil, apperrors.NewProviderError(apperrors.CodeWrongPassword, nil)
	}
	return p.toAccount(a), nil
}

func (p *fakeProvider) Refresh(_ context.Context, refreshToken string) (*domain.Account, error) {
	p.mu.Lock()
	p.calls["Refresh"]++
	hook := p.refreshHook
	p.mu.Unlock()

	if hook != nil {
		hook()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	for _, a := range p.byEmail {
		if a.Token == refreshToken || slices.Contains(a.Retired, refreshToken) {
			return p.toAccount(a), nil
		}
	}
	return nil, apperrors.NewProviderError(apperrors.CodeInvalidCredential, nil)
}

func (p *fakeProvider) Reload(_ context.Context, acct *domain.Account) (*domain.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["Reload"]++
	if acct == nil {
		return nil, identity.ErrNoSession
	}
	a := p.byID(acct.ID)
	if a == nil {
		return nil, apperrors.NewProviderError(apperrors.CodeUserNotFound, nil)
	}
	return p.toAccount(a), nil
}

func (p *fakeProvider) UpdateProfile(_ context.Context, acct *domain.Account, displayName, photoURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["UpdateProfile"]++
	if a := p.byID(acct.ID); a != nil {
		a.DisplayName = displayName
		if photoURL != "" {
			a.PhotoURL = photoURL
		}
	}
	return nil
}

func (p *fakeProvider) SendVerificationEmail(_ context.Context, _ *domain.Account, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["SendVerificationEmail"]++
	return nil
}

func (p *fakeProvider) SendPasswordReset(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["SendPasswordReset"]++
	if _, ok := p.byEmail[email]; !ok {
		return apperrors.NewProviderError(apperrors.CodeUserNotFound, nil)
	}
	p.resets = append(p.resets, email)
	return nil
}

func (p *fakeProvider) SignInWithIdP(_ context.Context, providerID, accessToken, _ string) (*domain.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["SignInWithIdP"]++
	email := accessToken + "@gmail.com"
	a, ok := p.byEmail[email]
	if !ok {
		a = p.addLocked(email, "", true, providerID)
	}
	return p.toAccount(a), nil
}

// flakyProfiles wraps a profile repository with injectable failures
type flakyProfiles struct {
	repository.ProfileRepository

	mu        sync.Mutex
	getErr    error
	markFails int
	marks     int
}

func (f *flakyProfiles) Get(ctx context.Context, uid string) (*domain.Profile, error) {
	f.mu.Lock()
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.ProfileRepository.Get(ctx, uid)
}

func (f *flakyProfiles) MarkEmailVerified(ctx context.Context, uid string) error {
	f.mu.Lock()
	f.marks++
	if f.markFails > 0 {
		f.markFails--
		f.mu.Unlock()
		return errors.New("store unavailable")
	}
	f.mu.Unlock()
	return f.ProfileRepository.MarkEmailVerified(ctx, uid)
}

func (f *flakyProfiles) markCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marks
}

// backend is what survives a process restart
type backend struct {
	provider *fakeProvider
	repos    *repository.Repositories
	profiles *flakyProfiles
	local    *localstore.Store
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	local, err := localstore.Open(context.Background(), filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	repos := repository.NewRepositories(store.NewRedisStore(client, logger.NewNop()))
	return &backend{
		provider: newFakeProvider(),
		repos:    repos,
		profiles: &flakyProfiles{ProfileRepository: repos.Profile},
		local:    local,
	}
}

type sessionConfig struct {
	pollInterval   time.Duration
	pendingTTL     time.Duration
	cooldownWindow time.Duration
	cooldownTick   time.Duration
	adminEmail     string
	google         *identity.GoogleSignIn
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		pollInterval:   20 * time.Millisecond,
		pendingTTL:     time.Hour,
		cooldownWindow: 500 * time.Millisecond,
		cooldownTick:   10 * time.Millisecond,
		adminEmail:     "Admin@Shop.com",
	}
}

// testSession is one running process
type testSession struct {
	auth     *identity.Auth
	gate     *Gate
	resolver *Resolver
	state    *State

	mu    sync.Mutex
	loads map[string]int
}

func (s *testSession) loaded(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads[name]
}

func (b *backend) start(t *testing.T, cfg sessionConfig) *testSession {
	t.Helper()
	log := logger.NewNop()

	auth := identity.NewAuth(b.provider, b.local, log)
	auth.Start(context.Background())

	gate := NewGate(b.provider, b.profiles, NewPendingCache(b.local),
		NewCooldown(cfg.cooldownWindow, cfg.cooldownTick),
		GateConfig{PollInterval: cfg.pollInterval, PendingTTL: cfg.pendingTTL, RedirectURL: "http://localhost/app"},
		log)

	s := &testSession{auth: auth, gate: gate, state: NewState(time.Second), loads: make(map[string]int)}
	counter := func(name string, err error) func(context.Context, *State) error {
		return func(context.Context, *State) error {
			s.mu.Lock()
			s.loads[name]++
			s.mu.Unlock()
			return err
		}
	}

	s.resolver = NewResolver(Deps{
		Auth:      auth,
		Gate:      gate,
		Google:    cfg.google,
		Profiles:  b.profiles,
		Usernames: b.repos.Username,
		State:     s.state,
		Initializers: []Initializer{
			{Name: "catalog", Load: counter("catalog", nil)},
			{Name: "profile", Load: counter("profile", errors.New("profile load failed"))},
			{Name: "cart", Guest: true, Load: counter("cart", nil)},
		},
		AdminEmail:        cfg.adminEmail,
		VerifyRedirectURL: "http://localhost/app",
		ResetReturnDelay:  30 * time.Millisecond,
	}, log)
	s.resolver.Start(context.Background())

	t.Cleanup(s.stop)
	s.resolver.Settle(context.Background())
	return s
}

func (s *testSession) stop() {
	s.resolver.Stop()
	s.gate.Close()
	s.auth.Stop()
}
