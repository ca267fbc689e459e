package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/identity"
	"storefront/internal/metrics"
	"storefront/internal/repository"
	"storefront/pkg/logger"
)

var (
	ErrNoPendingVerification = errors.New("no pending verification")
	ErrResendCooldown        = errors.New("resend is cooling down")
)

// GateState is the state of the verification gate
type GateState int

const (
	GateIdle GateState = iota
	GateAwaiting
	GateVerified
	GateAbandoned
)

func (s GateState) String() string {
	switch s {
	case GateAwaiting:
		return "awaiting_verification"
	case GateVerified:
		return "verified"
	case GateAbandoned:
		return "abandoned"
	default:
		return "idle"
	}
}

// TransitionKind is a terminal gate outcome
type TransitionKind int

const (
	TransitionVerified TransitionKind = iota + 1
	TransitionAbandoned
)

// Transition is delivered to the gate's observer when a wait ends on its own
type Transition struct {
	Kind              TransitionKind
	Email             string
	UID               string
	ContinuationToken string
	Expired           bool
	// Gen is the gate generation the outcome belongs to; see Gate.Current
	Gen uint64
}

// GateConfig holds the gate timings
type GateConfig struct {
	PollInterval time.Duration
	PendingTTL   time.Duration
	RedirectURL  string
}

// Gate polls the identity backend until the pending account's email is
// verified. Only one poll loop runs at a time; every loop carries a
// generation number and a result is dropped unless its generation is still
// current when it arrives.
type Gate struct {
	provider identity.Provider
	profiles repository.ProfileRepository
	pending  *PendingCache
	cooldown *Cooldown
	cfg      GateConfig
	logger   *logger.Logger
	now      func() time.Time

	base       context.Context
	baseCancel context.CancelFunc

	mu           sync.Mutex
	state        GateState
	email        string
	gen          uint64
	cancel       context.CancelFunc
	onTransition func(ctx context.Context, t Transition)

	wg sync.WaitGroup
}

// NewGate creates an idle gate
func NewGate(provider identity.Provider, profiles repository.ProfileRepository, pending *PendingCache, cooldown *Cooldown, cfg GateConfig, log *logger.Logger) *Gate {
	base, cancel := context.WithCancel(context.Background())
	return &Gate{
		provider:   provider,
		profiles:   profiles,
		pending:    pending,
		cooldown:   cooldown,
		cfg:        cfg,
		logger:     log.Named("session.gate"),
		now:        time.Now,
		base:       base,
		baseCancel: cancel,
	}
}

// OnTransition sets the observer of Verified and Abandoned outcomes
func (g *Gate) OnTransition(fn func(ctx context.Context, t Transition)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onTransition = fn
}

func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Email is the address being verified, empty when idle
func (g *Gate) Email() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.email
}

// Pending returns the cached record, nil when none
func (g *Gate) Pending(ctx context.Context) (*domain.PendingVerification, error) {
	return g.pending.Load(ctx)
}

// CooldownRemaining is the time left before Resend is allowed
func (g *Gate) CooldownRemaining() time.Duration {
	return g.cooldown.Remaining()
}

// Begin caches the pending record and starts waiting for verification
func (g *Gate) Begin(ctx context.Context, email, continuationToken string) (*domain.PendingVerification, error) {
	now := g.now()
	rec := &domain.PendingVerification{
		Email:             email,
		ContinuationToken: continuationToken,
		CreatedAt:         now,
		ExpiresAt:         now.Add(g.cfg.PendingTTL),
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.pending.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to cache pending verification: %w", err)
	}
	g.startPollingLocked(rec)
	g.cooldown.Start()

	g.logger.Info("verification wait started", zap.String("email", email))
	return rec, nil
}

// Resume restarts the wait from the cached record. It reports false when
// nothing is cached or the record has expired.
func (g *Gate) Resume(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, err := g.pending.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load pending verification: %w", err)
	}
	if rec == nil {
		return false, nil
	}
	if rec.Expired(g.now()) {
		g.logger.Info("pending verification expired", zap.String("email", rec.Email))
		if err := g.pending.Clear(ctx); err != nil {
			g.logger.Warn("failed to clear expired pending verification", zap.Error(err))
		}
		return false, nil
	}

	g.startPollingLocked(rec)
	g.logger.Info("verification wait resumed", zap.String("email", rec.Email))
	return true, nil
}

// Resend sends the verification email again. It never touches the poll loop.
func (g *Gate) Resend(ctx context.Context) error {
	rec, err := g.pending.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending verification: %w", err)
	}
	if rec == nil || rec.Expired(g.now()) {
		return ErrNoPendingVerification
	}
	if g.cooldown.Active() {
		return ErrResendCooldown
	}

	acct, err := g.provider.Refresh(ctx, rec.ContinuationToken)
	if err != nil {
		return err
	}
	if err := g.provider.SendVerificationEmail(ctx, acct, g.cfg.RedirectURL); err != nil {
		return err
	}
	g.cooldown.Start()

	if acct.RefreshToken != "" && acct.RefreshToken != rec.ContinuationToken {
		rec.ContinuationToken = acct.RefreshToken
		if err := g.pending.Save(ctx, rec); err != nil {
			g.logger.Warn("failed to store rotated continuation token", zap.Error(err))
		}
	}
	g.logger.Info("verification email resent", zap.String("email", rec.Email))
	return nil
}

// Abandon drops the pending record and stops waiting
func (g *Gate) Abandon(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.haltLocked()
	g.state = GateAbandoned
	g.email = ""
	if err := g.pending.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear pending verification: %w", err)
	}
	return nil
}

// Stop cancels polling and the cooldown and returns to Idle. It does not
// wait for an in-flight poll; that poll's result is discarded.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.haltLocked()
	g.state = GateIdle
	g.email = ""
}

// Close stops the gate and waits for its goroutines
func (g *Gate) Close() {
	g.Stop()
	g.baseCancel()
	g.wg.Wait()
	g.cooldown.Wait()
}

func (g *Gate) haltLocked() {
	g.gen++
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.cooldown.Stop()
}

func (g *Gate) startPollingLocked(rec *domain.PendingVerification) {
	g.gen++
	if g.cancel != nil {
		g.cancel()
	}

	ctx, cancel := context.WithCancel(g.base)
	g.cancel = cancel
	g.state = GateAwaiting
	g.email = rec.Email

	r := *rec
	g.wg.Add(1)
	go g.poll(ctx, g.gen, &r)
}

func (g *Gate) current(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen == gen
}

// Current reports whether t is still the gate's latest outcome. Begin, Stop
// and Abandon all invalidate an earlier transition.
func (g *Gate) Current(t Transition) bool {
	return g.current(t.Gen)
}

func (g *Gate) poll(ctx context.Context, gen uint64, rec *domain.PendingVerification) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if done := g.pollOnce(ctx, gen, rec); done {
			return
		}
	}
}

// pollOnce runs one check and reports whether the loop should end
func (g *Gate) pollOnce(ctx context.Context, gen uint64, rec *domain.PendingVerification) bool {
	if ctx.Err() != nil || !g.current(gen) {
		metrics.VerificationPolls.WithLabelValues(metrics.PollStale).Inc()
		return true
	}
	if rec.Expired(g.now()) {
		g.finish(gen, Transition{Kind: TransitionAbandoned, Email: rec.Email, Expired: true})
		return true
	}

	acct, err := g.provider.Refresh(ctx, rec.ContinuationToken)
	if err == nil {
		acct, err = g.provider.Reload(ctx, acct)
	}

	if ctx.Err() != nil || !g.current(gen) {
		metrics.VerificationPolls.WithLabelValues(metrics.PollStale).Inc()
		return true
	}
	if err != nil {
		metrics.VerificationPolls.WithLabelValues(metrics.PollError).Inc()
		g.logger.Warn("verification poll failed", zap.String("email", rec.Email), zap.Error(err))
		return false
	}
	if acct.RefreshToken != "" && acct.RefreshToken != rec.ContinuationToken {
		g.rotateToken(gen, rec, acct.RefreshToken)
	}
	if !acct.EmailVerified {
		metrics.VerificationPolls.WithLabelValues(metrics.PollPending).Inc()
		return false
	}

	if err := g.profiles.MarkEmailVerified(ctx, acct.ID); err != nil {
		metrics.VerificationPolls.WithLabelValues(metrics.PollError).Inc()
		g.logger.Warn("failed to mark profile verified", zap.String("uid", acct.ID), zap.Error(err))
		return false
	}

	metrics.VerificationPolls.WithLabelValues(metrics.PollVerified).Inc()
	g.finish(gen, Transition{
		Kind:              TransitionVerified,
		Email:             rec.Email,
		UID:               acct.ID,
		ContinuationToken: rec.ContinuationToken,
	})
	return true
}

// rotateToken stores a refreshed continuation token so a restart resumes with it
func (g *Gate) rotateToken(gen uint64, rec *domain.PendingVerification, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen {
		return
	}
	rec.ContinuationToken = token
	if err := g.pending.Save(g.base, rec); err != nil {
		g.logger.Warn("failed to store rotated continuation token", zap.Error(err))
	}
}

// finish ends the wait for generation gen and notifies the observer
func (g *Gate) finish(gen uint64, t Transition) {
	g.mu.Lock()
	if g.gen != gen {
		g.mu.Unlock()
		metrics.VerificationPolls.WithLabelValues(metrics.PollStale).Inc()
		return
	}
	if err := g.pending.Clear(g.base); err != nil {
		g.logger.Warn("failed to clear pending verification", zap.Error(err))
	}
	g.haltLocked()
	t.Gen = g.gen
	if t.Kind == TransitionVerified {
		g.state = GateVerified
	} else {
		g.state = GateAbandoned
		g.email = ""
	}
	observer := g.onTransition
	g.mu.Unlock()

	g.logger.Info("verification wait finished",
		zap.String("email", t.Email),
		zap.Bool("verified", t.Kind == TransitionVerified),
		zap.Bool("expired", t.Expired))

	if observer != nil {
		observer(g.base, t)
	}
}
