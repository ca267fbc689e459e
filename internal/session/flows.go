package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	apperrors "storefront/pkg/errors"
)

// run serializes a flow with identity handling, records its outcome and
// then waits for the identity events it caused
func (r *Resolver) run(ctx context.Context, flow string, fn func() error) error {
	r.mu.Lock()
	err := fn()
	r.mu.Unlock()

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailed
		if appErr := apperrors.AsAppError(err); appErr.Type == apperrors.ErrorTypeValidation || appErr.Type == apperrors.ErrorTypeConflict {
			outcome = metrics.OutcomeRejected
		}
	}
	metrics.AuthFlows.WithLabelValues(flow, outcome).Inc()

	r.Settle(ctx)
	return err
}

// fail shows err inline under the form on tab and returns it
func (r *Resolver) fail(tab domain.Tab, err error) error {
	r.state.SetFormMessage(tab, userMessage(err), false)
	return err
}

// Signup creates a password account and starts waiting for its email to be verified
func (r *Resolver) Signup(ctx context.Context, form SignupForm) error {
	return r.run(ctx, "signup", func() error {
		form.normalize()
		if verr := form.validate(); verr != nil {
			return r.fail(domain.TabSignup, verr)
		}

		taken, err := r.usernames.IsTaken(ctx, form.Username)
		if err != nil {
			return r.fail(domain.TabSignup, apperrors.NewInternalError("failed to check username", err))
		}
		if taken {
			return r.fail(domain.TabSignup, apperrors.NewConflictError("Username already taken."))
		}

		provider := r.auth.Provider()
		acct, err := provider.CreateAccount(ctx, form.Email, form.Password)
		if err != nil {
			return r.fail(domain.TabSignup, err)
		}

		if err := provider.UpdateProfile(ctx, acct, form.Username, ""); err != nil {
			r.logger.Warn("failed to set display name", zap.String("uid", acct.ID), zap.Error(err))
		}

		profile := &domain.Profile{
			Username:      form.Username,
			Email:         acct.Email,
			PhotoURL:      "",
			Role:          domain.RoleCustomer,
			CreatedAt:     r.now().UTC(),
			EmailVerified: false,
		}
		if err := r.profiles.Create(ctx, acct.ID, profile); err != nil {
			return r.fail(domain.TabSignup, apperrors.NewInternalError("failed to create profile", err))
		}
		if err := r.usernames.Reserve(ctx, form.Username, acct.ID); err != nil {
			r.logger.Warn("failed to reserve username", zap.String("username", form.Username), zap.Error(err))
		}

		if err := provider.SendVerificationEmail(ctx, acct, r.verifyRedirectURL); err != nil {
			r.logger.Warn("failed to send verification email", zap.String("uid", acct.ID), zap.Error(err))
		}

		if _, err := r.gate.Begin(ctx, acct.Email, acct.RefreshToken); err != nil {
			return r.fail(domain.TabSignup, apperrors.NewInternalError("failed to start verification", err))
		}

		r.state.ClearFormMessage(domain.TabSignup)
		r.state.SetVerifyEmail(acct.Email)
		r.state.ShowAuth(domain.TabVerify)
		r.state.Notify("Account created! Please check your email to verify.", domain.SeveritySuccess)
		r.logger.Info("account created", zap.String("uid", acct.ID))
		return nil
	})
}

// Login signs in with email and password. An unverified account never gets
// a session; it is sent to the verification gate instead.
func (r *Resolver) Login(ctx context.Context, form LoginForm) error {
	return r.run(ctx, "login", func() error {
		if verr := form.validate(); verr != nil {
			return r.fail(domain.TabLogin, verr)
		}

		provider := r.auth.Provider()
		acct, err := provider.SignIn(ctx, form.Email, form.Password)
		if err != nil {
			return r.fail(domain.TabLogin, err)
		}
		acct, err = provider.Reload(ctx, acct)
		if err != nil {
			return r.fail(domain.TabLogin, err)
		}

		if acct.IsPasswordIdentity() && !acct.EmailVerified {
			if _, err := r.gate.Begin(ctx, acct.Email, acct.RefreshToken); err != nil {
				return r.fail(domain.TabLogin, apperrors.NewInternalError("failed to start verification", err))
			}
			r.state.SetVerifyEmail(acct.Email)
			r.state.ShowAuth(domain.TabVerify)
			return r.fail(domain.TabVerify, apperrors.NewAuthorizationError("Please verify your email first."))
		}

		r.state.ClearFormMessage(domain.TabLogin)
		r.auth.SetSession(ctx, acct)
		r.state.Notify("Welcome back!", domain.SeveritySuccess)
		return nil
	})
}

// ResetPassword sends a reset link and returns to the login tab shortly after
func (r *Resolver) ResetPassword(ctx context.Context, email string) error {
	return r.run(ctx, "password_reset", func() error {
		if verr := validateResetEmail(email); verr != nil {
			return r.fail(domain.TabReset, verr)
		}
		if err := r.auth.Provider().SendPasswordReset(ctx, email); err != nil {
			return r.fail(domain.TabReset, err)
		}

		r.state.SetFormMessage(domain.TabReset, "Password reset link sent to your email!", true)
		if r.resetTimer != nil {
			r.resetTimer.Stop()
		}
		r.resetTimer = time.AfterFunc(r.resetReturnDelay, r.returnToLogin)
		return nil
	})
}

func (r *Resolver) returnToLogin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Screen() == domain.ScreenAuth && r.state.Tab() == domain.TabReset {
		r.state.SetTab(domain.TabLogin)
	}
}

// ResendVerification sends the verification email again
func (r *Resolver) ResendVerification(ctx context.Context) error {
	return r.run(ctx, "resend_verification", func() error {
		err := r.gate.Resend(ctx)
		switch {
		case err == nil:
			r.state.Notify("Verification email sent!", domain.SeveritySuccess)
			return nil
		case errors.Is(err, ErrNoPendingVerification):
			r.state.SetVerifyEmail("")
			r.state.ShowAuth(domain.TabSignup)
			r.state.Notify("Session expired. Please sign up again.", domain.SeverityError)
			return apperrors.NewNotFoundError("Session expired. Please sign up again.")
		case errors.Is(err, ErrResendCooldown):
			secs := int((r.gate.CooldownRemaining() + time.Second - 1) / time.Second)
			return apperrors.NewRateLimitError(fmt.Sprintf("Please wait %ds before resending.", secs))
		default:
			return r.fail(domain.TabVerify, err)
		}
	})
}

// ChangeEmail abandons the pending verification and returns to signup
func (r *Resolver) ChangeEmail(ctx context.Context) error {
	return r.run(ctx, "change_email", func() error {
		if err := r.gate.Abandon(ctx); err != nil {
			r.logger.Warn("failed to abandon verification", zap.Error(err))
		}
		r.state.SetVerifyEmail("")
		r.state.ShowAuth(domain.TabSignup)
		return nil
	})
}

// SignOut ends the session
func (r *Resolver) SignOut(ctx context.Context) error {
	return r.run(ctx, "signout", func() error {
		r.auth.SignOut(ctx)
		return nil
	})
}

// ShowTab switches the auth screen to tab
func (r *Resolver) ShowTab(ctx context.Context, tab domain.Tab) error {
	if !tab.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown tab %q", tab), nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Screen() != domain.ScreenAuth {
		return apperrors.NewConflictError("Already signed in.")
	}
	r.state.SetTab(tab)
	return nil
}

// GoogleAuthURL is the consent page for a Google sign-in carrying state
func (r *Resolver) GoogleAuthURL(state string) (string, error) {
	if r.google == nil {
		return "", apperrors.NewServiceUnavailableError("Google sign-in is not configured")
	}
	return r.google.AuthCodeURL(state), nil
}

// CompleteGoogleSignIn finishes a Google sign-in, upserts the profile and
// establishes the session. The stored role of an existing profile is kept.
func (r *Resolver) CompleteGoogleSignIn(ctx context.Context, code string) error {
	if r.google == nil {
		return apperrors.NewServiceUnavailableError("Google sign-in is not configured")
	}

	return r.run(ctx, "google", func() error {
		result, err := r.google.Complete(ctx, code)
		if err != nil {
			return r.googleFailed(err)
		}
		acct := result.Account

		existing, err := r.profiles.Get(ctx, acct.ID)
		if err != nil {
			r.logger.Warn("failed to read profile for google sign-in", zap.String("uid", acct.ID), zap.Error(err))
		}
		fields := map[string]interface{}{
			"username":      acct.FallbackName(),
			"email":         acct.Email,
			"photoURL":      acct.PhotoURL,
			"emailVerified": true,
		}
		if existing == nil && err == nil {
			err = r.profiles.Create(ctx, acct.ID, &domain.Profile{
				Username:      acct.FallbackName(),
				Email:         acct.Email,
				PhotoURL:      acct.PhotoURL,
				Role:          domain.RoleCustomer,
				CreatedAt:     r.now().UTC(),
				EmailVerified: true,
			})
		} else {
			err = r.profiles.Update(ctx, acct.ID, fields)
		}
		if err != nil {
			return r.googleFailed(apperrors.NewInternalError("failed to save profile", err))
		}

		r.auth.SetSession(ctx, acct)
		r.state.Notify("Welcome back!", domain.SeveritySuccess)
		return nil
	})
}

func (r *Resolver) googleFailed(err error) error {
	if apperrors.AsAppError(err).Code == apperrors.CodePopupClosed {
		return err
	}
	r.logger.Warn("google sign-in failed", zap.Error(err))
	r.state.Notify("Failed to sign in with Google. Please try again.", domain.SeverityError)
	return err
}
