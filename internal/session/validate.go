package session

import (
	"strings"
	"unicode/utf8"

	apperrors "storefront/pkg/errors"
)

const (
	minPasswordLength = 6
	minUsernameLength = 3
)

// SignupForm is the signup tab input
type SignupForm struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginForm is the login tab input
type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (f *SignupForm) normalize() {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
}

// validate runs before any backend call
func (f SignupForm) validate() *apperrors.AppError {
	if f.Username == "" || f.Email == "" || f.Password == "" {
		return apperrors.NewValidationError("Please fill all fields.", nil)
	}
	if utf8.RuneCountInString(f.Password) < minPasswordLength {
		return apperrors.NewValidationError("Password must be at least 6 characters.",
			map[string]interface{}{"field": "password"})
	}
	if utf8.RuneCountInString(f.Username) < minUsernameLength {
		return apperrors.NewValidationError("Username must be at least 3 characters.",
			map[string]interface{}{"field": "username"})
	}
	return nil
}

func (f LoginForm) validate() *apperrors.AppError {
	if strings.TrimSpace(f.Email) == "" || f.Password == "" {
		return apperrors.NewValidationError("Please enter email and password.", nil)
	}
	return nil
}

func validateResetEmail(email string) *apperrors.AppError {
	if strings.TrimSpace(email) == "" {
		return apperrors.NewValidationError("Please enter your email.", nil)
	}
	return nil
}

// userMessage is the inline text shown for err
func userMessage(err error) string {
	appErr := apperrors.AsAppError(err)
	if appErr.Type == apperrors.ErrorTypeInternal {
		return apperrors.UserMessage(apperrors.CodeUnknown)
	}
	return appErr.Message
}
