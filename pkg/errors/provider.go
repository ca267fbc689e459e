package errors

import "strings"

// ProviderCode is the stable identity-provider error code
type ProviderCode string

const (
	CodeEmailAlreadyInUse ProviderCode = "email-already-in-use"
	CodeInvalidEmail      ProviderCode = "invalid-email"
	CodeWeakPassword      ProviderCode = "weak-password"
	CodeUserNotFound      ProviderCode = "user-not-found"
	CodeWrongPassword     ProviderCode = "wrong-password"
	CodeInvalidCredential ProviderCode = "invalid-credential"
	CodeTooManyRequests   ProviderCode = "too-many-requests"
	CodeUserDisabled      ProviderCode = "user-disabled"
	CodePopupClosed       ProviderCode = "popup-closed"
	CodeUnknown           ProviderCode = "unknown"
)

const fallbackMessage = "Something went wrong. Please try again."

var userMessages = map[ProviderCode]string{
	CodeEmailAlreadyInUse: "This email is already registered. Please log in.",
	CodeInvalidEmail:      "Invalid email address.",
	CodeWeakPassword:      "Password is too weak.",
	CodeUserNotFound:      "No account found with this email.",
	CodeWrongPassword:     "Incorrect password.",
	CodeInvalidCredential: "Incorrect password.",
	CodeTooManyRequests:   "Too many failed attempts. Try again later.",
	CodeUserDisabled:      "This account has been disabled.",
}

// UserMessage returns the text shown to the user for a provider code
func UserMessage(code ProviderCode) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return fallbackMessage
}

// CodeFromBackend maps the identity backend's error message (for example
// "EMAIL_EXISTS" or "WEAK_PASSWORD : Password should be at least 6 characters")
// to a ProviderCode.
func CodeFromBackend(message string) ProviderCode {
	key := strings.TrimSpace(message)
	if i := strings.Index(key, " "); i >= 0 {
		key = key[:i]
	}

	switch key {
	case "EMAIL_EXISTS":
		return CodeEmailAlreadyInUse
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return CodeInvalidEmail
	case "WEAK_PASSWORD":
		return CodeWeakPassword
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		return CodeUserNotFound
	case "INVALID_PASSWORD":
		return CodeWrongPassword
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_IDP_RESPONSE", "INVALID_REFRESH_TOKEN", "TOKEN_EXPIRED", "INVALID_ID_TOKEN":
		return CodeInvalidCredential
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return CodeTooManyRequests
	case "USER_DISABLED":
		return CodeUserDisabled
	default:
		return CodeUnknown
	}
}
