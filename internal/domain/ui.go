package domain

import "time"

// Screen is the top-level view
type Screen string

const (
	ScreenAuth Screen = "auth"
	ScreenMain Screen = "main"
)

// Tab is a panel of the authentication screen
type Tab string

const (
	TabSignup  Tab = "signup"
	TabLogin   Tab = "login"
	TabReset   Tab = "reset"
	TabVerify  Tab = "verify"
	TabSuccess Tab = "success"
)

// Valid reports whether t names a known tab
func (t Tab) Valid() bool {
	switch t {
	case TabSignup, TabLogin, TabReset, TabVerify, TabSuccess:
		return true
	}
	return false
}

// Severity of a notification
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Notification is a transient toast message
type Notification struct {
	ID        uint64    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// FormMessage is the inline message shown under a form
type FormMessage struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// Header is what the navigation bar shows for the signed-in user
type Header struct {
	Username     string `json:"username"`
	Initial      string `json:"initial"`
	PhotoURL     string `json:"photoURL,omitempty"`
	ShowAdminNav bool   `json:"showAdminNav"`
}
