// Package session resolves identity changes into what the storefront shows
// and runs the email verification gate.
package session

import (
	"sync"
	"time"

	"storefront/internal/domain"
)

// State is the view state of one storefront session. It is owned by the
// Resolver and handed to the catalog, cart and admin services by pointer.
type State struct {
	mu  sync.RWMutex
	now func() time.Time

	notificationTTL  time.Duration
	nextNotification uint64

	screen        domain.Screen
	tab           domain.Tab
	user          *domain.CurrentUserView
	header        domain.Header
	verifyEmail   string
	formMessages  map[domain.Tab]domain.FormMessage
	notifications []domain.Notification
	products      []domain.Product
	cart          domain.Cart
}

// NewState creates the initial state: auth screen on the signup tab
func NewState(notificationTTL time.Duration) *State {
	return &State{
		now:             time.Now,
		notificationTTL: notificationTTL,
		screen:          domain.ScreenAuth,
		tab:             domain.TabSignup,
		formMessages:    make(map[domain.Tab]domain.FormMessage),
	}
}

// ShowAuth switches to the authentication screen on tab
func (s *State) ShowAuth(tab domain.Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen = domain.ScreenAuth
	s.tab = tab
}

// ShowMain switches to the main application
func (s *State) ShowMain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen = domain.ScreenMain
	s.formMessages = make(map[domain.Tab]domain.FormMessage)
}

// SetTab changes the auth tab and clears the message left on it
func (s *State) SetTab(tab domain.Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tab = tab
	delete(s.formMessages, tab)
}

func (s *State) Screen() domain.Screen {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screen
}

func (s *State) Tab() domain.Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tab
}

// SetUser replaces the current user view; nil clears it along with the header
func (s *State) SetUser(user *domain.CurrentUserView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.user = nil
		s.header = domain.Header{}
		return
	}
	u := *user
	s.user = &u
}

// User returns a copy of the current user view, or nil
func (s *State) User() *domain.CurrentUserView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *State) SetHeader(h domain.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = h
}

func (s *State) Header() domain.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.header
}

func (s *State) SetVerifyEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifyEmail = email
}

func (s *State) VerifyEmail() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verifyEmail
}

// SetFormMessage sets the inline message under the form on tab
func (s *State) SetFormMessage(tab domain.Tab, message string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formMessages[tab] = domain.FormMessage{Message: message, Success: success}
}

func (s *State) ClearFormMessage(tab domain.Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.formMessages, tab)
}

func (s *State) FormMessage(tab domain.Tab) (domain.FormMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.formMessages[tab]
	return m, ok
}

// Notify queues a toast that expires after the notification TTL
func (s *State) Notify(message string, severity domain.Severity) domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.nextNotification++
	n := domain.Notification{
		ID:        s.nextNotification,
		Message:   message,
		Severity:  severity,
		CreatedAt: now,
		ExpiresAt: now.Add(s.notificationTTL),
	}
	s.notifications = append(s.notifications, n)
	return n
}

// Notifications returns the toasts that have not expired yet
func (s *State) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())
	return append([]domain.Notification(nil), s.notifications...)
}

func (s *State) pruneLocked(now time.Time) {
	kept := s.notifications[:0]
	for _, n := range s.notifications {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	s.notifications = kept
}

func (s *State) SetProducts(products []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append([]domain.Product(nil), products...)
}

func (s *State) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product(nil), s.products...)
}

// Cart returns a copy of the cart
func (s *State) Cart() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

func (s *State) SetCart(cart domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = cart.Clone()
}

// UpdateCart applies fn to the cart under the state lock and returns the result
func (s *State) UpdateCart(fn func(c *domain.Cart)) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cart)
	return s.cart.Clone()
}

// CartView is the cart as shown in the sidebar
type CartView struct {
	Items []domain.CartLine `json:"items"`
	Count int               `json:"count"`
	Total float64           `json:"total"`
}

// NewCartView summarizes a cart
func NewCartView(c domain.Cart) CartView {
	items := c.Lines
	if items == nil {
		items = []domain.CartLine{}
	}
	return CartView{Items: items, Count: c.Count(), Total: c.Total()}
}

// View is a point-in-time snapshot of the session
type View struct {
	Screen         domain.Screen                     `json:"screen"`
	Tab            domain.Tab                        `json:"tab"`
	User           *domain.CurrentUserView           `json:"user"`
	Header         domain.Header                     `json:"header"`
	VerifyEmail    string                            `json:"verifyEmail,omitempty"`
	ResendCooldown int                               `json:"resendCooldownSeconds"`
	Verification   string                            `json:"verification"`
	FormMessages   map[domain.Tab]domain.FormMessage `json:"formMessages"`
	Notifications  []domain.Notification             `json:"notifications"`
	ProductCount   int                               `json:"productCount"`
	Cart           CartView                          `json:"cart"`
}

// Snapshot copies the state into a View
func (s *State) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())

	messages := make(map[domain.Tab]domain.FormMessage, len(s.formMessages))
	for k, v := range s.formMessages {
		messages[k] = v
	}
	v := View{
		Screen:        s.screen,
		Tab:           s.tab,
		Header:        s.header,
		VerifyEmail:   s.verifyEmail,
		FormMessages:  messages,
		Notifications: append([]domain.Notification{}, s.notifications...),
		ProductCount:  len(s.products),
		Cart:          NewCartView(s.cart.Clone()),
	}
	if s.user != nil {
		u := *s.user
		v.User = &u
	}
	return v
}
