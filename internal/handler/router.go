package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/container"
	"storefront/internal/middleware"
	apperrors "storefront/pkg/errors"
)

// NewRouter configures the HTTP routes of the storefront
func NewRouter(container *container.Container) *chi.Mux {
	cfg := container.GetConfig()
	log := container.GetLogger()

	r := chi.NewRouter()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Instrument(log))
	r.Use(middleware.CORS(corsConfig, log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	healthHandler := NewHealthHandler(container)
	sessionHandler := NewSessionHandler(container)
	shopHandler := NewShopHandler(container)
	adminHandler := NewAdminHandler(container)

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", sessionHandler.GetSession)
		r.Post("/session/tab", sessionHandler.SetTab)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", sessionHandler.Signup)
			r.Post("/login", sessionHandler.Login)
			r.Post("/password-reset", sessionHandler.ResetPassword)
			r.Post("/verification/resend", sessionHandler.ResendVerification)
			r.Post("/verification/change-email", sessionHandler.ChangeEmail)
			r.Post("/signout", sessionHandler.SignOut)
			r.Get("/google", sessionHandler.GoogleStart)
			r.Get("/google/callback", sessionHandler.GoogleCallback)
		})

		r.Get("/products", shopHandler.ListProducts)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", shopHandler.GetCart)
			r.Post("/items", shopHandler.AddItem)
			r.Patch("/items/{productID}", shopHandler.UpdateItem)
			r.Delete("/items/{productID}", shopHandler.RemoveItem)
			r.Post("/checkout", shopHandler.Checkout)
		})

		adminHandler.RegisterRoutes(r)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeErrorResponse(w, req, log, apperrors.NewNotFoundError("Endpoint not found"))
	})

	log.Info("Router configured successfully")
	return r
}
