package middleware

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "storefront/pkg/errors"
	"storefront/pkg/logger"
)

// AdminOnly rejects the request unless authorize passes
func AdminOnly(authorize func() error, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authorize(); err != nil {
				log.Warn("admin access denied", zap.String("path", r.URL.Path), zap.Error(err))
				WriteError(w, r, apperrors.AsAppError(err), log)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes appErr as the JSON error body
func WriteError(w http.ResponseWriter, r *http.Request, appErr *apperrors.AppError, log *logger.Logger) {
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(appErr))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(apperrors.NewErrorResponse(appErr, chimw.GetReqID(r.Context()))); err != nil {
		log.Error("failed to encode error response", zap.Error(err))
	}
}
