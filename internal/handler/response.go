package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/middleware"
	apperrors "storefront/pkg/errors"
	"storefront/pkg/logger"
)

const maxBodyBytes = 1 << 20

// respondJSON writes data as a JSON response
func respondJSON(w http.ResponseWriter, log *logger.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode response", zap.Error(err))
	}
}

// writeErrorResponse writes err as the JSON error body
func writeErrorResponse(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	middleware.WriteError(w, r, apperrors.AsAppError(err), log)
}

// decodeJSON reads the request body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.NewValidationError("Invalid request body.", map[string]interface{}{"reason": err.Error()})
	}
	return nil
}
