package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// errorResponse is the envelope of every failed request.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Best-effort: the client may have gone away.
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps a service error to a status code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		logger.Debug("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, msg)
}

// upstreamUnavailable is reported when the provider failed without a message.
const upstreamUnavailable = "Unable to reach Notion"

func classify(err error) (int, string) {
	var terr *domain.TransportError
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, domain.ErrAuthExpired):
		return http.StatusUnauthorized, "session expired"
	case errors.Is(err, domain.ErrAuthInvalid):
		return http.StatusUnauthorized, "invalid session"
	case errors.Is(err, domain.ErrIdentityMismatch):
		return http.StatusForbidden, "identity does not match session"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrNotImplemented):
		return http.StatusServiceUnavailable, "connection provider not configured"
	case errors.As(err, &terr):
		if terr.Message == "" {
			return http.StatusBadGateway, upstreamUnavailable
		}
		return http.StatusBadGateway, terr.Message
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
