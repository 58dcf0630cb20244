package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// requestIDHeader carries the request id back to the caller.
const requestIDHeader = "X-Request-ID"

// requireSession verifies the bearer credential and attaches its user.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil {
			writeServiceError(w, r, domain.ErrNotImplemented)
			return
		}
		token := extractBearer(r)
		if token == "" {
			writeServiceError(w, r, domain.ErrAuthRequired)
			return
		}
		user, err := s.verifier.Verify(domain.SessionCredential(token))
		if err != nil {
			if !errors.Is(err, domain.ErrAuthExpired) && !errors.Is(err, domain.ErrNotImplemented) {
				err = domain.ErrAuthInvalid
			}
			writeServiceError(w, r, err)
			return
		}
		if !user.HasIdentity() {
			writeServiceError(w, r, domain.ErrAuthInvalid)
			return
		}
		next(w, r.WithContext(withUser(r.Context(), user)))
	}
}

// extractBearer returns the token of an "Authorization: Bearer" header.
func extractBearer(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests tags each request with an id and logs its outcome.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		logger.Info("%s %s -> %d (%s) id=%s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond), id)
	})
}
