package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// maxRequestBytes bounds request bodies.
const maxRequestBytes = 64 << 10

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the connection endpoints.
type Server struct {
	connections driving.ConnectionService
	verifier    driven.SessionVerifier
	limiter     *RateLimiter
	health      Pinger
}

// New creates a server. limiter and health may be nil.
func New(
	connections driving.ConnectionService,
	verifier driven.SessionVerifier,
	limiter *RateLimiter,
	health Pinger,
) *Server {
	return &Server{
		connections: connections,
		verifier:    verifier,
		limiter:     limiter,
		health:      health,
	}
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /connect/token", s.requireSession(s.handleToken))
	mux.HandleFunc("GET /connect/status", s.requireSession(s.handleStatus))
	mux.HandleFunc("GET /connect/disconnect", s.requireSession(s.handleDisconnect))
	mux.HandleFunc("POST /connect/disconnect", s.requireSession(s.handleDisconnect))
	mux.HandleFunc("GET /connect/authorize", s.requireSession(s.handleAuthorize))
	mux.HandleFunc("GET /auth/me", s.requireSession(s.handleMe))
	return logRequests(mux)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	logger.Info("listening on %s", listener.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			logger.Error("health check: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type tokenRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	if !s.limiter.Allow(user.Email) {
		writeServiceError(w, r, domain.ErrRateLimited)
		return
	}

	var req tokenRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	res, err := s.connections.Exchange(r.Context(), user.Email, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	res, err := s.connections.Status(r.Context(), user.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type disconnectRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	requested := r.URL.Query().Get("email")
	if r.Method == http.MethodPost {
		var req disconnectRequest
		if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email != "" {
			requested = req.Email
		}
	}

	res, err := s.connections.Disconnect(r.Context(), user.Email, requested)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type authorizeResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	target, err := s.connections.AuthorizeURL(r.Context(), user.Email, r.URL.Query().Get("state"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, authorizeResponse{URL: target})
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

type meResponse struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, meResponse{
		Email:   user.Email,
		Name:    user.Name,
		Subject: user.Subject,
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	return dec.Decode(v)
}
