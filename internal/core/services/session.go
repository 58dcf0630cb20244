package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// Ensure SessionService implements the interface.
var _ driving.SessionService = (*SessionService)(nil)

// SessionService resolves the local session credential and the identity it
// carries. Decoding happens locally so an identity is available before any
// network round trip completes.
type SessionService struct {
	store   driven.SessionStore
	decoder driven.SessionDecoder
}

// NewSessionService creates a new session service.
func NewSessionService(store driven.SessionStore, decoder driven.SessionDecoder) *SessionService {
	return &SessionService{
		store:   store,
		decoder: decoder,
	}
}

// Current returns the stored credential and its decoded identity.
func (s *SessionService) Current(ctx context.Context) (domain.SessionCredential, *domain.UserInfo, error) {
	if s.store == nil {
		return "", nil, domain.ErrNotImplemented
	}
	cred, err := s.store.Load(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("loading session: %w", err)
	}
	if cred.IsZero() {
		return "", nil, nil
	}
	return cred, s.ResolveIdentity(cred), nil
}

// ResolveIdentity decodes the identity claim of a credential. It is best
// effort: a credential that cannot be decoded yields nil.
func (s *SessionService) ResolveIdentity(cred domain.SessionCredential) *domain.UserInfo {
	if s.decoder == nil || cred.IsZero() {
		return nil
	}
	info, err := s.decoder.Decode(cred)
	if err != nil {
		logger.Debug("session decode failed: %v", err)
		return nil
	}
	if !info.HasIdentity() {
		logger.Debug("session credential carries no email claim")
		return nil
	}
	return info
}

// Login stores a credential after checking it can be decoded.
func (s *SessionService) Login(ctx context.Context, cred domain.SessionCredential) (*domain.UserInfo, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	if cred.IsZero() {
		return nil, domain.ErrInvalidInput
	}
	info := s.ResolveIdentity(cred)
	if info == nil {
		return nil, fmt.Errorf("decoding session: %w", domain.ErrAuthInvalid)
	}
	if info.IsExpired() {
		return nil, domain.ErrAuthExpired
	}
	if err := s.store.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return info, nil
}

// Logout removes the stored credential.
func (s *SessionService) Logout(ctx context.Context) error {
	if s.store == nil {
		return domain.ErrNotImplemented
	}
	return s.store.Clear(ctx)
}
