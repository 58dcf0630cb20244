package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// Ensure ConnectionService implements the interface.
var _ driving.ConnectionService = (*ConnectionService)(nil)

const (
	// maxCodeLength bounds the authorization codes accepted for exchange.
	maxCodeLength = 4096
	// codeRetention is how long exchanged codes stay in the ledger. It is far
	// longer than a provider code stays valid.
	codeRetention = 24 * time.Hour
)

// ConnectionService owns the server side of a workspace connection:
// the token exchange, the status read, and the disconnect.
type ConnectionService struct {
	store     driven.ConnectionStore
	ledger    driven.CodeLedger
	exchanger driven.TokenExchanger
	lookup    driven.WorkspaceLookup
	now       func() time.Time
}

// NewConnectionService creates a new connection service.
// lookup may be nil.
func NewConnectionService(
	store driven.ConnectionStore,
	ledger driven.CodeLedger,
	exchanger driven.TokenExchanger,
	lookup driven.WorkspaceLookup,
) *ConnectionService {
	return &ConnectionService{
		store:     store,
		ledger:    ledger,
		exchanger: exchanger,
		lookup:    lookup,
		now:       time.Now,
	}
}

// AuthorizeURL returns the provider authorization URL.
func (s *ConnectionService) AuthorizeURL(_ context.Context, identity, state string) (string, error) {
	if s.exchanger == nil {
		return "", domain.ErrNotImplemented
	}
	if domain.NormalizeIdentity(identity) == "" {
		return "", domain.ErrAuthRequired
	}
	if state == "" {
		generated, err := GenerateState()
		if err != nil {
			return "", fmt.Errorf("generating state: %w", err)
		}
		state = generated
	}
	return s.exchanger.AuthCodeURL(state), nil
}

// Exchange exchanges a one-time authorization code for a provider token and
// persists the connection for the identity.
//
// The code is claimed in the ledger before the provider is called, so a code
// presented twice (another tab, a resubmitted form) fails with invalid_grant
// even if the provider would have accepted it.
func (s *ConnectionService) Exchange(ctx context.Context, identity, code string) (*domain.ExchangeResult, error) {
	if s.store == nil || s.ledger == nil || s.exchanger == nil {
		return nil, domain.ErrNotImplemented
	}
	identity = domain.NormalizeIdentity(identity)
	if identity == "" {
		return nil, domain.ErrAuthRequired
	}
	code = strings.TrimSpace(code)
	if code == "" || len(code) > maxCodeLength {
		return nil, fmt.Errorf("authorization code: %w", domain.ErrInvalidInput)
	}

	logger.Section("Token Exchange")
	logger.Debug("identity=%s code=%s", identity, logger.Redact(code))

	entry := domain.ExchangedCode{
		CodeHash:  domain.HashCode(code),
		Identity:  identity,
		CreatedAt: s.now().UTC(),
	}
	if err := s.ledger.Claim(ctx, entry); err != nil {
		if errors.Is(err, domain.ErrCodeAlreadyExchanged) {
			logger.Warn("replayed authorization code for %s", identity)
			return &domain.ExchangeResult{Error: domain.OAuthErrorInvalidGrant}, nil
		}
		return nil, fmt.Errorf("claiming code: %w", err)
	}
	s.pruneLedger(ctx)

	token, err := s.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		var perr *domain.ProviderError
		if errors.As(err, &perr) {
			logger.Warn("provider rejected code for %s: %v", identity, perr)
			msg := perr.Code
			if msg == "" {
				msg = perr.Description
			}
			return &domain.ExchangeResult{Error: msg}, nil
		}
		return nil, fmt.Errorf("exchanging code: %w", err)
	}
	if token == nil || token.AccessToken == "" {
		return &domain.ExchangeResult{Error: "provider returned no access token"}, nil
	}

	workspaceName := token.WorkspaceName
	if workspaceName == "" && s.lookup != nil {
		name, lookupErr := s.lookup.WorkspaceName(ctx, token.AccessToken)
		if lookupErr != nil {
			logger.Warn("workspace lookup failed: %v", lookupErr)
		} else {
			workspaceName = name
		}
	}
	reference := token.WorkspaceReference()
	if reference == "" {
		reference = workspaceName
	}

	record := domain.ConnectionRecord{
		Identity:           identity,
		WorkspaceReference: reference,
		WorkspaceName:      workspaceName,
		BotID:              token.BotID,
		Connected:          true,
		AccessToken:        token.AccessToken,
		TokenType:          token.TokenType,
	}
	existing, err := s.store.GetByIdentity(ctx, identity)
	switch {
	case err == nil:
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("loading connection: %w", err)
	}

	if err := s.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("saving connection: %w", err)
	}
	logger.Info("connected %s to workspace %s", identity, reference)

	return &domain.ExchangeResult{
		Success:            true,
		WorkspaceReference: reference,
		WorkspaceName:      workspaceName,
	}, nil
}

// pruneLedger forgets codes older than codeRetention. Failures are logged.
func (s *ConnectionService) pruneLedger(ctx context.Context) {
	removed, err := s.ledger.Prune(ctx, s.now().Add(-codeRetention))
	if err != nil {
		logger.Warn("pruning exchanged codes: %v", err)
		return
	}
	if removed > 0 {
		logger.Debug("pruned %d exchanged codes", removed)
	}
}

// Status reports whether the identity has an active connection.
// It never writes.
func (s *ConnectionService) Status(ctx context.Context, identity string) (*domain.StatusResult, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	identity = domain.NormalizeIdentity(identity)
	if identity == "" {
		return nil, domain.ErrAuthRequired
	}

	record, err := s.store.GetByIdentity(ctx, identity)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.StatusResult{Success: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading connection: %w", err)
	}
	return &domain.StatusResult{Success: true, Connected: record.IsActive()}, nil
}

// Disconnect clears the identity's connection. It is idempotent.
//
// The session identity is authoritative. A client-supplied identity is only
// accepted when it names the same user.
func (s *ConnectionService) Disconnect(ctx context.Context, identity, requested string) (*domain.DisconnectResult, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	identity = domain.NormalizeIdentity(identity)
	if identity == "" {
		return nil, domain.ErrAuthRequired
	}
	if requested = domain.NormalizeIdentity(requested); requested != "" && requested != identity {
		logger.Warn("disconnect for %s refused for session %s", requested, identity)
		return nil, domain.ErrIdentityMismatch
	}

	if err := s.store.MarkDisconnected(ctx, identity); err != nil {
		return nil, fmt.Errorf("disconnecting: %w", err)
	}
	logger.Info("disconnected %s", identity)
	return &domain.DisconnectResult{Success: true}, nil
}
