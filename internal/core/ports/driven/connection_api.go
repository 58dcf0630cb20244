package driven

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// ExchangeClient calls the token exchange service (POST /connect/token).
type ExchangeClient interface {
	ExchangeCode(ctx context.Context, cred domain.SessionCredential, code string) (*domain.ExchangeResult, error)
}

// StatusClient calls the connection status service (GET /connect/status).
type StatusClient interface {
	Status(ctx context.Context, cred domain.SessionCredential) (*domain.StatusResult, error)
}

// DisconnectClient calls the disconnect service (/connect/disconnect).
type DisconnectClient interface {
	Disconnect(ctx context.Context, cred domain.SessionCredential, email string) (*domain.DisconnectResult, error)
}

// IdentityClient calls the identity-resolution endpoint (GET /auth/me).
type IdentityClient interface {
	Identity(ctx context.Context, cred domain.SessionCredential) (*domain.UserInfo, error)
}

// ConnectionAPI is the full client surface of the connection server.
type ConnectionAPI interface {
	ExchangeClient
	StatusClient
	DisconnectClient
	IdentityClient
}
