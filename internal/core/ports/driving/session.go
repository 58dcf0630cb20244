package driving

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// SessionService manages the local session credential.
type SessionService interface {
	// Current returns the stored credential and its locally decoded identity.
	// The identity is nil when decoding fails.
	Current(ctx context.Context) (domain.SessionCredential, *domain.UserInfo, error)

	// Login stores a credential after checking it can be decoded.
	Login(ctx context.Context, cred domain.SessionCredential) (*domain.UserInfo, error)

	// Logout removes the stored credential.
	Logout(ctx context.Context) error
}
