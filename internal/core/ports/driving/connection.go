package driving

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// ConnectionService is the server side of the workspace connection.
// Every identity argument comes from a verified session, never from the
// request body alone.
type ConnectionService interface {
	// AuthorizeURL returns the provider authorization URL for the identity.
	// A random state is generated when state is empty.
	AuthorizeURL(ctx context.Context, identity, state string) (string, error)

	// Exchange exchanges a one-time code and persists the connection.
	// A provider rejection is reported in the result, not as an error.
	Exchange(ctx context.Context, identity, code string) (*domain.ExchangeResult, error)

	// Status reports whether the identity has an active connection.
	Status(ctx context.Context, identity string) (*domain.StatusResult, error)

	// Disconnect clears the identity's connection. requested is the
	// client-supplied identity, which must match the session when set.
	Disconnect(ctx context.Context, identity, requested string) (*domain.DisconnectResult, error)
}
