package driven

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// TokenExchanger talks to the OAuth provider's endpoints.
type TokenExchanger interface {
	// AuthCodeURL returns the provider authorization URL for the given state.
	AuthCodeURL(state string) string

	// ExchangeCode exchanges an authorization code for a token.
	// Provider rejections are returned as *domain.ProviderError.
	ExchangeCode(ctx context.Context, code string) (*domain.OAuthToken, error)
}

// WorkspaceLookup looks up workspace details with a freshly issued token.
// It is optional; callers treat its failure as non-fatal.
type WorkspaceLookup interface {
	WorkspaceName(ctx context.Context, accessToken string) (string, error)
}
