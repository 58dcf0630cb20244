package domain

// OAuthProviderConfig stores OAuth application credentials.
// These are the client credentials from the provider's integration settings.
type OAuthProviderConfig struct {
	// ClientID is the OAuth client ID.
	ClientID string `json:"client_id"`
	// ClientSecret is the OAuth client secret.
	ClientSecret string `json:"client_secret"`
	// Scopes are the OAuth scopes to request. Notion ignores scopes.
	Scopes []string `json:"scopes,omitempty"`
	// AuthURL is the authorization endpoint.
	AuthURL string `json:"auth_url"`
	// TokenURL is the token exchange endpoint.
	TokenURL string `json:"token_url"`
	// RedirectURI is the callback URI registered with the provider.
	RedirectURI string `json:"redirect_uri"`
}

// IsConfigured reports whether enough is set to run an exchange.
func (c *OAuthProviderConfig) IsConfigured() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != "" && c.TokenURL != ""
}
