package domain

import "time"

// OAuthToken represents the provider credential returned by a code exchange,
// together with the workspace details Notion reports alongside it.
type OAuthToken struct {
	// AccessToken is the bearer token for API access.
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain new access tokens.
	RefreshToken string `json:"refresh_token,omitempty"`
	// TokenType is typically "bearer".
	TokenType string `json:"token_type"`
	// Expiry is when the access token expires. Notion tokens do not expire.
	Expiry time.Time `json:"expiry,omitempty"`

	// WorkspaceID is the provider's identifier for the authorised workspace.
	WorkspaceID string `json:"workspace_id,omitempty"`
	// WorkspaceName is the display name of the authorised workspace.
	WorkspaceName string `json:"workspace_name,omitempty"`
	// BotID identifies the integration installation.
	BotID string `json:"bot_id,omitempty"`
}

// IsExpired returns true if the token has expired.
func (t *OAuthToken) IsExpired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return time.Now().After(t.Expiry)
}

// WorkspaceReference returns the best identifier for the workspace:
// its ID, falling back to its name.
func (t *OAuthToken) WorkspaceReference() string {
	if t.WorkspaceID != "" {
		return t.WorkspaceID
	}
	return t.WorkspaceName
}
