package domain

import "fmt"

// OAuth error codes returned by providers.
const (
	OAuthErrorInvalidRequest = "invalid_request"
	OAuthErrorInvalidGrant   = "invalid_grant"
	OAuthErrorInvalidClient  = "invalid_client"
	OAuthErrorServerError    = "server_error"
)

// ProviderError is an error reported by the OAuth provider itself, as opposed
// to a transport failure on the way there.
type ProviderError struct {
	// Code is the provider's error code (e.g. "invalid_grant").
	Code string
	// Description is the provider's human-readable explanation, if any.
	Description string
	// StatusCode is the HTTP status of the provider response, if known.
	StatusCode int
}

func (e *ProviderError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("provider error: %s - %s", e.Code, e.Description)
	case e.Code != "":
		return "provider error: " + e.Code
	case e.Description != "":
		return "provider error: " + e.Description
	default:
		return fmt.Sprintf("provider error: status %d", e.StatusCode)
	}
}

// Message returns the most specific text the provider gave: the description
// when present, otherwise the code.
func (e *ProviderError) Message() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}
