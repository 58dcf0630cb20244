// Package oauth exchanges authorization codes with the workspace provider.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Notion's public OAuth endpoints.
const (
	NotionAuthURL  = "https://api.notion.com/v1/oauth/authorize"
	NotionTokenURL = "https://api.notion.com/v1/oauth/token"
)

// Ensure Exchanger implements the interface.
var _ driven.TokenExchanger = (*Exchanger)(nil)

// Exchanger performs the authorization-code grant through golang.org/x/oauth2.
type Exchanger struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewExchanger creates an exchanger for the given provider configuration.
// Missing endpoints default to Notion's. httpClient may be nil.
func NewExchanger(cfg domain.OAuthProviderConfig, httpClient *http.Client) *Exchanger {
	if cfg.AuthURL == "" {
		cfg.AuthURL = NotionAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = NotionTokenURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Exchanger{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
				// Notion only accepts client credentials as HTTP basic auth.
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: httpClient,
	}
}

// AuthCodeURL returns the provider consent URL.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.config.AuthCodeURL(state, oauth2.SetAuthURLParam("owner", "user"))
}

// ExchangeCode trades a one-time authorization code for an access token.
// Rejections by the provider are returned as *domain.ProviderError, failures
// to reach it as *domain.TransportError.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (*domain.OAuthToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)

	token, err := e.config.Exchange(ctx, code)
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	return &domain.OAuthToken{
		AccessToken:   token.AccessToken,
		RefreshToken:  token.RefreshToken,
		TokenType:     token.TokenType,
		Expiry:        token.Expiry,
		WorkspaceID:   extraString(token, "workspace_id"),
		WorkspaceName: extraString(token, "workspace_name"),
		BotID:         extraString(token, "bot_id"),
	}, nil
}

func classifyExchangeError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		perr := &domain.ProviderError{
			Code:        rerr.ErrorCode,
			Description: rerr.ErrorDescription,
		}
		if rerr.Response != nil {
			perr.StatusCode = rerr.Response.StatusCode
		}
		if perr.Code == "" && perr.StatusCode >= http.StatusInternalServerError {
			perr.Code = domain.OAuthErrorServerError
		}
		return perr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.TransportError{Op: "token exchange", Message: "Request to Notion timed out", Err: err}
	}
	return &domain.TransportError{
		Op:      "token exchange",
		Message: "Unable to reach Notion",
		Err:     fmt.Errorf("exchanging code: %w", err),
	}
}

// extraString reads a string field the provider added to the token response.
func extraString(token *oauth2.Token, key string) string {
	if v, ok := token.Extra(key).(string); ok {
		return v
	}
	return ""
}
