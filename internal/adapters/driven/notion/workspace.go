// Package notion reads workspace details from the Notion API.
package notion

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jomei/notionapi"

	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Ensure WorkspaceLookup implements the interface.
var _ driven.WorkspaceLookup = (*WorkspaceLookup)(nil)

// WorkspaceLookup looks up the workspace a freshly issued token belongs to.
type WorkspaceLookup struct {
	httpClient *http.Client
	baseURL    string
}

// NewWorkspaceLookup creates a workspace lookup. httpClient may be nil.
// A non-empty baseURL replaces https://api.notion.com.
func NewWorkspaceLookup(httpClient *http.Client, baseURL string) *WorkspaceLookup {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &WorkspaceLookup{httpClient: httpClient, baseURL: baseURL}
}

// WorkspaceName returns the name of the workspace the token's bot user
// is installed in.
func (p *WorkspaceLookup) WorkspaceName(ctx context.Context, accessToken string) (string, error) {
	client := notionapi.NewClient(notionapi.Token(accessToken), notionapi.WithHTTPClient(p.client()))

	me, err := client.User.Me(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching bot user: %w", err)
	}
	if me.Bot == nil {
		return "", nil
	}
	return me.Bot.WorkspaceName, nil
}

func (p *WorkspaceLookup) client() *http.Client {
	if p.baseURL == "" {
		return p.httpClient
	}
	clone := *p.httpClient
	clone.Transport = &rewriteTransport{base: p.baseURL, next: p.httpClient.Transport}
	return &clone
}
