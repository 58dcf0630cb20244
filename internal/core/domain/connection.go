package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ConnectionRecord is the server-persisted fact of whether an identity has an
// active link to an external workspace. It is keyed by Identity and is the
// durable source of truth for connection state.
type ConnectionRecord struct {
	// ID is the unique identifier (UUID).
	ID string `json:"id"`
	// Identity is the normalised email of the owning user.
	Identity string `json:"identity"`

	// WorkspaceReference identifies the connected workspace at the provider
	// (Notion's workspace_id).
	WorkspaceReference string `json:"workspace_reference"`
	// WorkspaceName is the provider's display name for the workspace.
	WorkspaceName string `json:"workspace_name,omitempty"`
	// BotID is the provider's integration identifier, when reported.
	BotID string `json:"bot_id,omitempty"`

	// Connected is false once the identity has disconnected.
	Connected bool `json:"connected"`

	// AccessToken is the long-lived provider credential. Cleared on disconnect.
	AccessToken string `json:"-"`
	// TokenType is typically "bearer".
	TokenType string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the record represents a usable connection.
func (r *ConnectionRecord) IsActive() bool {
	return r != nil && r.Connected && r.AccessToken != ""
}

// Freshness tags where the view's copy of the connection came from, so the
// precedence between a local guess and the server's answer is explicit.
type Freshness int

const (
	// FreshnessUnknown means no answer has been received yet.
	FreshnessUnknown Freshness = iota
	// FreshnessOptimistic means the value follows from a just-completed
	// exchange and has not been confirmed by a status check.
	FreshnessOptimistic
	// FreshnessAuthoritative means the value came from the status service.
	FreshnessAuthoritative
	// FreshnessLocal means the view applied the value itself (e.g. after a
	// disconnect).
	FreshnessLocal
)

// String returns a lowercase name for the freshness.
func (f Freshness) String() string {
	switch f {
	case FreshnessOptimistic:
		return "optimistic"
	case FreshnessAuthoritative:
		return "authoritative"
	case FreshnessLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Connection is the view's copy of the connection state.
type Connection struct {
	// Email is the workspace reference or the known identity when connected,
	// empty otherwise.
	Email       string    `json:"email"`
	IsConnected bool      `json:"isConnected"`
	Freshness   Freshness `json:"-"`
}

// Disconnected returns the zero connection with the given freshness.
func Disconnected(f Freshness) Connection {
	return Connection{Freshness: f}
}

// ExchangedCode is a ledger entry recording that an authorization code was
// presented to the provider. Only the hash of the code is stored.
type ExchangedCode struct {
	CodeHash  string
	Identity  string
	CreatedAt time.Time
}

// HashCode returns the ledger key for an authorization code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
