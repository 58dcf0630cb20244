package driven

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// SessionVerifier verifies a session credential presented to the server and
// returns the identity it carries.
type SessionVerifier interface {
	Verify(cred domain.SessionCredential) (*domain.UserInfo, error)
}

// SessionIssuer mints session credentials. Only development tooling uses it;
// the host application's login service is out of scope.
type SessionIssuer interface {
	Issue(user domain.UserInfo) (domain.SessionCredential, error)
}

// SessionDecoder reads the identity claim of a credential locally, without
// verifying its signature and without a network call.
type SessionDecoder interface {
	Decode(cred domain.SessionCredential) (*domain.UserInfo, error)
}

// SessionStore holds the local session credential.
type SessionStore interface {
	// Load returns the stored credential, or the zero credential if none.
	Load(ctx context.Context) (domain.SessionCredential, error)

	// Save replaces the stored credential.
	Save(ctx context.Context, cred domain.SessionCredential) error

	// Clear removes the stored credential (logout).
	Clear(ctx context.Context) error
}

// SessionEvent reports a change to the stored credential.
type SessionEvent struct {
	// Present is false when the credential was removed.
	Present bool
	Err     error
}

// SessionWatcher notifies about changes to the stored credential.
// The channel is closed when ctx is done.
type SessionWatcher interface {
	Watch(ctx context.Context) (<-chan SessionEvent, error)
}
