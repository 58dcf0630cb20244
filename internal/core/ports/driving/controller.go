package driving

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// ConnectionActivation is one activation of the connection state machine,
// scoped to one lifetime of a consuming view.
type ConnectionActivation interface {
	// Start runs the setup routine. Calling it again is a no-op.
	Start(ctx context.Context)

	// Teardown marks the owning view as gone. Pending results are dropped.
	Teardown()

	// Snapshot returns the current view state.
	Snapshot() domain.ViewState

	// Phase returns the current state machine phase.
	Phase() domain.Phase

	// SetConnection applies a connection the view obtained itself
	// (e.g. from the disconnect service).
	SetConnection(next domain.Connection)

	// Disconnect calls the disconnect service for the current identity and
	// applies the result on success.
	Disconnect(ctx context.Context) (*domain.DisconnectResult, error)

	// Done is closed once the exchange or status branch has settled or the
	// activation ended early.
	Done() <-chan struct{}
}

// ConnectionController creates activations.
type ConnectionController interface {
	Activate(observer func(domain.ViewState)) ConnectionActivation
}
