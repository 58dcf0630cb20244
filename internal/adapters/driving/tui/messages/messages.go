// Package messages defines Bubbletea message types for the TUI.
// Messages carry controller and session events into the Elm loop.
package messages

import (
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// StateChanged carries a snapshot published by an activation.
// Generation identifies the activation so stale snapshots can be dropped.
type StateChanged struct {
	Generation int
	State      domain.ViewState
}

// ActivationSettled is sent once an activation's primary branch has settled.
type ActivationSettled struct {
	Generation int
	State      domain.ViewState
	Phase      domain.Phase
}

// DisconnectCompleted carries the outcome of a disconnect.
type DisconnectCompleted struct {
	Generation int
	Result     *domain.DisconnectResult
	Err        error
}

// SessionChanged reports that the stored session credential changed.
type SessionChanged struct {
	Present bool
	Err     error
}

// SessionWatchEnded is sent when the session watch channel closes.
type SessionWatchEnded struct{}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}
