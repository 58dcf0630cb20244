// Package tui provides an interactive terminal view of the Notion connection.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
)

// Ports aggregates what the TUI consumes.
type Ports struct {
	// Controller creates one activation per view lifetime.
	Controller driving.ConnectionController

	// Sessions, if set, is watched so that a logout tears the view down
	// and a new login starts a fresh activation.
	Sessions driven.SessionWatcher
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Controller == nil {
		return ErrMissingController
	}
	return nil
}
