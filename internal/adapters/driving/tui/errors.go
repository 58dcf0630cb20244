package tui

import "errors"

// ErrMissingController is returned when no connection controller is provided.
var ErrMissingController = errors.New("tui: connection controller is required")

// ErrInvalidPorts is returned when ports validation fails.
var ErrInvalidPorts = errors.New("tui: invalid ports configuration")
