// Package status provides the status bar component for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// State is what the status bar reports on its left side.
type State string

const (
	StateLoading       State = "loading"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateDisconnected  State = "disconnected"
	StateSignedOut     State = "signed_out"
	StateDisconnecting State = "disconnecting"
	StateError         State = "error"
)

// FromView derives the bar state from a controller snapshot and phase.
func FromView(st domain.ViewState, phase domain.Phase) State {
	switch {
	case phase == domain.PhaseUnauthenticated:
		return StateSignedOut
	case st.IsConnecting:
		return StateConnecting
	case st.IsLoading:
		return StateLoading
	case st.Error != "":
		return StateError
	case st.Connection.IsConnected:
		return StateConnected
	default:
		return StateDisconnected
	}
}

// Bar displays the connection status and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{
		styles: s,
		keymap: km,
		state:  StateLoading,
		width:  80,
	}
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}
	return s.styles.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (s *Bar) renderLeft() string {
	switch s.state {
	case StateLoading:
		return s.styles.Muted.Render("Checking connection...")
	case StateConnecting:
		return s.styles.Notice.Render("Connecting to Notion...")
	case StateDisconnecting:
		return s.styles.Notice.Render("Disconnecting...")
	case StateConnected:
		return s.styles.Value.Render("Connected")
	case StateSignedOut:
		return s.styles.Error.Render("Not logged in")
	case StateError:
		if s.message != "" {
			return s.styles.Error.Render(fmt.Sprintf("Error: %s", s.message))
		}
		return s.styles.Error.Render("Error")
	}
	return s.styles.Muted.Render("Not connected")
}

func (s *Bar) renderRight() string {
	bindings := s.keymap.ShortHelp()
	if s.state == StateConnected {
		bindings = s.keymap.ConnectedHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets the error message shown in StateError.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	if width > 0 {
		s.width = width
	}
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Hints returns the bindings currently advertised.
func (s *Bar) Hints() []key.Binding {
	if s.state == StateConnected {
		return s.keymap.ConnectedHelp()
	}
	return s.keymap.ShortHelp()
}
