// Package connection renders the Notion connection card.
package connection

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// View shows the account, the connection status, and any error of one
// controller activation.
type View struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	spinner spinner.Model
	help    help.Model

	state         domain.ViewState
	phase         domain.Phase
	disconnecting bool
	notice        string
	showHelp      bool

	width  int
	height int
}

// NewView creates a connection view.
func NewView(s *styles.Styles, km *keymap.KeyMap) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Notice

	return &View{
		styles:  s,
		keymap:  km,
		spinner: sp,
		help:    help.New(),
		state:   domain.ViewState{IsLoading: true},
		phase:   domain.PhaseInit,
		width:   80,
		height:  24,
	}
}

// Tick starts the spinner.
func (v *View) Tick() tea.Cmd {
	return v.spinner.Tick
}

// Update advances the spinner while something is in flight.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	if tick, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(tick)
		return v, cmd
	}
	return v, nil
}

// SetState replaces the displayed snapshot.
func (v *View) SetState(st domain.ViewState, phase domain.Phase) {
	v.state = st
	v.phase = phase
}

// State returns the displayed snapshot.
func (v *View) State() domain.ViewState {
	return v.state
}

// Phase returns the displayed phase.
func (v *View) Phase() domain.Phase {
	return v.phase
}

// SetDisconnecting marks a disconnect as in flight.
func (v *View) SetDisconnecting(b bool) {
	v.disconnecting = b
}

// Disconnecting reports whether a disconnect is in flight.
func (v *View) Disconnecting() bool {
	return v.disconnecting
}

// SetNotice shows a one-line message under the card.
func (v *View) SetNotice(msg string) {
	v.notice = msg
}

// Notice returns the current notice.
func (v *View) Notice() string {
	return v.notice
}

// ToggleHelp shows or hides the full key help.
func (v *View) ToggleHelp() {
	v.showHelp = !v.showHelp
}

// ShowingHelp reports whether the full help is shown.
func (v *View) ShowingHelp() bool {
	return v.showHelp
}

// SetDimensions sets the available space.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.help.Width = width
}

// Busy reports whether the spinner should run.
func (v *View) Busy() bool {
	return v.state.IsLoading || v.state.IsConnecting || v.disconnecting
}

// View renders the card.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Notion connection"))
	b.WriteString("\n\n")
	b.WriteString(v.row("Account", v.account()))
	b.WriteString("\n")
	b.WriteString(v.row("Status", v.badge()))
	if ws := v.state.Connection.Email; v.state.Connection.IsConnected && ws != "" {
		b.WriteString("\n")
		b.WriteString(v.row("Linked", v.styles.Value.Render(ws)))
	}
	if v.state.Error != "" {
		b.WriteString("\n\n")
		b.WriteString(v.styles.Error.Render(v.state.Error))
	}
	if v.notice != "" {
		b.WriteString("\n\n")
		b.WriteString(v.styles.Notice.Render(v.notice))
	}
	if v.phase == domain.PhaseUnauthenticated {
		b.WriteString("\n\n")
		b.WriteString(v.styles.Muted.Render("Log in, then run 'sercha-connect session set'."))
	} else if !v.state.Connection.IsConnected && !v.Busy() {
		b.WriteString("\n\n")
		b.WriteString(v.styles.Muted.Render("Run 'sercha-connect connect' to link a workspace."))
	}

	card := v.styles.Panel.Render(b.String())
	if v.showHelp {
		return lipgloss.JoinVertical(lipgloss.Left, card, v.help.FullHelpView(v.keymap.FullHelp()))
	}
	return card
}

func (v *View) row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, v.styles.Label.Render(label), value)
}

func (v *View) account() string {
	if v.state.UserInfo.HasIdentity() {
		return v.styles.Value.Render(v.state.UserInfo.Email)
	}
	return v.styles.Muted.Render("unknown")
}

func (v *View) badge() string {
	switch {
	case v.disconnecting:
		return v.spinner.View() + " " + v.styles.BadgePending.Render("disconnecting")
	case v.state.IsConnecting:
		return v.spinner.View() + " " + v.styles.BadgePending.Render("connecting")
	case v.state.IsLoading:
		return v.spinner.View() + " " + v.styles.BadgePending.Render("checking")
	case v.state.Connection.IsConnected:
		return v.styles.BadgeConnected.Render("connected")
	default:
		return v.styles.BadgeDisconnected.Render("not connected")
	}
}
