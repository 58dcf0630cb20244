package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/tui/views/connection"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// stateBuffer bounds snapshots queued between the controller and the loop.
// The settle message always carries the final snapshot, so dropping
// intermediate ones under pressure loses nothing.
const stateBuffer = 16

// App is the connection TUI following the Elm architecture.
// Every activation it starts models one lifetime of the view; refresh and
// re-login end the current one and start another.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	view *connection.View
	bar  *status.Bar

	activation driving.ConnectionActivation
	generation int
	updates    chan messages.StateChanged
	// stop is closed when the current activation is torn down.
	stop chan struct{}

	sessionEvents <-chan driven.SessionEvent
	cancelWatch   context.CancelFunc

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &App{
		ports:  ports,
		ctx:    context.Background(),
		styles: s,
		keymap: km,
		view:   connection.NewView(s, km),
		bar:    status.NewBar(s, km),
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init starts the first activation and the session watch.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.SetWindowTitle("sercha-connect"),
		a.view.Tick(),
	}
	cmds = append(cmds, a.activate()...)
	if cmd := a.startWatch(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.StateChanged:
		if !a.isCurrent(msg.Generation) {
			return a, nil
		}
		a.apply(msg.State, a.activation.Phase())
		return a, a.waitForState(a.updates, a.stop)

	case messages.ActivationSettled:
		if !a.isCurrent(msg.Generation) {
			return a, nil
		}
		a.apply(msg.State, msg.Phase)
		return a, nil

	case messages.DisconnectCompleted:
		if !a.isCurrent(msg.Generation) {
			return a, nil
		}
		a.view.SetDisconnecting(false)
		if msg.Err != nil {
			logger.Warn("disconnect failed: %v", msg.Err)
			a.view.SetNotice("Disconnect failed: " + describeError(msg.Err))
		} else if msg.Result != nil && !msg.Result.Success {
			a.view.SetNotice("Disconnect failed: " + msg.Result.Error)
		} else {
			a.view.SetNotice("")
		}
		a.apply(a.activation.Snapshot(), a.activation.Phase())
		return a, nil

	case messages.SessionChanged:
		return a.handleSession(msg)

	case messages.SessionWatchEnded:
		a.sessionEvents = nil
		return a, nil

	case messages.ErrorOccurred:
		a.view.SetNotice(describeError(msg.Err))
		return a, nil
	}

	var cmd tea.Cmd
	a.view, cmd = a.view.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case keymap.Matches(msg.String(), a.keymap.Quit):
		a.Close()
		return a, tea.Quit

	case keymap.Matches(msg.String(), a.keymap.Help):
		a.view.ToggleHelp()
		return a, nil

	case keymap.Matches(msg.String(), a.keymap.Refresh):
		a.view.SetNotice("")
		return a, tea.Batch(append(a.activate(), a.view.Tick())...)

	case keymap.Matches(msg.String(), a.keymap.Disconnect):
		st := a.view.State()
		if !st.Connection.IsConnected || a.view.Disconnecting() || a.activation == nil {
			return a, nil
		}
		a.view.SetDisconnecting(true)
		a.bar.SetState(status.StateDisconnecting)
		return a, tea.Batch(a.disconnect(a.generation, a.activation), a.view.Tick())
	}
	return a, nil
}

func (a *App) handleSession(msg messages.SessionChanged) (tea.Model, tea.Cmd) {
	next := a.waitForSession()
	if msg.Err != nil {
		logger.Warn("session watch: %v", msg.Err)
		return a, next
	}
	if !msg.Present {
		// Logout ends the view's lifetime; late results must not land.
		a.teardown()
		a.apply(domain.ViewState{}, domain.PhaseUnauthenticated)
		return a, next
	}
	cmds := append(a.activate(), next, a.view.Tick())
	return a, tea.Batch(cmds...)
}

// activate tears down the current activation and starts a new one.
func (a *App) activate() []tea.Cmd {
	a.teardown()

	a.generation++
	gen := a.generation
	updates := make(chan messages.StateChanged, stateBuffer)
	a.updates = updates
	a.stop = make(chan struct{})

	act := a.ports.Controller.Activate(func(st domain.ViewState) {
		select {
		case updates <- messages.StateChanged{Generation: gen, State: st}:
		default:
		}
	})
	a.activation = act
	a.view.SetDisconnecting(false)
	a.apply(act.Snapshot(), act.Phase())

	act.Start(a.ctx)
	return []tea.Cmd{a.waitForState(updates, a.stop), a.waitForSettled(gen, act)}
}

// isCurrent reports whether gen is the live activation.
func (a *App) isCurrent(gen int) bool {
	return gen == a.generation && a.stop != nil
}

func (a *App) teardown() {
	if a.activation != nil {
		a.activation.Teardown()
	}
	if a.stop != nil {
		close(a.stop)
		a.stop = nil
	}
}

// Close ends the current activation and the session watch.
func (a *App) Close() {
	a.teardown()
	if a.cancelWatch != nil {
		a.cancelWatch()
		a.cancelWatch = nil
	}
}

func (a *App) apply(st domain.ViewState, phase domain.Phase) {
	a.view.SetState(st, phase)
	if a.view.Disconnecting() {
		a.bar.SetState(status.StateDisconnecting)
		return
	}
	a.bar.SetState(status.FromView(st, phase))
	a.bar.SetMessage(st.Error)
}

func (a *App) waitForState(updates <-chan messages.StateChanged, stop <-chan struct{}) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		select {
		case msg := <-updates:
			return msg
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (a *App) waitForSettled(gen int, act driving.ConnectionActivation) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		select {
		case <-act.Done():
			return messages.ActivationSettled{Generation: gen, State: act.Snapshot(), Phase: act.Phase()}
		case <-ctx.Done():
			return nil
		}
	}
}

func (a *App) disconnect(gen int, act driving.ConnectionActivation) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		res, err := act.Disconnect(ctx)
		return messages.DisconnectCompleted{Generation: gen, Result: res, Err: err}
	}
}

func (a *App) startWatch() tea.Cmd {
	if a.ports.Sessions == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(a.ctx)
	events, err := a.ports.Sessions.Watch(ctx)
	if err != nil {
		cancel()
		logger.Warn("watching session: %v", err)
		return nil
	}
	a.cancelWatch = cancel
	a.sessionEvents = events
	return a.waitForSession()
}

func (a *App) waitForSession() tea.Cmd {
	events := a.sessionEvents
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return messages.SessionWatchEnded{}
		}
		return messages.SessionChanged{Present: ev.Present, Err: ev.Err}
	}
}

// View renders the current state.
func (a *App) View() string {
	a.bar.SetWidth(a.width)
	return lipgloss.JoinVertical(lipgloss.Left, a.view.View(), "", a.bar.View())
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.view.SetDimensions(width, height)
	a.bar.SetWidth(width)
}

// Ready reports whether the terminal size is known.
func (a *App) Ready() bool {
	return a.ready
}

// State returns the displayed view state.
func (a *App) State() domain.ViewState {
	return a.view.State()
}

// Phase returns the displayed phase.
func (a *App) Phase() domain.Phase {
	return a.view.Phase()
}

// Generation returns the number of activations started so far.
func (a *App) Generation() int {
	return a.generation
}

// StatusState returns the status bar state.
func (a *App) StatusState() status.State {
	return a.bar.State()
}

// Notice returns the notice shown under the card.
func (a *App) Notice() string {
	return a.view.Notice()
}

func describeError(err error) string {
	var perr *domain.ProviderError
	var terr *domain.TransportError
	switch {
	case errors.As(err, &perr):
		return perr.Message()
	case errors.As(err, &terr) && terr.Message != "":
		return terr.Message
	default:
		return err.Error()
	}
}
