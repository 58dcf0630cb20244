package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/location"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/tui"
	"github.com/custodia-labs/sercha-connect/internal/core/services"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive connection view",
	Long: `Launch a terminal view of your Notion connection.

The view follows the stored session: logging out ends it, logging in again
starts a fresh check.

Controls:
  d - Disconnect
  r - Refresh
  ? - Toggle help
  q - Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// buildTUIApp wires the TUI to the configured server and session store.
func buildTUIApp(cmd *cobra.Command) (*tui.App, error) {
	env, err := newClientEnv()
	if err != nil {
		return nil, err
	}
	loc, err := viewLocation()
	if err != nil {
		return nil, err
	}
	// The view renders the login hint itself; nothing may print over it.
	navigator := location.NavigatorFunc(func(target string) {
		logger.Debug("login required (%s)", target)
	})
	ctrl := services.NewController(env.sessions, loc, navigator, env.api,
		services.ControllerConfig{LoginURL: appConfig.Client.LoginURL})

	app, err := tui.NewApp(&tui.Ports{Controller: ctrl, Sessions: env.store})
	if err != nil {
		return nil, fmt.Errorf("failed to create TUI: %w", err)
	}
	return app.WithContext(commandContext(cmd)), nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	app, err := buildTUIApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
