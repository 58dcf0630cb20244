// Package cli provides the sercha-connect command line interface.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-connect/internal/config"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// version is set at build time.
var version = "dev"

var (
	cfgPath   string
	verbose   bool
	appConfig = config.Default()
)

// errNotLoggedIn is returned by client commands without a session.
var errNotLoggedIn = errors.New("not logged in")

var rootCmd = &cobra.Command{
	Use:   "sercha-connect",
	Short: "Connect your account to a Notion workspace",
	Long: `sercha-connect links a signed-in account to a Notion workspace.

Run 'sercha-connect serve' to host the connection endpoints, then use
'connect', 'status' and 'disconnect' (or the 'tui') from a client with a
stored session.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"config file (default ~/.sercha-connect/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"print debug output to stderr")
}

func loadConfig(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	appConfig = cfg
	return nil
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
