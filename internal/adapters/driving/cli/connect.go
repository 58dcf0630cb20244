package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/location"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/oauth"
	"github.com/custodia-labs/sercha-connect/internal/core/services"
)

// connectTimeout bounds the wait for the provider redirect.
var connectTimeout = 5 * time.Minute

// openBrowser opens the authorization page. Tests replace it.
var openBrowser = oauth.OpenBrowser

var connectNoBrowser bool

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect your account to a Notion workspace",
	Long: `Open Notion's authorization page and complete the connection.

A local callback server receives Notion's redirect; the authorization code is
removed from the received address and exchanged exactly once.`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().BoolVar(&connectNoBrowser, "no-browser", false, "print the authorization link instead of opening it")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, _ []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	cred, _, err := env.sessions.Current(ctx)
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	if cred.IsZero() {
		location.NewPrintNavigator(cmd.ErrOrStderr()).RedirectToLogin(appConfig.Client.LoginURL)
		return errNotLoggedIn
	}

	state, err := services.GenerateState()
	if err != nil {
		return fmt.Errorf("generating state: %w", err)
	}
	port, err := oauth.PortFromRedirectURI(appConfig.Client.RedirectURI)
	if err != nil {
		return err
	}

	callback := oauth.NewCallbackServer(port, state)
	if err := callback.Start(); err != nil {
		return err
	}
	defer func() { _ = callback.Stop() }()

	link, err := env.api.AuthorizeLink(ctx, cred, state)
	if err != nil {
		return fmt.Errorf("requesting authorization link: %s", describeError(err))
	}

	cmd.Println("Authorize sercha-connect in Notion:")
	cmd.Printf("  %s\n", link)
	if !connectNoBrowser {
		if err := openBrowser(link); err != nil {
			cmd.Println("Could not open a browser; open the link above manually.")
		}
	}
	cmd.Println("Waiting for Notion to redirect back...")

	waitCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	redirect, err := callback.WaitForRedirect(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.New("timed out waiting for the Notion redirect")
		}
		return err
	}

	loc, err := location.New(redirect.String())
	if err != nil {
		return err
	}
	st, err := runActivation(cmd, env.controller(loc, cmd.ErrOrStderr()), false)
	if err != nil {
		return err
	}
	if !st.Connection.IsConnected {
		return errors.New("connection failed")
	}
	return nil
}
