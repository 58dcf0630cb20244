package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect your account from Notion",
	RunE:  runDisconnect,
}

func init() {
	rootCmd.AddCommand(disconnectCmd)
}

func runDisconnect(cmd *cobra.Command, _ []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	loc, err := viewLocation()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	act := env.controller(loc, cmd.ErrOrStderr()).Activate(nil)
	defer act.Teardown()
	act.Start(ctx)
	select {
	case <-act.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if act.Phase() == domain.PhaseUnauthenticated {
		return errNotLoggedIn
	}

	res, err := act.Disconnect(ctx)
	if err != nil {
		return fmt.Errorf("disconnect failed: %s", describeError(err))
	}
	if !res.Success {
		if res.Error != "" {
			return fmt.Errorf("disconnect failed: %s", res.Error)
		}
		return errors.New("disconnect failed")
	}
	cmd.Println("Disconnected from Notion.")
	return nil
}
