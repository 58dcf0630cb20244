package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether your account is connected to Notion",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the view state as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	loc, err := viewLocation()
	if err != nil {
		return err
	}
	_, err = runActivation(cmd, env.controller(loc, cmd.ErrOrStderr()), statusJSON)
	return err
}

// printState writes a view state for a terminal user.
func printState(w io.Writer, st domain.ViewState, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	account := "unknown"
	if st.UserInfo.HasIdentity() {
		account = st.UserInfo.Email
	}
	fmt.Fprintf(w, "Account:   %s\n", account)
	if st.Connection.IsConnected {
		fmt.Fprintln(w, "Notion:    connected")
		if st.Connection.Email != "" {
			fmt.Fprintf(w, "Linked:    %s\n", st.Connection.Email)
		}
	} else {
		fmt.Fprintln(w, "Notion:    not connected")
	}
	if st.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", st.Error)
	}
	return nil
}
