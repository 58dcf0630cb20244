package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/session"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/services"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the stored session credential",
	Long: `The session credential is the bearer token your sign-in issued.
Client commands send it to the connection server.`,
}

var sessionSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store a session credential",
	Long:  `Store a session credential. Without an argument the token is read from stdin.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionSet,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show who the stored session belongs to",
	RunE:  runSessionShow,
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored session credential",
	RunE:  runSessionClear,
}

var (
	issueEmail string
	issueName  string
	issueSave  bool
)

var sessionIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Mint a development session with the server secret",
	Long: `Sign a session credential with server.session_secret.
This stands in for the host application's sign-in during development.`,
	RunE: runSessionIssue,
}

func init() {
	sessionIssueCmd.Flags().StringVar(&issueEmail, "email", "", "account email (required)")
	sessionIssueCmd.Flags().StringVar(&issueName, "name", "", "display name")
	sessionIssueCmd.Flags().BoolVar(&issueSave, "save", false, "store the credential locally as well")

	sessionCmd.AddCommand(sessionSetCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	sessionCmd.AddCommand(sessionIssueCmd)
	rootCmd.AddCommand(sessionCmd)
}

func localSessions() (*services.SessionService, error) {
	store, err := openSessionStore(appConfig.Client)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return services.NewSessionService(store, session.Decoder{}), nil
}

func runSessionSet(cmd *cobra.Command, args []string) error {
	sessions, err := localSessions()
	if err != nil {
		return err
	}

	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		cmd.Print("Session token: ")
		token = readSecret(cmd.InOrStdin())
		cmd.Println()
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("no token given")
	}

	info, err := sessions.Login(commandContext(cmd), domain.SessionCredential(token))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuthExpired):
			return errors.New("the session has expired; sign in again")
		case errors.Is(err, domain.ErrAuthInvalid):
			return errors.New("the token is not a session credential")
		}
		return err
	}
	cmd.Printf("Logged in as %s\n", info.Email)
	return nil
}

func runSessionShow(cmd *cobra.Command, _ []string) error {
	sessions, err := localSessions()
	if err != nil {
		return err
	}
	cred, info, err := sessions.Current(commandContext(cmd))
	if err != nil {
		return err
	}
	if cred.IsZero() {
		cmd.Println("Not logged in")
		return nil
	}
	if info == nil {
		cmd.Println("A session is stored but carries no readable identity")
		return nil
	}

	cmd.Printf("Email:   %s\n", info.Email)
	if info.Name != "" {
		cmd.Printf("Name:    %s\n", info.Name)
	}
	if !info.ExpiresAt.IsZero() {
		state := "valid"
		if info.IsExpired() {
			state = "expired"
		}
		cmd.Printf("Expires: %s (%s)\n", info.ExpiresAt.Local().Format(time.RFC1123), state)
	}
	return nil
}

func runSessionClear(cmd *cobra.Command, _ []string) error {
	sessions, err := localSessions()
	if err != nil {
		return err
	}
	if err := sessions.Logout(commandContext(cmd)); err != nil {
		return err
	}
	cmd.Println("Logged out")
	return nil
}

func runSessionIssue(cmd *cobra.Command, _ []string) error {
	if appConfig.Server.SessionSecret == "" {
		return errors.New("server.session_secret is not configured")
	}
	expiry, err := appConfig.Server.Expiry()
	if err != nil {
		return err
	}

	issuer := session.NewJWTService(appConfig.Server.SessionSecret, expiry, appConfig.Server.SessionIssuer)
	cred, err := issuer.Issue(domain.UserInfo{Email: issueEmail, Name: issueName})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return errors.New("--email is required")
		}
		return err
	}

	if issueSave {
		sessions, err := localSessions()
		if err != nil {
			return err
		}
		if _, err := sessions.Login(commandContext(cmd), cred); err != nil {
			return err
		}
	}
	cmd.Println(cred.String())
	return nil
}

// readSecret reads one line without echo when in is a terminal.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readSecret(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(secret)
		}
	}
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(line)
}
