package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/notion"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/oauth"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/session"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/server"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/services"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

var (
	serveAddr      string
	serveEphemeral bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the connection endpoints",
	Long: `Serve the token exchange, status, disconnect and identity endpoints.

Connections and exchanged codes are kept in a SQLite database under
server.data_dir, or in memory with --ephemeral.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveEphemeral, "ephemeral", false, "keep connections in memory only")
	rootCmd.AddCommand(serveCmd)
}

// serverStack is the server and what must be closed after it.
type serverStack struct {
	server *server.Server
	store  *sqlite.Store // nil when ephemeral
}

// Close releases the database, if any.
func (s *serverStack) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func buildServer() (*serverStack, error) {
	if err := appConfig.ValidateServer(); err != nil {
		return nil, err
	}
	expiry, err := appConfig.Server.Expiry()
	if err != nil {
		return nil, err
	}

	var (
		store   *sqlite.Store
		records driven.ConnectionStore
		ledger  driven.CodeLedger
		health  server.Pinger
	)
	if serveEphemeral {
		logger.Warn("ephemeral mode: connections are lost on exit")
		records, ledger = memory.NewConnectionStore(), memory.NewCodeLedger()
	} else {
		store, err = sqlite.NewStore(appConfig.Server.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		logger.Debug("database at %s", store.Path())
		records, ledger, health = store.ConnectionStore(), store.CodeLedger(), store
	}

	var lookup driven.WorkspaceLookup
	if appConfig.Provider.LookupWorkspace {
		lookup = notion.NewWorkspaceLookup(nil, appConfig.Provider.NotionAPIURL)
	}
	connections := services.NewConnectionService(
		records,
		ledger,
		oauth.NewExchanger(appConfig.Provider.OAuth(), nil),
		lookup,
	)
	verifier := session.NewJWTService(appConfig.Server.SessionSecret, expiry, appConfig.Server.SessionIssuer)
	limiter := server.NewRateLimiter(server.RateLimitConfig{
		RequestsPerSecond: appConfig.Server.RateLimit,
		BurstSize:         appConfig.Server.RateBurst,
	})

	return &serverStack{
		server: server.New(connections, verifier, limiter, health),
		store:  store,
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveAddr != "" {
		appConfig.Server.Addr = serveAddr
	}
	stack, err := buildServer()
	if err != nil {
		return err
	}
	defer stack.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Serving connection endpoints on %s\n", appConfig.Server.Addr)
	if err := stack.server.Run(ctx, appConfig.Server.Addr); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
