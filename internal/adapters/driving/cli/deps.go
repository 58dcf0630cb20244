package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/api"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/location"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/session"
	"github.com/custodia-labs/sercha-connect/internal/config"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/core/services"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// sessionStore is a watchable local session store.
type sessionStore interface {
	driven.SessionStore
	driven.SessionWatcher
}

// openSessionStore opens the local session store. Tests replace it.
var openSessionStore = func(cfg config.ClientConfig) (sessionStore, error) {
	return session.NewFileStore(cfg.SessionDir)
}

// clientEnv is what the client commands share.
type clientEnv struct {
	store    sessionStore
	sessions *services.SessionService
	api      *api.Client
}

func newClientEnv() (*clientEnv, error) {
	if err := appConfig.ValidateClient(); err != nil {
		return nil, err
	}
	store, err := openSessionStore(appConfig.Client)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	timeout, err := appConfig.Client.RequestTimeout()
	if err != nil {
		return nil, err
	}
	client, err := api.NewClient(appConfig.Client.ServerURL, api.Options{
		RetryMax: appConfig.Client.RetryMax,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, err
	}
	return &clientEnv{
		store:    store,
		sessions: services.NewSessionService(store, session.Decoder{}),
		api:      client,
	}, nil
}

func (e *clientEnv) controller(loc driven.Location, out io.Writer) *services.Controller {
	return services.NewController(
		e.sessions,
		loc,
		location.NewPrintNavigator(out),
		e.api,
		services.ControllerConfig{LoginURL: appConfig.Client.LoginURL},
	)
}

// viewLocation is the address of a client view that received no redirect.
func viewLocation() (*location.URL, error) {
	return location.New(appConfig.Client.RedirectURI)
}

// runActivation runs one activation to settlement and prints the result.
func runActivation(cmd *cobra.Command, ctrl driving.ConnectionController, asJSON bool) (domain.ViewState, error) {
	ctx := commandContext(cmd)
	act := ctrl.Activate(func(st domain.ViewState) {
		logger.Debug("view state: connected=%t connecting=%t loading=%t error=%q",
			st.Connection.IsConnected, st.IsConnecting, st.IsLoading, st.Error)
	})
	defer act.Teardown()

	act.Start(ctx)
	select {
	case <-act.Done():
	case <-ctx.Done():
		return domain.ViewState{}, ctx.Err()
	}

	st := act.Snapshot()
	if act.Phase() == domain.PhaseUnauthenticated {
		return st, errNotLoggedIn
	}
	if err := printState(cmd.OutOrStdout(), st, asJSON); err != nil {
		return st, err
	}
	return st, nil
}

// describeError picks the most readable text of a client error.
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

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
