package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// Ensure the controller types implement the interfaces.
var (
	_ driving.ConnectionController = (*Controller)(nil)
	_ driving.ConnectionActivation = (*Activation)(nil)
)

// Query parameters the provider appends to the view's address.
const (
	DefaultCodeParam       = "code"
	stateParam             = "state"
	errorParam             = "error"
	errorDescriptionParam  = "error_description"
	genericExchangeError   = "Failed to connect to Notion"
	unresolvedIdentityText = "Unable to identify your account. Please log in again."
)

// ControllerConfig configures the connection controller.
type ControllerConfig struct {
	// LoginURL is where the navigator sends users without a session.
	LoginURL string
	// CodeParam is the query parameter carrying the authorization code.
	// Defaults to "code".
	CodeParam string
}

// Controller orchestrates the connection state for consuming views.
// Each view lifetime gets its own Activation.
type Controller struct {
	sessions  *SessionService
	location  driven.Location
	navigator driven.Navigator
	api       driven.ConnectionAPI
	cfg       ControllerConfig
}

// NewController creates a new connection controller.
func NewController(
	sessions *SessionService,
	location driven.Location,
	navigator driven.Navigator,
	api driven.ConnectionAPI,
	cfg ControllerConfig,
) *Controller {
	if cfg.CodeParam == "" {
		cfg.CodeParam = DefaultCodeParam
	}
	return &Controller{
		sessions:  sessions,
		location:  location,
		navigator: navigator,
		api:       api,
		cfg:       cfg,
	}
}

// Activate creates a new activation for one lifetime of a view.
// observer, if set, receives a snapshot after every applied state change.
func (c *Controller) Activate(observer func(domain.ViewState)) driving.ConnectionActivation {
	return c.activate(observer)
}

func (c *Controller) activate(observer func(domain.ViewState)) *Activation {
	return &Activation{
		c:        c,
		observer: observer,
		token:    activationToken{live: true},
		phase:    domain.PhaseInit,
		state:    domain.ViewState{IsLoading: true},
		done:     make(chan struct{}),
	}
}

// takeCode reads the authorization code from the location and strips it,
// together with its companion parameters, before anything else happens.
// A provider-side denial (?error=...) is returned instead of a code.
func (c *Controller) takeCode() (string, *domain.ProviderError) {
	if c.location == nil {
		return "", nil
	}
	current := c.location.Current()
	query := current.Query()
	if !query.Has(c.cfg.CodeParam) && !query.Has(errorParam) {
		return "", nil
	}

	code := strings.TrimSpace(query.Get(c.cfg.CodeParam))
	var denial *domain.ProviderError
	if code == "" && query.Get(errorParam) != "" {
		denial = &domain.ProviderError{
			Code:        query.Get(errorParam),
			Description: query.Get(errorDescriptionParam),
		}
	}

	for _, key := range []string{c.cfg.CodeParam, stateParam, errorParam, errorDescriptionParam} {
		query.Del(key)
	}
	current.RawQuery = query.Encode()
	c.location.Replace(current)
	logger.Debug("stripped authorization parameters from %s", current.Path)

	return code, denial
}

func (c *Controller) redirectToLogin() {
	if c.navigator != nil {
		c.navigator.RedirectToLogin(c.cfg.LoginURL)
	}
}

// activationToken is the cancellation token owned by one activation.
type activationToken struct {
	// live is false once the owning view was torn down.
	live bool
	// started guards the setup routine.
	started bool
	// exchangeDispatched guards the exchange transition.
	exchangeDispatched bool
}

// Activation is one run of the connection state machine, scoped to one
// lifetime of a consuming view. All continuations re-check the token before
// mutating state; results arriving after Teardown are dropped.
type Activation struct {
	c        *Controller
	observer func(domain.ViewState)

	mu      sync.Mutex
	token   activationToken
	phase   domain.Phase
	state   domain.ViewState
	cred    domain.SessionCredential
	cancel  context.CancelFunc
	version uint64
	// localVersion is the version of the last connection the view applied
	// itself. Checks dispatched before it must not overwrite it.
	localVersion uint64

	notifyMu     sync.Mutex
	lastNotified uint64

	done     chan struct{}
	doneOnce sync.Once
}

// Start runs the setup routine. Only the first call has any effect.
func (a *Activation) Start(ctx context.Context) {
	a.mu.Lock()
	if a.token.started || !a.token.live {
		a.mu.Unlock()
		return
	}
	a.token.started = true
	ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()

	// Synchronous: the code leaves the address before any call is dispatched.
	code, denial := a.c.takeCode()

	var cred domain.SessionCredential
	var info *domain.UserInfo
	if a.c.sessions != nil {
		var err error
		cred, info, err = a.c.sessions.Current(ctx)
		if err != nil {
			logger.Warn("reading session: %v", err)
		}
	}
	if cred.IsZero() {
		applied := a.mutate(func(st *domain.ViewState) bool {
			a.phase = domain.PhaseUnauthenticated
			st.IsLoading = false
			return true
		})
		if applied {
			a.c.redirectToLogin()
		}
		a.finish()
		return
	}

	a.mutate(func(st *domain.ViewState) bool {
		a.cred = cred
		st.UserInfo = info
		if denial != nil {
			st.Error = denial.Message()
		}
		return true
	})

	var dispatched bool
	if code != "" {
		dispatched = a.beginExchange(ctx, cred, code)
	} else {
		dispatched = a.beginStatusCheck(ctx, cred)
	}
	if !dispatched {
		a.finish()
		return
	}
	go a.resolveIdentity(ctx, cred)
}

// beginExchange dispatches the token exchange and reports whether it did.
// A second call is a no-op.
func (a *Activation) beginExchange(ctx context.Context, cred domain.SessionCredential, code string) bool {
	a.mu.Lock()
	if !a.token.live || a.token.exchangeDispatched {
		a.mu.Unlock()
		return false
	}
	a.token.exchangeDispatched = true
	a.mu.Unlock()

	a.mutate(func(st *domain.ViewState) bool {
		a.phase = domain.PhaseExchanging
		st.IsConnecting = true
		return true
	})
	logger.Debug("dispatching exchange for code %s", logger.Redact(code))

	go func() {
		defer a.finish()
		res, err := a.c.api.ExchangeCode(ctx, cred, code)
		a.settleExchange(res, err)
	}()
	return true
}

func (a *Activation) settleExchange(res *domain.ExchangeResult, err error) {
	applied := a.mutate(func(st *domain.ViewState) bool {
		if a.phase.IsTerminal() {
			return false
		}
		a.phase = domain.PhaseReady
		st.IsConnecting = false
		st.IsLoading = false
		switch {
		case err != nil:
			st.Connection = domain.Disconnected(domain.FreshnessOptimistic)
			st.Error = describeExchangeError(err)
		case res != nil && res.Success:
			email := res.WorkspaceReference
			if email == "" && st.UserInfo.HasIdentity() {
				email = st.UserInfo.Email
			}
			st.Connection = domain.Connection{
				Email:       email,
				IsConnected: true,
				Freshness:   domain.FreshnessOptimistic,
			}
			st.Error = ""
		default:
			st.Connection = domain.Disconnected(domain.FreshnessOptimistic)
			st.Error = genericExchangeError
			if res != nil && res.Error != "" {
				st.Error = res.Error
			}
		}
		return true
	})
	if !applied {
		logger.Debug("exchange settled after the activation ended, result dropped")
	}
}

// beginStatusCheck dispatches the status check and reports whether it did.
func (a *Activation) beginStatusCheck(ctx context.Context, cred domain.SessionCredential) bool {
	var dispatchedAt uint64
	live := a.mutate(func(_ *domain.ViewState) bool {
		a.phase = domain.PhaseCheckingStatus
		dispatchedAt = a.version
		return true
	})
	if !live {
		return false
	}

	go func() {
		defer a.finish()
		res, err := a.c.api.Status(ctx, cred)
		if err != nil {
			logger.Debug("status check failed: %v", err)
		}
		a.mutate(func(st *domain.ViewState) bool {
			if a.phase.IsTerminal() {
				return false
			}
			a.phase = domain.PhaseReady
			st.IsLoading = false
			if a.localVersion > dispatchedAt {
				logger.Debug("status result older than the view's own connection, ignored")
				return true
			}
			if err == nil && res != nil && res.Success && res.Connected {
				email := ""
				if st.UserInfo.HasIdentity() {
					email = st.UserInfo.Email
				}
				st.Connection = domain.Connection{
					Email:       email,
					IsConnected: true,
					Freshness:   domain.FreshnessAuthoritative,
				}
				return true
			}
			// An unreachable status endpoint is "not connected", not an error.
			st.Connection = domain.Disconnected(domain.FreshnessAuthoritative)
			return true
		})
	}()
	return true
}

// resolveIdentity fetches the authoritative identity. Failure only matters
// when the credential itself yielded no identity.
func (a *Activation) resolveIdentity(ctx context.Context, cred domain.SessionCredential) {
	info, err := a.c.api.Identity(ctx, cred)
	if err == nil && info.HasIdentity() {
		a.mutate(func(st *domain.ViewState) bool {
			st.UserInfo = info
			if st.Connection.IsConnected && st.Connection.Email == "" {
				st.Connection.Email = info.Email
			}
			return true
		})
		return
	}
	if err != nil {
		logger.Debug("identity fetch failed: %v", err)
	}

	var cancel context.CancelFunc
	escalated := a.mutate(func(st *domain.ViewState) bool {
		if st.UserInfo.HasIdentity() || a.phase.IsTerminal() {
			return false
		}
		st.Error = unresolvedIdentityText
		st.Connection = domain.Disconnected(domain.FreshnessAuthoritative)
		st.IsConnecting = false
		st.IsLoading = false
		a.phase = domain.PhaseUnauthenticated
		cancel = a.cancel
		return true
	})
	if !escalated {
		return
	}
	// Unauthenticated is terminal: pending results are dropped.
	if cancel != nil {
		cancel()
	}
	a.c.redirectToLogin()
}

// Teardown marks the owning view as gone and cancels in-flight calls.
func (a *Activation) Teardown() {
	a.mu.Lock()
	if !a.token.live {
		a.mu.Unlock()
		return
	}
	a.token.live = false
	a.phase = domain.PhaseTornDown
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !a.isStarted() {
		a.finish()
	}
}

func (a *Activation) isStarted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token.started
}

// Snapshot returns a copy of the current view state.
func (a *Activation) Snapshot() domain.ViewState {
	a.mu.Lock()
	defer a.mu.Unlock()
	snapshot := a.state.Clone()
	if !a.token.live {
		snapshot.IsConnecting = false
	}
	return snapshot
}

// Phase returns the current phase.
func (a *Activation) Phase() domain.Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// SetConnection applies a connection obtained by the view itself.
func (a *Activation) SetConnection(next domain.Connection) {
	a.mutate(func(st *domain.ViewState) bool {
		a.applyLocal(st, next)
		return true
	})
}

// Disconnect calls the disconnect service for the current identity and
// applies a successful result without re-running the state machine.
func (a *Activation) Disconnect(ctx context.Context) (*domain.DisconnectResult, error) {
	a.mu.Lock()
	cred := a.cred
	email := ""
	if a.state.UserInfo.HasIdentity() {
		email = a.state.UserInfo.Email
	}
	a.mu.Unlock()

	if cred.IsZero() {
		return nil, domain.ErrAuthRequired
	}
	res, err := a.c.api.Disconnect(ctx, cred, email)
	if err != nil {
		return nil, err
	}
	if res.Success {
		a.mutate(func(st *domain.ViewState) bool {
			a.applyLocal(st, domain.Connection{})
			st.Error = ""
			return true
		})
	} else {
		a.mutate(func(st *domain.ViewState) bool {
			st.Error = res.Error
			return true
		})
	}
	return res, nil
}

// applyLocal sets a connection the view obtained itself. Callers hold mu.
func (a *Activation) applyLocal(st *domain.ViewState, next domain.Connection) {
	next.Freshness = domain.FreshnessLocal
	st.Connection = next
	a.localVersion = a.version + 1
}

// Done is closed once the primary branch settled or the activation ended
// without dispatching one.
func (a *Activation) Done() <-chan struct{} {
	return a.done
}

func (a *Activation) finish() {
	a.doneOnce.Do(func() { close(a.done) })
}

// mutate applies fn to the view state if the activation is still live.
// fn reports whether it changed anything. It returns whether the change was
// applied; observers are notified in order, stale snapshots are skipped.
func (a *Activation) mutate(fn func(st *domain.ViewState) bool) bool {
	a.mu.Lock()
	if !a.token.live {
		a.mu.Unlock()
		return false
	}
	if !fn(&a.state) {
		a.mu.Unlock()
		return false
	}
	a.version++
	version := a.version
	snapshot := a.state.Clone()
	a.mu.Unlock()

	if a.observer == nil {
		return true
	}
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	if version <= a.lastNotified {
		return true
	}
	a.lastNotified = version
	a.observer(snapshot)
	return true
}

// describeExchangeError picks the most specific human-readable text:
// provider description, provider code, transport message, generic text.
func describeExchangeError(err error) string {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		if perr.Description != "" {
			return perr.Description
		}
		if perr.Code != "" {
			return perr.Code
		}
	}
	var terr *domain.TransportError
	if errors.As(err, &terr) && terr.Message != "" {
		return terr.Message
	}
	return genericExchangeError
}
