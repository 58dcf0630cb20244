package services

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

const waitFor = 2 * time.Second

// fakeAPI records calls to the connection endpoints. A non-nil gate blocks
// the matching call until the gate is closed.
type fakeAPI struct {
	mu sync.Mutex

	loc *memLocation

	exchangeCalls   int
	exchangeCodes   []string
	addressAtCall   []string
	exchangeGate    chan struct{}
	exchangeResult  *domain.ExchangeResult
	exchangeErr     error
	statusCalls     int
	statusGate      chan struct{}
	statusResult    *domain.StatusResult
	statusErr       error
	identityCalls   int
	identityResult  *domain.UserInfo
	identityErr     error
	disconnectCalls int
	disconnectEmail string
	disconnectRes   *domain.DisconnectResult
	disconnectErr   error
}

func (f *fakeAPI) ExchangeCode(_ context.Context, _ domain.SessionCredential, code string) (*domain.ExchangeResult, error) {
	f.mu.Lock()
	f.exchangeCalls++
	f.exchangeCodes = append(f.exchangeCodes, code)
	if f.loc != nil {
		current := f.loc.Current()
		f.addressAtCall = append(f.addressAtCall, current.String())
	}
	gate := f.exchangeGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeResult, f.exchangeErr
}

func (f *fakeAPI) Status(_ context.Context, _ domain.SessionCredential) (*domain.StatusResult, error) {
	f.mu.Lock()
	f.statusCalls++
	gate := f.statusGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusResult, f.statusErr
}

func (f *fakeAPI) Disconnect(_ context.Context, _ domain.SessionCredential, email string) (*domain.DisconnectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCalls++
	f.disconnectEmail = email
	return f.disconnectRes, f.disconnectErr
}

func (f *fakeAPI) Identity(_ context.Context, _ domain.SessionCredential) (*domain.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identityCalls++
	return f.identityResult, f.identityErr
}

func (f *fakeAPI) counts() (exchange, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls, f.statusCalls
}

// memLocation is an address bar that keeps every replaced value.
type memLocation struct {
	mu       sync.Mutex
	current  url.URL
	replaced []url.URL
}

func newMemLocation(t *testing.T, raw string) *memLocation {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return &memLocation{current: *u}
}

func (l *memLocation) Current() url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *memLocation) Replace(next url.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = next
	l.replaced = append(l.replaced, next)
}

// spyNavigator counts login redirects.
type spyNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *spyNavigator) RedirectToLogin(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
}

func (n *spyNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.targets)
}

// stateRecorder collects observer snapshots.
type stateRecorder struct {
	mu     sync.Mutex
	states []domain.ViewState
}

func (r *stateRecorder) observe(s domain.ViewState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *stateRecorder) last() domain.ViewState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

type controllerFixture struct {
	api      *fakeAPI
	loc      *memLocation
	nav      *spyNavigator
	rec      *stateRecorder
	ctrl     *Controller
	sessions *memory.SessionStore
}

func newControllerFixture(t *testing.T, address string, cred domain.SessionCredential) *controllerFixture {
	t.Helper()
	loc := newMemLocation(t, address)
	api := &fakeAPI{
		loc:            loc,
		exchangeResult: &domain.ExchangeResult{Success: true, WorkspaceReference: "ws-123", WorkspaceName: "Acme"},
		statusResult:   &domain.StatusResult{Success: true},
		identityResult: &domain.UserInfo{Email: "alice@example.com", Name: "Alice"},
		disconnectRes:  &domain.DisconnectResult{Success: true},
	}
	store := memory.NewSessionStore(cred)
	nav := &spyNavigator{}
	ctrl := NewController(
		NewSessionService(store, testDecoder),
		loc,
		nav,
		api,
		ControllerConfig{LoginURL: "/login"},
	)
	return &controllerFixture{api: api, loc: loc, nav: nav, rec: &stateRecorder{}, ctrl: ctrl, sessions: store}
}

func (f *controllerFixture) activate() *Activation {
	return f.ctrl.activate(f.rec.observe)
}

func waitDone(t *testing.T, a *Activation) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(waitFor):
		t.Fatal("activation did not settle")
	}
}

func TestController_Activate_InitialState(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "alice-token")
	a := f.activate()

	state := a.Snapshot()
	assert.True(t, state.IsLoading)
	assert.False(t, state.Connection.IsConnected)
	assert.Equal(t, domain.PhaseInit, a.Phase())
}

func TestController_CodePresent_ExchangesOnceAndStripsAddress(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings?code=abc&state=xyz&tab=integrations", "alice-token")
	a := f.activate()

	a.Start(context.Background())
	waitDone(t, a)

	exchanges, statuses := f.api.counts()
	assert.Equal(t, 1, exchanges)
	assert.Equal(t, 0, statuses, "a code takes precedence over the status check")
	assert.Equal(t, []string{"abc"}, f.api.exchangeCodes)

	require.Len(t, f.api.addressAtCall, 1)
	assert.NotContains(t, f.api.addressAtCall[0], "code=")
	current := f.loc.Current()
	assert.Equal(t, "tab=integrations", current.RawQuery)
	assert.Equal(t, "/settings", current.Path)

	state := a.Snapshot()
	assert.True(t, state.Connection.IsConnected)
	assert.Equal(t, "ws-123", state.Connection.Email)
	assert.Equal(t, domain.FreshnessOptimistic, state.Connection.Freshness)
	assert.False(t, state.IsConnecting)
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.Error)
	assert.Equal(t, domain.PhaseReady, a.Phase())
}

func TestController_Start_RepeatedIsNoop(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings?code=abc", "alice-token")
	a := f.activate()
	ctx := context.Background()

	a.Start(ctx)
	a.Start(ctx)
	waitDone(t, a)
	a.Start(ctx)

	exchanges, statuses := f.api.counts()
	assert.Equal(t, 1, exchanges)
	assert.Equal(t, 0, statuses)
}

func TestController_BeginExchange_SecondCallRefused(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings?code=abc", "alice-token")
	gate := make(chan struct{})
	f.api.exchangeGate = gate
	a := f.activate()

	a.Start(context.Background())
	assert.False(t, a.beginExchange(context.Background(), "alice-token", "abc"))
	close(gate)
	waitDone(t, a)

	exchanges, _ := f.api.counts()
	assert.Equal(t, 1, exchanges)
}

func TestController_IsConnectingWhileExchangeInFlight(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings?code=abc", "alice-token")
	gate := make(chan struct{})
	f.api.exchangeGate = gate
	a := f.activate()

	a.Start(context.Background())

	state := a.Snapshot()
	assert.True(t, state.IsConnecting)
	assert.True(t, state.IsLoading)
	assert.Equal(t, domain.PhaseExchanging, a.Phase())

	close(gate)
	waitDone(t, a)
	assert.False(t, a.Snapshot().IsConnecting)
}

func TestController_NewActivationAfterExchange_ChecksStatus(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings?code=abc", "alice-token")
	first := f.activate()
	first.Start(context.Background())
	waitDone(t, first)

	f.api.mu.Lock()
	f.api.statusResult = &domain.StatusResult{Success: true, Connected: true}
	f.api.mu.Unlock()

	second := f.activate()
	second.Start(context.Background())
	waitDone(t, second)

	exchanges, statuses := f.api.counts()
	assert.Equal(t, 1, exchanges, "the code must not be re-submitted after the address was cleaned")
	assert.Equal(t, 1, statuses)
	assert.True(t, second.Snapshot().Connection.IsConnected)
}

func TestController_ExchangeFailure_ShowsErrorAndStripsAddress(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings?code=bad", "alice-token")
	f.api.exchangeResult = &domain.ExchangeResult{Error: domain.OAuthErrorInvalidGrant}
	a := f.activate()

	a.Start(context.Background())
	waitDone(t, a)

	state := a.Snapshot()
	assert.False(t, state.Connection.IsConnected)
	assert.Equal(t, domain.OAuthErrorInvalidGrant, state.Error)
	assert.False(t, state.IsConnecting)
	current := f.loc.Current()
	assert.Empty(t, current.RawQuery)
}

func TestController_ExchangeTransportError_UsesDescription(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "provider description",
			err:  &domain.ProviderError{Code: "invalid_grant", Description: "Code expired."},
			want: "Code expired.",
		},
		{
			name: "provider code",
			err:  &domain.ProviderError{Code: "invalid_grant"},
			want: "invalid_grant",
		},
		{
			name: "transport message",
			err:  &domain.TransportError{Op: "exchange", Message: "Network unreachable"},
			want: "Network unreachable",
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: genericExchangeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newControllerFixture(t, "https://app.test/settings?code=abc", "alice-token")
			f.api.exchangeResult = nil
			f.api.exchangeErr = tt.err
			a := f.activate()

			a.Start(context.Background())
			waitDone(t, a)

			state := a.Snapshot()
			assert.Equal(t, tt.want, state.Error)
			assert.False(t, state.Connection.IsConnected)
		})
	}
}

func TestController_NoCode_StatusConnected(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "alice-token")
	f.api.statusResult = &domain.StatusResult{Success: true, Connected: true}
	a := f.activate()

	a.Start(context.Background())
	waitDone(t, a)

	exchanges, statuses := f.api.counts()
	assert.Equal(t, 0, exchanges)
	assert.Equal(t, 1, statuses)

	state := a.Snapshot()
	assert.True(t, state.Connection.IsConnected)
	assert.Equal(t, "alice@example.com", state.Connection.Email)
	assert.Equal(t, domain.FreshnessAuthoritative, state.Connection.Freshness)
	assert.False(t, state.IsLoading)
	assert.Empty(t, f.loc.replaced, "an address without a code is left alone")
}

func TestController_NoCode_StatusNotConnected(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "alice-token")
	a := f.activate()

	a.Start(context.Background())
	waitDone(t, a)

	state := a.Snapshot()
	assert.False(t, state.Connection.IsConnected)
	assert.Empty(t, state.Connection.Email)
	assert.Empty(t, state.Error)
}

func TestController_StatusFailure_IsNotAnError(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "alice-token")
	f.api.statusResult = nil
	f.api.statusErr = &domain.TransportError{Op: "status", Message: "connection refused"}
	a := f.activate()

	a.Start(context.Background())
	waitDone(t, a)

	state := a.Snapshot()
	assert.False(t, state.Connection.IsConnected)
	assert.Empty(t, state.Error)
	assert.False(t, state.IsLoading)
}

func TestController_NoSession_RedirectsToLogin(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings?code=abc", "")
	a := f.activate()

	a.Start(context.Background())
	waitDone(t, a)

	assert.Equal(t, 1, f.nav.count())
	assert.Equal(t, []string{"/login"}, f.nav.targets)
	assert.Equal(t, domain.PhaseUnauthenticated, a.Phase())

	exchanges, statuses := f.api.counts()
	assert.Equal(t, 0, exchanges)
	assert.Equal(t, 0, statuses)
	assert.Equal(t, 0, f.api.identityCalls)

	current := f.loc.Current()
	assert.Empty(t, current.RawQuery, "the code is stripped even without a session")
}

func TestController_IdentityResolvedFromServer(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "garbage")
	f.api.statusResult = &domain.StatusResult{Success: true, Connected: true}
	a := f.activate()

	a.Start(context.Background())
	waitDone(t, a)

	assert.Eventually(t, func() bool {
		s := a.Snapshot()
		return s.UserInfo.HasIdentity() && s.Connection.Email == "alice@example.com"
	}, waitFor, 10*time.Millisecond)
	assert.Equal(t, 0, f.nav.count())
}

func TestController_IdentityFailure_WithoutFallback_Redirects(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "garbage")
	f.api.identityResult = nil
	f.api.identityErr = errors.New("401")
	a := f.activate()

	a.Start(context.Background())

	assert.Eventually(t, func() bool { return f.nav.count() == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, unresolvedIdentityText, a.Snapshot().Error)
}

func TestController_IdentityFailure_WithDecodedIdentity_Ignored(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "alice-token")
	f.api.identityResult = nil
	f.api.identityErr = errors.New("timeout")
	a := f.activate()

	a.Start(context.Background())
	waitDone(t, a)

	assert.Eventually(t, func() bool {
		f.api.mu.Lock()
		defer f.api.mu.Unlock()
		return f.api.identityCalls == 1
	}, waitFor, 10*time.Millisecond)
	assert.Equal(t, 0, f.nav.count())
	assert.Empty(t, a.Snapshot().Error)
	assert.Equal(t, "alice@example.com", a.Snapshot().UserInfo.Email)
}

func TestController_ProviderDenial_ShowsErrorAndChecksStatus(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings?error=access_denied&error_description=User+cancelled", "alice-token")
	a := f.activate()

	a.Start(context.Background())
	waitDone(t, a)

	exchanges, statuses := f.api.counts()
	assert.Equal(t, 0, exchanges)
	assert.Equal(t, 1, statuses)
	assert.Equal(t, "User cancelled", a.Snapshot().Error)
	current := f.loc.Current()
	assert.Empty(t, current.RawQuery)
}

func TestController_Teardown_DiscardsLateExchange(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings?code=abc", "alice-token")
	gate := make(chan struct{})
	f.api.exchangeGate = gate
	f.api.identityResult = nil
	f.api.identityErr = errors.New("offline")
	a := f.activate()

	a.Start(context.Background())
	a.Teardown()
	before := f.rec.len()
	close(gate)
	waitDone(t, a)

	state := a.Snapshot()
	assert.False(t, state.Connection.IsConnected, "late result must not be applied")
	assert.False(t, state.IsConnecting)
	assert.Equal(t, before, f.rec.len(), "no notifications after teardown")
	assert.Equal(t, domain.PhaseTornDown, a.Phase())
}

func TestController_Teardown_DiscardsLateStatus(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "alice-token")
	gate := make(chan struct{})
	f.api.statusGate = gate
	f.api.statusResult = &domain.StatusResult{Success: true, Connected: true}
	a := f.activate()

	a.Start(context.Background())
	a.Teardown()
	close(gate)
	waitDone(t, a)

	assert.False(t, a.Snapshot().Connection.IsConnected)
}

func TestController_LocalDisconnect_WinsOverStaleStatus(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "alice-token")
	gate := make(chan struct{})
	f.api.statusGate = gate
	f.api.statusResult = &domain.StatusResult{Success: true, Connected: true}
	a := f.activate()

	a.Start(context.Background())
	a.SetConnection(domain.Connection{})
	close(gate)
	waitDone(t, a)

	state := a.Snapshot()
	assert.False(t, state.Connection.IsConnected, "status dispatched earlier must not reconnect the view")
	assert.Equal(t, domain.FreshnessLocal, state.Connection.Freshness)
	assert.False(t, state.IsLoading)
	assert.Equal(t, domain.PhaseReady, a.Phase())
}

func TestController_LocalConnectionBeforeStatus_IsReconciled(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "alice-token")
	f.api.statusResult = &domain.StatusResult{Success: true, Connected: true}
	a := f.activate()

	a.SetConnection(domain.Connection{})
	a.Start(context.Background())
	waitDone(t, a)

	state := a.Snapshot()
	assert.True(t, state.Connection.IsConnected)
	assert.Equal(t, domain.FreshnessAuthoritative, state.Connection.Freshness)
}

func TestController_IdentityFailure_DropsPendingExchange(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings?code=abc", "garbage")
	gate := make(chan struct{})
	f.api.exchangeGate = gate
	f.api.identityResult = nil
	f.api.identityErr = errors.New("401")
	a := f.activate()

	a.Start(context.Background())
	require.Eventually(t, func() bool { return a.Phase() == domain.PhaseUnauthenticated }, waitFor, 10*time.Millisecond)
	assert.False(t, a.Snapshot().IsConnecting)
	close(gate)
	waitDone(t, a)

	state := a.Snapshot()
	assert.Equal(t, domain.PhaseUnauthenticated, a.Phase())
	assert.False(t, state.Connection.IsConnected)
	assert.Equal(t, unresolvedIdentityText, state.Error)
	assert.Equal(t, 1, f.nav.count())
}

func TestController_IdentityFailure_DropsPendingStatus(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "garbage")
	gate := make(chan struct{})
	f.api.statusGate = gate
	f.api.statusResult = &domain.StatusResult{Success: true, Connected: true}
	f.api.identityResult = nil
	f.api.identityErr = errors.New("401")
	a := f.activate()

	a.Start(context.Background())
	require.Eventually(t, func() bool { return f.nav.count() == 1 }, waitFor, 10*time.Millisecond)
	close(gate)
	waitDone(t, a)

	assert.Equal(t, domain.PhaseUnauthenticated, a.Phase())
	assert.False(t, a.Snapshot().Connection.IsConnected)
	assert.Equal(t, 1, f.nav.count())
}

func TestController_Teardown_BeforeStart(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings?code=abc", "alice-token")
	a := f.activate()

	a.Teardown()
	waitDone(t, a)
	a.Start(context.Background())

	exchanges, statuses := f.api.counts()
	assert.Equal(t, 0, exchanges)
	assert.Equal(t, 0, statuses)
	assert.Equal(t, 0, f.rec.len())
}

func TestController_ObserverSeesFinalState(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings?code=abc", "alice-token")
	a := f.activate()

	a.Start(context.Background())
	waitDone(t, a)

	assert.Eventually(t, func() bool {
		return f.rec.len() > 0 && f.rec.last().Connection.IsConnected
	}, waitFor, 10*time.Millisecond)
}

func TestController_SetConnection(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "alice-token")
	a := f.activate()
	a.Start(context.Background())
	waitDone(t, a)

	a.SetConnection(domain.Connection{Email: "ws-9", IsConnected: true, Freshness: domain.FreshnessAuthoritative})

	state := a.Snapshot()
	assert.True(t, state.Connection.IsConnected)
	assert.Equal(t, "ws-9", state.Connection.Email)
	assert.Equal(t, domain.FreshnessLocal, state.Connection.Freshness)
}

func TestController_Disconnect(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "alice-token")
	f.api.statusResult = &domain.StatusResult{Success: true, Connected: true}
	a := f.activate()
	a.Start(context.Background())
	waitDone(t, a)

	res, err := a.Disconnect(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "alice@example.com", f.api.disconnectEmail)
	state := a.Snapshot()
	assert.False(t, state.Connection.IsConnected)
	assert.Equal(t, domain.FreshnessLocal, state.Connection.Freshness)

	_, statuses := f.api.counts()
	assert.Equal(t, 1, statuses, "disconnect does not re-run the state machine")
}

func TestController_Disconnect_Failure(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "alice-token")
	f.api.statusResult = &domain.StatusResult{Success: true, Connected: true}
	f.api.disconnectRes = &domain.DisconnectResult{Error: "not allowed"}
	a := f.activate()
	a.Start(context.Background())
	waitDone(t, a)

	res, err := a.Disconnect(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Success)
	state := a.Snapshot()
	assert.True(t, state.Connection.IsConnected)
	assert.Equal(t, "not allowed", state.Error)
}

func TestController_Disconnect_WithoutSession(t *testing.T) {
	f := newControllerFixture(t, "https://app.test/settings", "")
	a := f.activate()
	a.Start(context.Background())
	waitDone(t, a)

	_, err := a.Disconnect(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestController_CustomCodeParam(t *testing.T) {
	loc := newMemLocation(t, "https://app.test/settings?auth_code=abc")
	api := &fakeAPI{exchangeResult: &domain.ExchangeResult{Success: true, WorkspaceReference: "ws"}}
	ctrl := NewController(
		NewSessionService(memory.NewSessionStore("alice-token"), testDecoder),
		loc, nil, api,
		ControllerConfig{CodeParam: "auth_code"},
	)
	api.identityResult = &domain.UserInfo{Email: "alice@example.com"}

	a := ctrl.activate(nil)
	a.Start(context.Background())
	waitDone(t, a)

	assert.Equal(t, []string{"abc"}, api.exchangeCodes)
	current := loc.Current()
	assert.Empty(t, current.RawQuery)
}
