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

// fakeExchanger is a provider that hands out one token per call.
type fakeExchanger struct {
	mu    sync.Mutex
	calls []string
	token *domain.OAuthToken
	err   error
}

func (f *fakeExchanger) AuthCodeURL(state string) string {
	return "https://api.notion.com/v1/oauth/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeExchanger) ExchangeCode(_ context.Context, code string) (*domain.OAuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, code)
	if f.err != nil {
		return nil, f.err
	}
	if f.token == nil {
		return &domain.OAuthToken{
			AccessToken:   "secret_" + code,
			TokenType:     "bearer",
			WorkspaceID:   "ws-123",
			WorkspaceName: "Acme",
			BotID:         "bot-1",
		}, nil
	}
	tok := *f.token
	return &tok, nil
}

func (f *fakeExchanger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLookup struct {
	name  string
	err   error
	calls int
}

func (p *fakeLookup) WorkspaceName(_ context.Context, _ string) (string, error) {
	p.calls++
	return p.name, p.err
}

func newTestConnectionService(ex *fakeExchanger) (*ConnectionService, *memory.ConnectionStore) {
	store := memory.NewConnectionStore()
	return NewConnectionService(store, memory.NewCodeLedger(), ex, nil), store
}

func TestConnectionService_Exchange_Success(t *testing.T) {
	ex := &fakeExchanger{}
	svc, store := newTestConnectionService(ex)
	ctx := context.Background()

	res, err := svc.Exchange(ctx, "Alice@Example.com", "code-1")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ws-123", res.WorkspaceReference)
	assert.Equal(t, "Acme", res.WorkspaceName)
	assert.Empty(t, res.Error)

	record, err := store.GetByIdentity(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, record.IsActive())
	assert.Equal(t, "secret_code-1", record.AccessToken)
	assert.Equal(t, "bot-1", record.BotID)
}

func TestConnectionService_Exchange_ReplayIsInvalidGrant(t *testing.T) {
	ex := &fakeExchanger{}
	svc, _ := newTestConnectionService(ex)
	ctx := context.Background()

	first, err := svc.Exchange(ctx, "alice@example.com", "code-1")
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := svc.Exchange(ctx, "alice@example.com", "code-1")
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, domain.OAuthErrorInvalidGrant, second.Error)
	assert.Equal(t, 1, ex.callCount(), "provider must see the code once")
}

func TestConnectionService_Exchange_PrunesExpiredCodes(t *testing.T) {
	ledger := memory.NewCodeLedger()
	svc := NewConnectionService(memory.NewConnectionStore(), ledger, &fakeExchanger{}, nil)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	ctx := context.Background()

	_, err := svc.Exchange(ctx, "alice@example.com", "old-code")
	require.NoError(t, err)
	require.Equal(t, 1, ledger.Len())

	svc.now = func() time.Time { return start.Add(codeRetention + time.Minute) }
	_, err = svc.Exchange(ctx, "alice@example.com", "new-code")
	require.NoError(t, err)

	assert.Equal(t, 1, ledger.Len(), "only the fresh code remains")
	res, err := svc.Exchange(ctx, "alice@example.com", "new-code")
	require.NoError(t, err)
	assert.Equal(t, domain.OAuthErrorInvalidGrant, res.Error)
}

func TestConnectionService_Exchange_ConcurrentSameCode(t *testing.T) {
	ex := &fakeExchanger{}
	svc, _ := newTestConnectionService(ex)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*domain.ExchangeResult, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Exchange(ctx, "alice@example.com", "shared")
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, res := range results {
		require.NotNil(t, res)
		if res.Success {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, ex.callCount())
}

func TestConnectionService_Exchange_ProviderRejects(t *testing.T) {
	ex := &fakeExchanger{err: &domain.ProviderError{
		Code:        domain.OAuthErrorInvalidGrant,
		Description: "Invalid code.",
		StatusCode:  400,
	}}
	svc, store := newTestConnectionService(ex)
	ctx := context.Background()

	res, err := svc.Exchange(ctx, "alice@example.com", "bad")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.OAuthErrorInvalidGrant, res.Error)

	_, err = store.GetByIdentity(ctx, "alice@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnectionService_Exchange_TransportFailure(t *testing.T) {
	ex := &fakeExchanger{err: errors.New("dial tcp: connection refused")}
	svc, _ := newTestConnectionService(ex)

	res, err := svc.Exchange(context.Background(), "alice@example.com", "code")

	assert.Nil(t, res)
	assert.ErrorContains(t, err, "exchanging code")
}

func TestConnectionService_Exchange_NoAccessToken(t *testing.T) {
	ex := &fakeExchanger{token: &domain.OAuthToken{}}
	svc, _ := newTestConnectionService(ex)

	res, err := svc.Exchange(context.Background(), "alice@example.com", "code")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestConnectionService_Exchange_Validation(t *testing.T) {
	svc, _ := newTestConnectionService(&fakeExchanger{})
	ctx := context.Background()

	_, err := svc.Exchange(ctx, "", "code")
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	_, err = svc.Exchange(ctx, "alice@example.com", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConnectionService_Exchange_LookupFillsWorkspaceName(t *testing.T) {
	ex := &fakeExchanger{token: &domain.OAuthToken{AccessToken: "tok", WorkspaceID: "ws-9"}}
	lookup := &fakeLookup{name: "Acme"}
	store := memory.NewConnectionStore()
	svc := NewConnectionService(store, memory.NewCodeLedger(), ex, lookup)

	res, err := svc.Exchange(context.Background(), "alice@example.com", "code")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ws-9", res.WorkspaceReference)
	assert.Equal(t, "Acme", res.WorkspaceName)
	assert.Equal(t, 1, lookup.calls)
}

func TestConnectionService_Exchange_LookupFailureIsIgnored(t *testing.T) {
	ex := &fakeExchanger{token: &domain.OAuthToken{AccessToken: "tok", WorkspaceID: "ws-9"}}
	lookup := &fakeLookup{err: errors.New("unauthorized")}
	svc := NewConnectionService(memory.NewConnectionStore(), memory.NewCodeLedger(), ex, lookup)

	res, err := svc.Exchange(context.Background(), "alice@example.com", "code")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.WorkspaceName)
}

func TestConnectionService_Exchange_ReconnectKeepsRecordID(t *testing.T) {
	svc, store := newTestConnectionService(&fakeExchanger{})
	ctx := context.Background()

	_, err := svc.Exchange(ctx, "alice@example.com", "one")
	require.NoError(t, err)
	first, err := store.GetByIdentity(ctx, "alice@example.com")
	require.NoError(t, err)

	_, err = svc.Disconnect(ctx, "alice@example.com", "")
	require.NoError(t, err)
	_, err = svc.Exchange(ctx, "alice@example.com", "two")
	require.NoError(t, err)

	second, err := store.GetByIdentity(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsActive())
}

func TestConnectionService_Status(t *testing.T) {
	svc, _ := newTestConnectionService(&fakeExchanger{})
	ctx := context.Background()

	res, err := svc.Status(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Connected)

	_, err = svc.Exchange(ctx, "alice@example.com", "code")
	require.NoError(t, err)

	res, err = svc.Status(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Connected)

	_, err = svc.Status(ctx, "")
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestConnectionService_Disconnect_Idempotent(t *testing.T) {
	svc, _ := newTestConnectionService(&fakeExchanger{})
	ctx := context.Background()

	_, err := svc.Exchange(ctx, "alice@example.com", "code")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := svc.Disconnect(ctx, "alice@example.com", "alice@example.com")
		require.NoError(t, err)
		assert.True(t, res.Success)
	}

	status, err := svc.Status(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, status.Connected)
}

func TestConnectionService_Disconnect_NeverConnected(t *testing.T) {
	svc, _ := newTestConnectionService(&fakeExchanger{})

	res, err := svc.Disconnect(context.Background(), "alice@example.com", "")

	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestConnectionService_Disconnect_IdentityMismatch(t *testing.T) {
	svc, _ := newTestConnectionService(&fakeExchanger{})
	ctx := context.Background()
	_, err := svc.Exchange(ctx, "bob@example.com", "code")
	require.NoError(t, err)

	res, err := svc.Disconnect(ctx, "alice@example.com", "bob@example.com")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrIdentityMismatch)

	status, err := svc.Status(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, status.Connected, "another user's connection must survive")
}

func TestConnectionService_AuthorizeURL(t *testing.T) {
	svc, _ := newTestConnectionService(&fakeExchanger{})
	ctx := context.Background()

	u, err := svc.AuthorizeURL(ctx, "alice@example.com", "fixed")
	require.NoError(t, err)
	assert.Contains(t, u, "state=fixed")

	u, err = svc.AuthorizeURL(ctx, "alice@example.com", "")
	require.NoError(t, err)
	assert.NotContains(t, u, "state=&")
	assert.Greater(t, len(u), len("https://api.notion.com/v1/oauth/authorize?state="))

	_, err = svc.AuthorizeURL(ctx, "", "x")
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestConnectionService_NotConfigured(t *testing.T) {
	svc := NewConnectionService(nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Exchange(ctx, "a@b.c", "code")
	assert.ErrorIs(t, err, domain.ErrNotImplemented)
	_, err = svc.Status(ctx, "a@b.c")
	assert.ErrorIs(t, err, domain.ErrNotImplemented)
	_, err = svc.Disconnect(ctx, "a@b.c", "")
	assert.ErrorIs(t, err, domain.ErrNotImplemented)
	_, err = svc.AuthorizeURL(ctx, "a@b.c", "")
	assert.ErrorIs(t, err, domain.ErrNotImplemented)
}
