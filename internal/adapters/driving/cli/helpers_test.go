package cli

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/session"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driving/server"
	"github.com/custodia-labs/sercha-connect/internal/config"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/services"
)

const testSecret = "cli-test-secret"

// stubExchanger accepts every code except "rejected".
type stubExchanger struct {
	mu    sync.Mutex
	codes []string
}

func (s *stubExchanger) AuthCodeURL(state string) string {
	return "https://api.notion.com/v1/oauth/authorize?owner=user&state=" + url.QueryEscape(state)
}

func (s *stubExchanger) ExchangeCode(_ context.Context, code string) (*domain.OAuthToken, error) {
	s.mu.Lock()
	s.codes = append(s.codes, code)
	s.mu.Unlock()
	if code == "rejected" {
		return nil, &domain.ProviderError{Code: domain.OAuthErrorInvalidGrant, Description: "The code has expired."}
	}
	return &domain.OAuthToken{AccessToken: "secret_" + code, WorkspaceID: "ws-123", WorkspaceName: "Acme"}, nil
}

func (s *stubExchanger) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

// cliEnv runs commands against an in-process connection server.
type cliEnv struct {
	out        *bytes.Buffer
	errOut     *bytes.Buffer
	sessions   *memory.SessionStore
	exchanger  *stubExchanger
	jwt        *session.JWTService
	configPath string
	port       int
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	exchanger := &stubExchanger{}
	jwtSvc := session.NewJWTService(testSecret, time.Hour, "")
	connections := services.NewConnectionService(memory.NewConnectionStore(), memory.NewCodeLedger(), exchanger, nil)
	srv := httptest.NewServer(server.New(connections, jwtSvc, nil, nil).Handler())
	t.Cleanup(srv.Close)

	sessions := memory.NewSessionStore("")
	original := openSessionStore
	openSessionStore = func(config.ClientConfig) (sessionStore, error) { return sessions, nil }
	t.Cleanup(func() { openSessionStore = original })

	port := freePort(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := fmt.Sprintf(`
[server]
session_secret = %q

[client]
server_url = %q
redirect_uri = "http://127.0.0.1:%d/callback"
retry_max = 0
timeout = "5s"
`, testSecret, srv.URL, port)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	return &cliEnv{
		out:        new(bytes.Buffer),
		errOut:     new(bytes.Buffer),
		sessions:   sessions,
		exchanger:  exchanger,
		jwt:        jwtSvc,
		configPath: configPath,
		port:       port,
	}
}

func (e *cliEnv) login(t *testing.T, email string) domain.SessionCredential {
	t.Helper()
	cred, err := e.jwt.Issue(domain.UserInfo{Email: email, Name: "Alice"})
	require.NoError(t, err)
	require.NoError(t, e.sessions.Save(context.Background(), cred))
	return cred
}

func (e *cliEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags()
	e.out.Reset()
	e.errOut.Reset()
	rootCmd.SetOut(e.out)
	rootCmd.SetErr(e.errOut)
	rootCmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	return rootCmd.Execute()
}

// resetFlags restores flag variables, which persist between Execute calls.
func resetFlags() {
	cfgPath = ""
	verbose = false
	statusJSON = false
	connectNoBrowser = false
	serveAddr = ""
	serveEphemeral = false
	issueEmail = ""
	issueName = ""
	issueSave = false
}
