//go:build integration

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/campusgate/pkg/academics"
	"github.com/platinummonkey/campusgate/pkg/api"
	"github.com/platinummonkey/campusgate/pkg/audit"
	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/httputil"
	"github.com/platinummonkey/campusgate/pkg/observability"
	"github.com/platinummonkey/campusgate/pkg/storage/postgres"
)

// setupPostgres starts a disposable PostgreSQL container and applies the
// migrations. The test is skipped when no container runtime is available.
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("campusgate_test"),
		tcpostgres.WithUsername("campusgate"),
		tcpostgres.WithPassword("campusgate_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := postgres.Connect(ctx, postgres.ConnectionConfig{URL: connStr, MaxOpenConns: 10})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	applied, err := postgres.Migrate(ctx, db)
	require.NoError(t, err)
	require.Len(t, applied, 3)
	return db
}

type stack struct {
	db        *sql.DB
	auth      *auth.Service
	academics *academics.Service
	audit     *audit.DBLogger
	server    *httptest.Server
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db := setupPostgres(t)

	tokens, err := auth.NewTokenService("integration-access", "integration-refresh")
	require.NoError(t, err)
	credentials := postgres.NewCredentialStore(db)
	authService := auth.NewService(credentials, tokens,
		auth.WithBcryptCost(4),
		auth.WithKeyLookup(auth.NewCachedKeyFinder(credentials, 16, time.Minute)),
	)
	academicsService := academics.NewService(postgres.NewAcademicsStore(db))

	auditLogger, err := audit.NewDBLogger(db)
	require.NoError(t, err)

	cookies := httputil.DefaultCookieConfig()
	cookies.Secure = false

	server, err := api.NewServer(api.Options{
		Auth:      authService,
		Academics: academicsService,
		Cookies:   cookies,
		Logger:    observability.NewLogger(observability.ErrorLevel, io.Discard),
		Audit:     auditLogger,
		Health:    observability.NewHealthChecker(db, nil, "test"),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	return &stack{db: db, auth: authService, academics: academicsService, audit: auditLogger, server: ts}
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Success    bool            `json:"success"`
}

// client is a browser-like caller: it keeps cookies and an optional API key
type client struct {
	t      *testing.T
	base   string
	http   *http.Client
	apiKey string
}

func (s *stack) newClient(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: s.server.URL + api.APIPrefix, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path string, body interface{}) (int, envelope) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (c *client) login(email, password string) {
	c.t.Helper()
	status, env := c.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(c.t, http.StatusOK, status, env.Message)
}

func (c *client) issueKey() {
	c.t.Helper()
	status, env := c.do(http.MethodPost, "/auth/generate-key", nil)
	require.Equal(c.t, http.StatusCreated, status, env.Message)
	var key struct {
		APIKey string `json:"apiKey"`
	}
	require.NoError(c.t, json.Unmarshal(env.Data, &key))
	c.apiKey = key.APIKey
}
