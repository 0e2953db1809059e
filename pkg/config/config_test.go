package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/observability"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("CAMPUSGATE_ACCESS_TOKEN_SECRET", "access")
	t.Setenv("CAMPUSGATE_REFRESH_TOKEN_SECRET", "refresh")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setSecrets(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.APIKeyTTL)
	assert.Equal(t, cfg.Auth.RefreshTokenTTL, cfg.Cookies.RefreshMaxAge)
	assert.True(t, cfg.Cookies.Secure)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.Level())
	assert.Equal(t, "@every 1h", cfg.Janitor.Schedule)
	assert.Equal(t, 2, cfg.Audit.Workers)
	assert.Equal(t, 1024, cfg.Audit.QueueSize)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	setSecrets(t)
	t.Setenv("CAMPUSGATE_PORT", "9090")
	t.Setenv("CAMPUSGATE_ACCESS_TOKEN_TTL", "15m")
	t.Setenv("CAMPUSGATE_CORS_ORIGINS", "https://a.edu, https://b.edu,")
	t.Setenv("CAMPUSGATE_TRUST_PROXY", "true")
	t.Setenv("CAMPUSGATE_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("CAMPUSGATE_LOG_LEVEL", "debug")
	t.Setenv("CAMPUSGATE_OTEL_SAMPLE_RATIO", "0.25")
	t.Setenv("CAMPUSGATE_MAX_BODY_BYTES", "2048")
	t.Setenv("CAMPUSGATE_AUDIT_QUEUE_SIZE", "64")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, []string{"https://a.edu", "https://b.edu"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Server.TrustProxy)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.Level())
	assert.InDelta(t, 0.25, cfg.Observability.OTel().SampleRatio, 1e-9)
	assert.Equal(t, int64(2048), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 64, cfg.Audit.QueueSize)
}

func TestLoadConfig_MalformedEnvKeepsDefault(t *testing.T) {
	setSecrets(t)
	t.Setenv("CAMPUSGATE_ACCESS_TOKEN_TTL", "soon")
	t.Setenv("CAMPUSGATE_BCRYPT_COST", "many")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultAccessTTL, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, auth.DefaultBcryptCost, cfg.Auth.BcryptCost)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campusgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7000"
  cors_origins: ["https://portal.example.edu"]
auth:
  access_token_secret: file-access
  refresh_token_secret: file-refresh
  refresh_token_ttl: 48h
redis:
  url: redis://file:6379/0
janitor:
  schedule: "0 3 * * *"
`), 0o600))

	t.Setenv(ConfigFileEnv, path)
	t.Setenv("CAMPUSGATE_PORT", "7001")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.Server.Port, "env wins over file")
	assert.Equal(t, []string{"https://portal.example.edu"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "file-access", cfg.Auth.AccessTokenSecret)
	assert.Equal(t, 48*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, "redis://file:6379/0", cfg.Redis.URL)
	assert.Equal(t, "0 3 * * *", cfg.Janitor.Schedule)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL, "unset keys keep defaults")
}

func TestLoadConfig_FileErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "read config file")
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
		t.Setenv(ConfigFileEnv, path)
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "parse config file")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Auth.AccessTokenSecret = "a"
		cfg.Auth.RefreshTokenSecret = "r"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing access secret", func(c *Config) { c.Auth.AccessTokenSecret = "" }, "access_token_secret"},
		{"blank refresh secret", func(c *Config) { c.Auth.RefreshTokenSecret = "  " }, "refresh_token_secret"},
		{"same secrets", func(c *Config) { c.Auth.RefreshTokenSecret = "a" }, "refresh_token_secret"},
		{"zero access ttl", func(c *Config) { c.Auth.AccessTokenTTL = 0 }, "access_token_ttl"},
		{"negative refresh ttl", func(c *Config) { c.Auth.RefreshTokenTTL = -time.Second }, "refresh_token_ttl"},
		{"zero key ttl", func(c *Config) { c.Auth.APIKeyTTL = 0 }, "api_key_ttl"},
		{"short access cookie", func(c *Config) { c.Cookies.AccessMaxAge = time.Minute }, "access_cookie_max_age"},
		{"short refresh cookie", func(c *Config) { c.Cookies.RefreshMaxAge = 24 * time.Hour }, "refresh_cookie_max_age"},
		{"no port", func(c *Config) { c.Server.Port = "" }, "port"},
		{"no database", func(c *Config) { c.Database.URL = "" }, "database_url"},
		{"bad rate limit", func(c *Config) { c.RateLimit.Window = 0 }, "rate_limit"},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, "otel_endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			var cfgErr *auth.ConfigurationError
			require.ErrorAs(t, cfg.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	t.Run("disabled rate limit skips checks", func(t *testing.T) {
		cfg := valid()
		cfg.RateLimit.Enabled = false
		cfg.RateLimit.Window = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoadConfig_MissingSecretsFail(t *testing.T) {
	t.Setenv("CAMPUSGATE_ACCESS_TOKEN_SECRET", "")
	t.Setenv("CAMPUSGATE_REFRESH_TOKEN_SECRET", "")

	_, err := LoadConfig()
	var cfgErr *auth.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "access_token_secret", cfgErr.Field)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CG_TEST_BOOL", "1")
	t.Setenv("CG_TEST_INT64", "9000000000")
	t.Setenv("CG_TEST_LIST", " , ")

	assert.True(t, getEnvBool("CG_TEST_BOOL", false))
	assert.False(t, getEnvBool("CG_TEST_UNSET", false))
	assert.Equal(t, int64(9000000000), getEnvInt64("CG_TEST_INT64", 0))
	assert.Nil(t, getEnvList("CG_TEST_LIST", []string{"x"}))
	assert.Equal(t, []string{"x"}, getEnvList("CG_TEST_UNSET", []string{"x"}))
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Auth.AccessTokenSecret = "access"
	cfg.Auth.RefreshTokenSecret = "refresh"
	cfg.Redis.URL = "redis://cache:6379/0"

	tokens, err := cfg.Auth.TokenService()
	require.NoError(t, err)
	pair, err := tokens.IssuePair(auth.Principal{ID: "u-1", Email: "a@x.edu", Role: auth.RoleStudent})
	require.NoError(t, err)
	_, err = tokens.Verify(pair.AccessToken, auth.TokenAccess)
	assert.NoError(t, err)

	cookies := cfg.Cookies.HTTP()
	assert.True(t, cookies.Secure)
	assert.Equal(t, cfg.Cookies.RefreshMaxAge, cookies.RefreshMaxAge)

	conn := cfg.Database.Connection()
	assert.Equal(t, cfg.Database.URL, conn.URL)
	assert.Equal(t, 20, conn.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, conn.MaxLifetime)

	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 10, cfg.Redis.Connection().PoolSize)

	limits := cfg.RateLimit.Limits()
	assert.Equal(t, 20, limits.RequestsPerWindow)
	assert.Equal(t, time.Minute, limits.WindowDuration)
	assert.Equal(t, 5, limits.BurstSize)
}

func TestTokenService_EmptySecret(t *testing.T) {
	_, err := Default().Auth.TokenService()
	var cfgErr *auth.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
