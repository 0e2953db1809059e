package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/httputil"
	"github.com/platinummonkey/campusgate/pkg/middleware"
	"github.com/platinummonkey/campusgate/pkg/observability"
	"github.com/platinummonkey/campusgate/pkg/storage/postgres"
)

// ConfigFileEnv names the optional YAML file read before env overrides
const ConfigFileEnv = "CAMPUSGATE_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Cookies       CookieConfig        `yaml:"cookies"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
	Janitor       JanitorConfig       `yaml:"janitor"`
	Audit         AuditConfig         `yaml:"audit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// TrustProxy keys rate limits by the first X-Forwarded-For hop
	TrustProxy bool `yaml:"trust_proxy"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AuthConfig holds token, key and password settings
type AuthConfig struct {
	AccessTokenSecret  string        `yaml:"access_token_secret"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"`
	Issuer             string        `yaml:"issuer"`
	APIKeyTTL          time.Duration `yaml:"api_key_ttl"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
	KeyCacheSize       int           `yaml:"key_cache_size"`
	KeyCacheTTL        time.Duration `yaml:"key_cache_ttl"`
}

// TokenService builds the signer and verifier for both token kinds
func (a AuthConfig) TokenService() (*auth.TokenService, error) {
	return auth.NewTokenService(a.AccessTokenSecret, a.RefreshTokenSecret,
		auth.WithAccessTTL(a.AccessTokenTTL),
		auth.WithRefreshTTL(a.RefreshTokenTTL),
		auth.WithIssuer(a.Issuer),
	)
}

// CookieConfig holds the auth cookie attributes
type CookieConfig struct {
	Secure        bool          `yaml:"secure"`
	Domain        string        `yaml:"domain"`
	AccessMaxAge  time.Duration `yaml:"access_max_age"`
	RefreshMaxAge time.Duration `yaml:"refresh_max_age"`
}

// HTTP converts the settings for the cookie writers
func (k CookieConfig) HTTP() httputil.CookieConfig {
	return httputil.CookieConfig{
		Secure:        k.Secure,
		Domain:        k.Domain,
		AccessMaxAge:  k.AccessMaxAge,
		RefreshMaxAge: k.RefreshMaxAge,
	}
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// Connection converts the settings for postgres.Connect
func (d DatabaseConfig) Connection() postgres.ConnectionConfig {
	return postgres.ConnectionConfig{
		URL:          d.URL,
		MaxOpenConns: d.MaxOpenConns,
		MaxIdleConns: d.MaxIdleConns,
		MaxLifetime:  d.ConnMaxLifetime,
		Timeout:      d.ConnectTimeout,
	}
}

// RedisConfig holds Redis settings. An empty URL selects the in-memory
// rate limiter.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// Enabled reports whether a Redis URL is configured
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// Connection converts the settings for postgres.NewRedisClient
func (r RedisConfig) Connection() postgres.RedisConfig {
	return postgres.RedisConfig{
		URL:      r.URL,
		Password: r.Password,
		DB:       r.DB,
		PoolSize: r.PoolSize,
	}
}

// RateLimitConfig limits the public auth routes per client
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
	Burst             int           `yaml:"burst"`
}

// Limits converts the settings for the rate limiters
func (l RateLimitConfig) Limits() *middleware.RateLimitConfig {
	return &middleware.RateLimitConfig{
		RequestsPerWindow: l.RequestsPerWindow,
		WindowDuration:    l.Window,
		BurstSize:         l.Burst,
	}
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level parses LogLevel
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// JanitorConfig schedules housekeeping
type JanitorConfig struct {
	// Schedule is a robfig/cron expression
	Schedule string `yaml:"schedule"`
}

// AuditConfig selects audit sinks. Events always go to stdout unless File is
// set.
type AuditConfig struct {
	File     string `yaml:"file"`
	Database bool   `yaml:"database"`
	// Database writes go through a bounded queue served by Workers goroutines
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// Default returns the built-in defaults. Secrets have no default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Auth: AuthConfig{
			AccessTokenTTL:  auth.DefaultAccessTTL,
			RefreshTokenTTL: auth.DefaultRefreshTTL,
			Issuer:          auth.DefaultIssuer,
			APIKeyTTL:       auth.DefaultKeyTTL,
			BcryptCost:      auth.DefaultBcryptCost,
			KeyCacheSize:    auth.DefaultKeyCacheSize,
			KeyCacheTTL:     auth.DefaultKeyCacheTTL,
		},
		Cookies: CookieConfig{
			Secure:        true,
			AccessMaxAge:  auth.DefaultAccessTTL,
			RefreshMaxAge: auth.DefaultRefreshTTL,
		},
		Database: DatabaseConfig{
			URL:             "postgres://localhost:5432/campusgate?sslmode=disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  10 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize: 10,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 20,
			Window:            time.Minute,
			Burst:             5,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "campusgate",
			OTelServiceVersion: "dev",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
		Janitor: JanitorConfig{
			Schedule: "@every 1h",
		},
		Audit: AuditConfig{
			Database:  true,
			Workers:   2,
			QueueSize: 1024,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by CAMPUSGATE_CONFIG_FILE and CAMPUSGATE_* environment variables, in
// that order, and validates the result
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFile merges a YAML file over cfg
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("CAMPUSGATE_HOST", s.Host)
	s.Port = getEnv("CAMPUSGATE_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("CAMPUSGATE_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("CAMPUSGATE_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("CAMPUSGATE_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("CAMPUSGATE_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("CAMPUSGATE_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.CORSOrigins = getEnvList("CAMPUSGATE_CORS_ORIGINS", s.CORSOrigins)
	s.TrustProxy = getEnvBool("CAMPUSGATE_TRUST_PROXY", s.TrustProxy)

	a := &c.Auth
	a.AccessTokenSecret = getEnv("CAMPUSGATE_ACCESS_TOKEN_SECRET", a.AccessTokenSecret)
	a.RefreshTokenSecret = getEnv("CAMPUSGATE_REFRESH_TOKEN_SECRET", a.RefreshTokenSecret)
	a.AccessTokenTTL = getEnvDuration("CAMPUSGATE_ACCESS_TOKEN_TTL", a.AccessTokenTTL)
	a.RefreshTokenTTL = getEnvDuration("CAMPUSGATE_REFRESH_TOKEN_TTL", a.RefreshTokenTTL)
	a.Issuer = getEnv("CAMPUSGATE_TOKEN_ISSUER", a.Issuer)
	a.APIKeyTTL = getEnvDuration("CAMPUSGATE_API_KEY_TTL", a.APIKeyTTL)
	a.BcryptCost = getEnvInt("CAMPUSGATE_BCRYPT_COST", a.BcryptCost)
	a.KeyCacheSize = getEnvInt("CAMPUSGATE_KEY_CACHE_SIZE", a.KeyCacheSize)
	a.KeyCacheTTL = getEnvDuration("CAMPUSGATE_KEY_CACHE_TTL", a.KeyCacheTTL)

	k := &c.Cookies
	k.Secure = getEnvBool("CAMPUSGATE_COOKIE_SECURE", k.Secure)
	k.Domain = getEnv("CAMPUSGATE_COOKIE_DOMAIN", k.Domain)
	k.AccessMaxAge = getEnvDuration("CAMPUSGATE_ACCESS_COOKIE_MAX_AGE", k.AccessMaxAge)
	k.RefreshMaxAge = getEnvDuration("CAMPUSGATE_REFRESH_COOKIE_MAX_AGE", k.RefreshMaxAge)

	d := &c.Database
	d.URL = getEnv("CAMPUSGATE_DATABASE_URL", d.URL)
	d.MaxOpenConns = getEnvInt("CAMPUSGATE_DATABASE_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("CAMPUSGATE_DATABASE_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvDuration("CAMPUSGATE_DATABASE_CONN_MAX_LIFETIME", d.ConnMaxLifetime)
	d.ConnectTimeout = getEnvDuration("CAMPUSGATE_DATABASE_CONNECT_TIMEOUT", d.ConnectTimeout)

	r := &c.Redis
	r.URL = getEnv("CAMPUSGATE_REDIS_URL", r.URL)
	r.Password = getEnv("CAMPUSGATE_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("CAMPUSGATE_REDIS_DB", r.DB)
	r.PoolSize = getEnvInt("CAMPUSGATE_REDIS_POOL_SIZE", r.PoolSize)

	l := &c.RateLimit
	l.Enabled = getEnvBool("CAMPUSGATE_RATE_LIMIT_ENABLED", l.Enabled)
	l.RequestsPerWindow = getEnvInt("CAMPUSGATE_RATE_LIMIT_REQUESTS", l.RequestsPerWindow)
	l.Window = getEnvDuration("CAMPUSGATE_RATE_LIMIT_WINDOW", l.Window)
	l.Burst = getEnvInt("CAMPUSGATE_RATE_LIMIT_BURST", l.Burst)

	o := &c.Observability
	o.LogLevel = getEnv("CAMPUSGATE_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("CAMPUSGATE_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("CAMPUSGATE_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("CAMPUSGATE_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("CAMPUSGATE_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("CAMPUSGATE_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("CAMPUSGATE_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("CAMPUSGATE_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)

	c.Janitor.Schedule = getEnv("CAMPUSGATE_JANITOR_SCHEDULE", c.Janitor.Schedule)

	c.Audit.File = getEnv("CAMPUSGATE_AUDIT_FILE", c.Audit.File)
	c.Audit.Database = getEnvBool("CAMPUSGATE_AUDIT_DATABASE", c.Audit.Database)
	c.Audit.Workers = getEnvInt("CAMPUSGATE_AUDIT_WORKERS", c.Audit.Workers)
	c.Audit.QueueSize = getEnvInt("CAMPUSGATE_AUDIT_QUEUE_SIZE", c.Audit.QueueSize)
}

func invalid(field, reason string) error {
	return &auth.ConfigurationError{Field: field, Reason: reason}
}

// Validate checks the configuration. Every failure is a
// *auth.ConfigurationError and is fatal at startup.
func (c *Config) Validate() error {
	a := c.Auth
	switch {
	case strings.TrimSpace(a.AccessTokenSecret) == "":
		return invalid("access_token_secret", "must be set")
	case strings.TrimSpace(a.RefreshTokenSecret) == "":
		return invalid("refresh_token_secret", "must be set")
	case a.AccessTokenSecret == a.RefreshTokenSecret:
		return invalid("refresh_token_secret", "must differ from access_token_secret")
	case a.AccessTokenTTL <= 0:
		return invalid("access_token_ttl", "must be positive")
	case a.RefreshTokenTTL <= 0:
		return invalid("refresh_token_ttl", "must be positive")
	case a.APIKeyTTL <= 0:
		return invalid("api_key_ttl", "must be positive")
	}

	if c.Cookies.AccessMaxAge < a.AccessTokenTTL {
		return invalid("access_cookie_max_age", "must not be shorter than access_token_ttl")
	}
	if c.Cookies.RefreshMaxAge < a.RefreshTokenTTL {
		return invalid("refresh_cookie_max_age", "must not be shorter than refresh_token_ttl")
	}

	if c.Server.Port == "" {
		return invalid("port", "must be set")
	}
	if c.Database.URL == "" {
		return invalid("database_url", "must be set")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0 {
			return invalid("rate_limit", "requests and window must be positive when enabled")
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return invalid("otel_endpoint", "required when OpenTelemetry is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return invalid("otel_service_name", "required when OpenTelemetry is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
