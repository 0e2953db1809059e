package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/campusgate/pkg/academics"
	"github.com/platinummonkey/campusgate/pkg/api"
	"github.com/platinummonkey/campusgate/pkg/audit"
	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/config"
	"github.com/platinummonkey/campusgate/pkg/middleware"
	"github.com/platinummonkey/campusgate/pkg/observability"
	"github.com/platinummonkey/campusgate/pkg/storage/postgres"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	bootLogger := observability.NewLogger(observability.InfoLevel, os.Stderr)

	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("campusgate stopped with an error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelCfg := cfg.Observability.OTel()
	if otelCfg.ServiceVersion == "dev" {
		otelCfg.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return err
	}

	db, err := postgres.Connect(ctx, cfg.Database.Connection())
	if err != nil {
		return err
	}
	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		db.Close()
		return err
	}
	if len(applied) > 0 {
		logger.WithField("migrations", applied).Info("Applied database migrations")
	}

	var redisClient *postgres.RedisClient
	if cfg.Redis.Enabled() {
		redisClient, err = postgres.NewRedisClient(ctx, cfg.Redis.Connection())
		if err != nil {
			db.Close()
			return err
		}
		logger.Info("Connected to Redis")
	}

	credentials := postgres.NewCredentialStore(db)
	var keyLookup auth.APIKeyFinder = credentials
	if redisClient != nil {
		keyLookup = postgres.NewRedisKeyFinder(redisClient.Client(), keyLookup, cfg.Auth.KeyCacheTTL)
	}
	keyLookup = auth.NewCachedKeyFinder(keyLookup, cfg.Auth.KeyCacheSize, cfg.Auth.KeyCacheTTL)

	tokens, err := cfg.Auth.TokenService()
	if err != nil {
		return err
	}
	authService := auth.NewService(credentials, tokens,
		auth.WithKeyTTL(cfg.Auth.APIKeyTTL),
		auth.WithKeyLookup(keyLookup),
		auth.WithBcryptCost(cfg.Auth.BcryptCost),
	)
	academicsService := academics.NewService(postgres.NewAcademicsStore(db))

	auditLogger, err := openAudit(cfg, db, logger)
	if err != nil {
		return err
	}

	var limiter middleware.Limiter
	if cfg.RateLimit.Enabled {
		if redisClient != nil {
			limiter = middleware.NewDistributedRateLimiter(redisClient.Client(), cfg.RateLimit.Limits(), "campusgate:ratelimit")
		} else {
			local := middleware.NewRateLimiter(cfg.RateLimit.Limits())
			local.StartCleanup(ctx)
			limiter = local
		}
	}

	opts := api.Options{
		Auth:         authService,
		Academics:    academicsService,
		Cookies:      cfg.Cookies.HTTP(),
		Logger:       logger,
		Audit:        auditLogger,
		Limiter:      limiter,
		TrustProxy:   cfg.Server.TrustProxy,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Tracing:      providers != nil,
	}
	var redisHealth redis.UniversalClient
	if redisClient != nil {
		redisHealth = redisClient.Client()
	}
	opts.Health = observability.NewHealthChecker(db, redisHealth, version)
	if cfg.Observability.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewDBStatsCollector(db, "campusgate"),
		)
		opts.Metrics = observability.NewMetrics(registry)
		opts.Gatherer = registry
	}

	server, err := api.NewServer(opts)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register("database", func(context.Context) error { return db.Close() })
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register("audit", func(context.Context) error { return auditLogger.Close() })
	shutdown.Register("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	serverErr := make(chan error, 1)
	go func() {
		defer observability.RecoverPanic(logger, "http server")
		logger.WithFields(map[string]interface{}{
			"addr":    httpServer.Addr,
			"version": version,
		}).Info("Starting campusgate")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	waitCtx, stopWaiting := context.WithCancel(ctx)
	defer stopWaiting()
	go func() {
		if err, ok := <-serverErr; ok && err != nil {
			logger.WithError(err).Error("HTTP server failed")
			stopWaiting()
		}
	}()

	return shutdown.WaitForShutdown(waitCtx)
}

// openAudit fans events out to stdout or the audit file, plus the audit
// table when enabled. Table writes are queued off the request path.
func openAudit(cfg *config.Config, db *sql.DB, logger *observability.Logger) (audit.Logger, error) {
	var sinks []audit.Logger
	if cfg.Audit.File != "" {
		file, err := audit.OpenFileLogger(cfg.Audit.File)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, file)
	} else {
		sinks = append(sinks, audit.NewLogrusLogger(os.Stdout))
	}
	if cfg.Audit.Database {
		dbLogger, err := audit.NewDBLogger(db)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, audit.NewAsyncLogger(dbLogger, audit.AsyncConfig{
			Workers:      cfg.Audit.Workers,
			QueueSize:    cfg.Audit.QueueSize,
			WriteTimeout: cfg.Database.ConnectTimeout,
			DrainTimeout: cfg.Server.ShutdownTimeout,
		}, logger))
	}
	return audit.NewMultiLogger(sinks...), nil
}
