package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/campusgate/pkg/audit"
	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/cli"
	"github.com/platinummonkey/campusgate/pkg/config"
	"github.com/platinummonkey/campusgate/pkg/observability"
	"github.com/platinummonkey/campusgate/pkg/storage/postgres"
)

var (
	schedule = flag.String("schedule", "", "Cron schedule for the expired API key purge (default from CAMPUSGATE_JANITOR_SCHEDULE)")
	runOnce  = flag.Bool("run-once", false, "Purge once and exit")
)

func main() {
	flag.Parse()

	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}
	logger = observability.NewLogger(cfg.Observability.Level(), os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.Database.Connection())
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	tokens, err := cfg.Auth.TokenService()
	if err != nil {
		logger.WithError(err).Error("Invalid token configuration")
		os.Exit(1)
	}
	svc := auth.NewService(postgres.NewCredentialStore(db), tokens, auth.WithKeyTTL(cfg.Auth.APIKeyTTL))

	var sink audit.Logger = audit.NewLogrusLogger(os.Stdout)
	if cfg.Audit.Database {
		if dbLogger, err := audit.NewDBLogger(db); err == nil {
			sink = audit.NewMultiLogger(sink, dbLogger)
		}
	}
	defer sink.Close()

	purge := func() {
		defer observability.RecoverPanic(logger, "api key purge")
		if _, err := cli.PurgeExpiredKeys(ctx, svc, logger, sink); err != nil {
			logger.WithError(err).Error("Expired API key purge failed")
		}
	}

	if *runOnce {
		purge()
		return
	}

	expr := *schedule
	if expr == "" {
		expr = cfg.Janitor.Schedule
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(expr, purge); err != nil {
		logger.WithError(err).WithField("schedule", expr).Error("Invalid janitor schedule")
		os.Exit(1)
	}

	logger.WithField("schedule", expr).Info("Janitor started")
	c.Start()

	<-ctx.Done()
	logger.Info("Shutting down janitor")
	<-c.Stop().Done()
}
