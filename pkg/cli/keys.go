package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/campusgate/pkg/audit"
	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/config"
	"github.com/platinummonkey/campusgate/pkg/observability"
	"github.com/platinummonkey/campusgate/pkg/storage/postgres"
)

func newHashKeyCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "hash-key",
		Description: "Print the stored hash of an API key, for matching against api_keys.key_hash",
		Flags:       newFlags("hash-key", env),
	}

	cmd.Run = func(_ context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() != 1 {
			return errors.New("usage: campusgate hash-key <api-key>")
		}

		keys := auth.NewKeyGenerator()
		key := cmd.Flags.Arg(0)
		if err := keys.ValidateKeyFormat(key); err != nil {
			return fmt.Errorf("invalid API key: %w", err)
		}
		fmt.Fprintf(env.Out, "prefix: %s\nhash:   %s\n", keys.DisplayPrefix(key), keys.HashKey(key))
		return nil
	}
	return cmd
}

func newPurgeKeysCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "purge-keys",
		Description: "Delete expired API keys once",
		Flags:       newFlags("purge-keys", env),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return withDatabase(ctx, env, func(cfg *config.Config, db *sql.DB) error {
			svc, err := newAuthService(cfg, db)
			if err != nil {
				return err
			}
			n, err := PurgeExpiredKeys(ctx, svc, env.Logger, auditSink(cfg, db))
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "purged %d expired API keys\n", n)
			return nil
		})
	}
	return cmd
}

// PurgeExpiredKeys deletes expired API keys and records a maintenance audit
// event. It is shared by the purge-keys command and the janitor.
func PurgeExpiredKeys(ctx context.Context, svc *auth.Service, logger *observability.Logger, sink audit.Logger) (int64, error) {
	n, err := svc.PurgeExpiredAPIKeys(ctx)
	if err != nil {
		audit.Emit(ctx, sink, audit.NewEvent(ctx, nil, audit.EventTypeMaintenanceKeyPurge, audit.EventStatusFailure).
			WithMessage(err.Error()))
		return 0, fmt.Errorf("purge expired api keys: %w", err)
	}

	audit.Emit(ctx, sink, audit.NewEvent(ctx, nil, audit.EventTypeMaintenanceKeyPurge, audit.EventStatusSuccess).
		WithMetadata("deleted", n))
	if logger != nil {
		logger.WithField("deleted", n).Info("Expired API keys purged")
	}
	return n, nil
}

// newAuthService builds the credential service over db with the configured
// token and key settings
func newAuthService(cfg *config.Config, db *sql.DB) (*auth.Service, error) {
	tokens, err := cfg.Auth.TokenService()
	if err != nil {
		return nil, err
	}
	return auth.NewService(postgres.NewCredentialStore(db), tokens,
		auth.WithKeyTTL(cfg.Auth.APIKeyTTL),
		auth.WithBcryptCost(cfg.Auth.BcryptCost),
	), nil
}

// auditSink writes to the audit table when enabled and to stdout otherwise
func auditSink(cfg *config.Config, db *sql.DB) audit.Logger {
	if cfg.Audit.Database {
		if l, err := audit.NewDBLogger(db); err == nil {
			return l
		}
	}
	return audit.NewLogrusLogger(nil)
}
