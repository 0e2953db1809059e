package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/platinummonkey/campusgate/pkg/audit"
	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/config"
	"github.com/platinummonkey/campusgate/pkg/storage/postgres"
	"github.com/platinummonkey/campusgate/pkg/validation"
)

// AdminPasswordEnv supplies the create-admin password when -password is unset
const AdminPasswordEnv = "CAMPUSGATE_ADMIN_PASSWORD"

func newCreateAdminCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "create-admin",
		Description: "Create an Admin account (admins cannot self-register)",
		Flags:       newFlags("create-admin", env),
	}
	email := cmd.Flags.String("email", "", "Admin email address")
	fullName := cmd.Flags.String("full-name", "", "Admin full name")
	password := cmd.Flags.String("password", "", "Admin password (prefer "+AdminPasswordEnv+")")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		pw := *password
		if pw == "" {
			pw = os.Getenv(AdminPasswordEnv)
		}

		req := validation.RegisterRequest{
			Email:    strings.ToLower(strings.TrimSpace(*email)),
			Password: pw,
			FullName: strings.TrimSpace(*fullName),
			Role:     string(auth.RoleAdmin),
		}
		if err := validation.Default().Struct(&req, ""); err != nil {
			return err
		}

		return withDatabase(ctx, env, func(cfg *config.Config, db *sql.DB) error {
			svc, err := newAuthService(cfg, db)
			if err != nil {
				return err
			}
			user, err := svc.CreateAdmin(ctx, req.Email, req.Password, req.FullName)
			if errors.Is(err, auth.ErrConflict) {
				return fmt.Errorf("a user with email %s already exists", req.Email)
			}
			if err != nil {
				return err
			}

			audit.Emit(ctx, auditSink(cfg, db), audit.NewEvent(ctx, nil, audit.EventTypeAuthzRoleChange, audit.EventStatusSuccess).
				WithResource(user.ID).
				WithMessage("admin created from CLI").
				WithMetadata("role", string(user.Role)))
			fmt.Fprintf(env.Out, "created admin %s (%s)\n", user.Email, user.ID)
			return nil
		})
	}
	return cmd
}

func newMigrateCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Apply pending database migrations",
		Flags:       newFlags("migrate", env),
	}
	list := cmd.Flags.Bool("list", false, "List embedded migrations without applying them")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *list {
			migrations, err := postgres.Migrations()
			if err != nil {
				return err
			}
			for _, m := range migrations {
				fmt.Fprintln(env.Out, m.Version)
			}
			return nil
		}

		return withDatabase(ctx, env, func(_ *config.Config, db *sql.DB) error {
			applied, err := postgres.Migrate(ctx, db)
			for _, v := range applied {
				fmt.Fprintf(env.Out, "applied %s\n", v)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(env.Out, "database is up to date")
			}
			return nil
		})
	}
	return cmd
}

func newAuditCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "audit",
		Description: "Search the audit log",
		Flags:       newFlags("audit", env),
	}
	userID := cmd.Flags.String("user", "", "Only events for this user id")
	eventType := cmd.Flags.String("type", "", "Only events of this type, e.g. auth.login_failed")
	since := cmd.Flags.Duration("since", 24*time.Hour, "Only events newer than this")
	limit := cmd.Flags.Int("limit", 100, "Maximum number of events")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return withDatabase(ctx, env, func(_ *config.Config, db *sql.DB) error {
			logger, err := audit.NewDBLogger(db)
			if err != nil {
				return err
			}
			events, err := logger.Search(ctx, audit.SearchFilter{
				UserID:    *userID,
				EventType: audit.EventType(*eventType),
				Since:     time.Now().UTC().Add(-*since),
				Limit:     *limit,
			})
			if err != nil {
				return err
			}
			for _, e := range events {
				fmt.Fprintf(env.Out, "%s  %-24s %-8s %s %s\n",
					e.Timestamp.Format(time.RFC3339), e.Type, e.Status, e.Email, e.Message)
			}
			return nil
		})
	}
	return cmd
}
