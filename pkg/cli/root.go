package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/platinummonkey/campusgate/pkg/config"
	"github.com/platinummonkey/campusgate/pkg/observability"
	"github.com/platinummonkey/campusgate/pkg/storage/postgres"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// Env carries what commands need from the outside world. Tests replace the
// loaders; main uses DefaultEnv.
type Env struct {
	Out        io.Writer
	Logger     *observability.Logger
	LoadConfig func() (*config.Config, error)
	OpenDB     func(ctx context.Context, cfg *config.Config) (*sql.DB, error)
}

// DefaultEnv writes to stdout and reads configuration from the environment
func DefaultEnv() *Env {
	return &Env{
		Out:        os.Stdout,
		Logger:     observability.NewLogger(observability.InfoLevel, os.Stderr),
		LoadConfig: config.LoadConfig,
		OpenDB: func(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
			return postgres.Connect(ctx, cfg.Database.Connection())
		},
	}
}

// NewRootCommand creates the root command
func NewRootCommand(env *Env) *Command {
	if env == nil {
		env = DefaultEnv()
	}
	root := &Command{
		Name:        "campusgate",
		Description: "campusgate operator CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("campusgate", flag.ContinueOnError),
	}

	for _, cmd := range []*Command{
		newMatrixCommand(env),
		newRoutesCommand(env),
		newHashKeyCommand(env),
		newCreateAdminCommand(env),
		newMigrateCommand(env),
		newAuditCommand(env),
		newPurgeKeysCommand(env),
	} {
		root.Subcommands[cmd.Name] = cmd
	}

	return root
}

// Execute dispatches args to a subcommand
func (c *Command) Execute(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return c.usage(out)
	}

	// Check for help flag
	if strings.EqualFold(args[0], "-h") || strings.EqualFold(args[0], "--help") || args[0] == "help" {
		return c.usage(out)
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// newFlags returns a flag set that reports errors instead of exiting
func newFlags(name string, env *Env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.Out)
	return fs
}

// withDatabase loads the configuration and opens the database for one command
func withDatabase(ctx context.Context, env *Env, fn func(cfg *config.Config, db *sql.DB) error) error {
	cfg, err := env.LoadConfig()
	if err != nil {
		return err
	}
	db, err := env.OpenDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	return fn(cfg, db)
}
