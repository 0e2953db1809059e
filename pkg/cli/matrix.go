package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/campusgate/pkg/api"
	"github.com/platinummonkey/campusgate/pkg/auth"
)

func newMatrixCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "matrix",
		Description: "Print the permission matrix derived from the route table",
		Flags:       newFlags("matrix", env),
	}
	format := cmd.Flags.String("format", "yaml", "Output format: yaml or table")

	cmd.Run = func(_ context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		matrix, err := api.DefaultMatrix()
		if err != nil {
			return err
		}

		switch *format {
		case "yaml":
			enc := yaml.NewEncoder(env.Out)
			enc.SetIndent(2)
			if err := enc.Encode(matrix); err != nil {
				return fmt.Errorf("encode matrix: %w", err)
			}
			return enc.Close()
		case "table":
			w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tTEMPLATE\tROLES")
			for _, e := range matrix.Entries() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Method, e.Template, joinRoles(e.Roles))
			}
			return w.Flush()
		default:
			return fmt.Errorf("unknown format %q", *format)
		}
	}
	return cmd
}

func newRoutesCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "routes",
		Description: "List every API route with its pipeline stages",
		Flags:       newFlags("routes", env),
	}

	cmd.Run = func(_ context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "METHODS\tTEMPLATE\tROLES\tAPI KEY\tRATE LIMITED")
		for _, rt := range api.DefaultRoutes() {
			roles := "public"
			if !rt.Public() {
				roles = joinRoles(rt.Roles)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\n",
				strings.Join(rt.Methods, ","), rt.Template(), roles, rt.APIKey, rt.RateLimited)
		}
		return w.Flush()
	}
	return cmd
}

func joinRoles(roles []auth.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}
