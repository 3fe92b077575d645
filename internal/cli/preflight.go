package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eliseohh/anydownbot/internal/config"
	"github.com/eliseohh/anydownbot/internal/preflight"
)

// ExecutePreflight runs the preflight command as the whole program, passing
// through the process arguments.
func ExecutePreflight() {
	cmd := NewRootCmd()
	cmd.SetArgs(append([]string{"preflight"}, os.Args[1:]...))
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newPreflightCmd(g *globalFlags, env preflight.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check tools, credentials and paths before starting the bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "🛡️  Running preflight checks...")
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			return runPreflight(cmd, cfg, env)
		},
	}
}

func runPreflight(cmd *cobra.Command, cfg config.Config, env preflight.Env) error {
	out := cmd.OutOrStdout()
	findings := preflight.Run(cfg, env)
	for _, f := range findings {
		icon := "✅"
		switch f.Severity {
		case preflight.Warning:
			icon = "⚠️ "
		case preflight.Error:
			icon = "❌"
		}
		fmt.Fprintf(out, "%s [%s] %s\n", icon, f.Check, f.Detail)
	}

	if n := preflight.Failed(findings); n > 0 {
		return fmt.Errorf("%d check(s) failed", n)
	}
	fmt.Fprintln(out, "✅ Ready to run.")
	return nil
}
