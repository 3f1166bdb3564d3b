// Package cli implements the wx command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/i474232898/wx-briefing/internal/app"
	"github.com/i474232898/wx-briefing/internal/config"
	"github.com/i474232898/wx-briefing/internal/logging"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	offline    bool
	trustTools bool
	jsonOut    bool
	debug      bool
	verbose    bool
	units      string
	style      string
	persona    string
}

// NewRootCmd builds the wx command tree. A bare "wx" prints the worldview;
// "wx some question" asks a free-form question.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "wx [question]",
		Short: "Weather briefings from live data and an AI forecaster",
		Long: `wx resolves a place, gathers quick observations, profiles and alerts,
and asks an AI provider chain for a structured briefing. Without credentials
or with --offline it answers with a deterministic fallback.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.build(cmd)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				wv := a.Briefing.Worldview(cmd.Context(), false)
				return printWorldview(cmd.OutOrStdout(), wv, g.jsonOut)
			}
			res := a.Briefing.Question(cmd.Context(), strings.Join(args, " "), g.verbose)
			return printResult(cmd.OutOrStdout(), res, g.jsonOut, g.debug, g.verbose)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&g.offline, "offline", false, "never touch the network; use the deterministic fallback")
	pf.BoolVar(&g.trustTools, "trust-tools", false, "allow quick observation, profile and alert fetches")
	pf.BoolVar(&g.jsonOut, "json", false, "print results as JSON")
	pf.BoolVar(&g.debug, "debug", false, "debug logging and fetch diagnostics")
	pf.BoolVar(&g.verbose, "verbose", false, "ask for a longer briefing")
	pf.StringVar(&g.units, "units", "", "imperial or metric")
	pf.StringVar(&g.style, "style", "", "briefing style")
	pf.StringVar(&g.persona, "persona", "", "audience persona")

	root.AddCommand(
		newForecastCmd(g),
		newRiskCmd(g),
		newAlertsCmd(g),
		newExplainCmd(g),
		newWorldviewCmd(g),
		newServeCmd(g),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree and reports errors on stderr.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// build loads the configuration, applies explicitly set flags and wires the app.
func (g *globalFlags) build(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := g.apply(cmd, cfg); err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if g.debug {
		level = "debug"
	}
	logger := logging.New(level, cfg.Log.Format, cmd.ErrOrStderr())

	return app.New(cfg, logger)
}

func (g *globalFlags) apply(cmd *cobra.Command, cfg *config.AppConfig) error {
	flags := cmd.Flags()
	if flags.Changed("offline") {
		cfg.Offline = g.offline
	}
	if flags.Changed("trust-tools") {
		cfg.TrustTools = g.trustTools
	}
	if flags.Changed("units") {
		cfg.Units = strings.ToLower(g.units)
	}
	if flags.Changed("style") {
		cfg.Style = g.style
	}
	if flags.Changed("persona") {
		cfg.Persona = g.persona
	}
	return cfg.Validate()
}
