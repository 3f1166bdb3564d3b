package cli

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/i474232898/wx-briefing/internal/briefing"
	"github.com/i474232898/wx-briefing/internal/common"
)

func newForecastCmd(g *globalFlags) *cobra.Command {
	var when, horizon, focus string

	cmd := &cobra.Command{
		Use:   "forecast <place>",
		Short: "Forecast briefing for a place",
		Example: `  wx forecast "Denver, CO" --when "tomorrow 6am" --horizon 12h --focus snow
  wx forecast 39.74,-104.99 --trust-tools`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.build(cmd)
			if err != nil {
				return err
			}
			res := a.Briefing.Forecast(cmd.Context(), briefing.ForecastParams{
				Place:   strings.Join(args, " "),
				When:    when,
				Horizon: horizon,
				Focus:   focus,
				Verbose: g.verbose,
			})
			return printResult(cmd.OutOrStdout(), res, g.jsonOut, g.debug, g.verbose)
		},
	}
	cmd.Flags().StringVar(&when, "when", "", `start of the window, e.g. "tonight" or "2026-06-01 15:00"`)
	cmd.Flags().StringVar(&horizon, "horizon", "24h", "window length: 6h, 12h, 24h or 3d")
	cmd.Flags().StringVar(&focus, "focus", "", "hazard to focus on")
	return cmd
}

func newRiskCmd(g *globalFlags) *cobra.Command {
	var hazards string

	cmd := &cobra.Command{
		Use:   "risk <place>",
		Short: "Hazard risk assessment for a place",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.build(cmd)
			if err != nil {
				return err
			}
			res := a.Briefing.Risk(cmd.Context(), strings.Join(args, " "), common.SplitList(hazards), g.verbose)
			return printResult(cmd.OutOrStdout(), res, g.jsonOut, g.debug, g.verbose)
		},
	}
	cmd.Flags().StringVar(&hazards, "hazards", "", "comma separated hazards, e.g. hail,wind")
	return cmd
}

func newAlertsCmd(g *globalFlags) *cobra.Command {
	var ai bool

	cmd := &cobra.Command{
		Use:   "alerts <place>",
		Short: "Active official alerts for a place",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.build(cmd)
			if err != nil {
				return err
			}
			res := a.Briefing.Alerts(cmd.Context(), strings.Join(args, " "), ai, g.verbose)
			return printResult(cmd.OutOrStdout(), res, g.jsonOut, g.debug, g.verbose)
		},
	}
	cmd.Flags().BoolVar(&ai, "ai", false, "triage active alerts with the AI forecaster")
	return cmd
}

func newExplainCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "explain",
		Short: "Explain the inputs and confidence behind the last answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.build(cmd)
			if err != nil {
				return err
			}
			out, err := a.Briefing.Explain(cmd.Context())
			if err != nil {
				return err
			}
			return printExplain(cmd.OutOrStdout(), out, g.jsonOut)
		},
	}
}

func newWorldviewCmd(g *globalFlags) *cobra.Command {
	var severe bool

	cmd := &cobra.Command{
		Use:   "worldview",
		Short: "US and Europe overview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.build(cmd)
			if err != nil {
				return err
			}
			wv := a.Briefing.Worldview(cmd.Context(), severe)
			return printWorldview(cmd.OutOrStdout(), wv, g.jsonOut)
		},
	}
	cmd.Flags().BoolVar(&severe, "severe", false, "only count severe-weather alerts")
	return cmd
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with periodic worldview refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.build(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				a.Config.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (defaults to PORT or 8080)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("wx version %s\n", version)
		},
	}
}
