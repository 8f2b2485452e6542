package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/importcheck/pkg/mcp"
	"github.com/Sumatoshi-tech/importcheck/pkg/observability"
	"github.com/Sumatoshi-tech/importcheck/pkg/version"
)

func newMCPCommand(globals *globalFlags, newExecutor mcp.ExecutorFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes one tool:
  - importcheck_run: execute import statements (inline or from a file) in a
    shared interpreter scope and return the JSON report

Interpreter and logging settings come from the same config file and
IMPORTCHECK_* environment variables as the check command. Logs are JSON on
stderr; stdout carries the protocol.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := globals.loadConfig()
			if err != nil {
				return err
			}

			obsCfg, err := cfg.ObservabilityConfig(version.Version, observability.ModeMCP)
			if err != nil {
				return err
			}

			obsCfg.LogJSON = true
			obsCfg.LogOutput = cmd.ErrOrStderr()

			if globals.verbose {
				obsCfg.LogLevel = slog.LevelDebug
			}

			providers, err := observability.Init(obsCfg)
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			metrics, err := observability.NewCheckMetrics(providers.Meter)
			if err != nil {
				return err
			}

			execOpts, err := cfg.ExecutorOptions(nil, providers.Logger)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:      providers.Logger,
				Metrics:     metrics,
				Tracer:      providers.Tracer,
				Mode:        cfg.Mode,
				Executor:    execOpts,
				NewExecutor: newExecutor,
			})

			return srv.Run(cmd.Context())
		},
	}
}
