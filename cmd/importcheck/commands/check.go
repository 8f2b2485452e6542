package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/importcheck/internal/config"
	"github.com/Sumatoshi-tech/importcheck/pkg/checker"
	"github.com/Sumatoshi-tech/importcheck/pkg/mcp"
	"github.com/Sumatoshi-tech/importcheck/pkg/observability"
	"github.com/Sumatoshi-tech/importcheck/pkg/pyimports"
	"github.com/Sumatoshi-tech/importcheck/pkg/report"
	"github.com/Sumatoshi-tech/importcheck/pkg/version"
)

// runOp labels CLI runs in metrics.
const runOp = "cli"

// checkCommand holds the flags of the root command, which checks one file.
type checkCommand struct {
	globals     *globalFlags
	newExecutor mcp.ExecutorFactory

	python          string
	mode            string
	format          string
	noColor         bool
	envFile         string
	metricsTextfile string
}

func (cc *checkCommand) registerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cc.python, "python", "", "Python interpreter (default: python3)")
	cmd.Flags().StringVar(&cc.mode, "mode", "", "Execution mode: session (one interpreter) or isolated (one per statement)")
	cmd.Flags().StringVar(&cc.format, "format", "", "Summary format: text, json, yaml, table")
	cmd.Flags().BoolVar(&cc.noColor, "no-color", false, "Disable colored progress output")
	cmd.Flags().StringVar(&cc.envFile, "env-file", "", "Dotenv file with extra interpreter environment variables")
	cmd.Flags().StringVar(&cc.metricsTextfile, "metrics-textfile", "",
		"Write Prometheus metrics to this file on exit")
}

// applyFlags overrides config values with explicitly set flags.
func (cc *checkCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("python") {
		cfg.Interpreter.Python = cc.python
	}

	if flags.Changed("mode") {
		cfg.Mode = cc.mode
	}

	if flags.Changed("format") {
		cfg.Output.Format = cc.format
	}

	if flags.Changed("no-color") {
		cfg.Output.NoColor = cc.noColor
	}

	if flags.Changed("env-file") {
		cfg.EnvFile = cc.envFile
	}

	if flags.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = cc.metricsTextfile
	}

	if cc.globals.verbose {
		cfg.Logging.Level = slog.LevelDebug.String()
	}

	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	return nil
}

func (cc *checkCommand) run(cmd *cobra.Command, args []string) (runErr error) {
	path := args[0]

	cfg, err := cc.globals.loadConfig()
	if err != nil {
		return err
	}

	err = cc.applyFlags(cmd, cfg)
	if err != nil {
		return err
	}

	obsCfg, err := cfg.ObservabilityConfig(version.Version, observability.ModeCLI)
	if err != nil {
		return err
	}

	obsCfg.LogOutput = cmd.ErrOrStderr()

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
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

	// A structured summary owns stdout, so live output moves to stderr.
	progressOut := cmd.OutOrStdout()
	if cfg.Output.Format != report.FormatText {
		progressOut = cmd.ErrOrStderr()
	}

	execOpts, err := cfg.ExecutorOptions(progressOut, providers.Logger)
	if err != nil {
		return err
	}

	executor, err := cc.newExecutor(cfg.Mode, execOpts)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := executor.Close()
		if closeErr != nil {
			providers.Logger.Warn("close interpreter", "error", closeErr)
		}
	}()

	chk := checker.New(checker.Options{
		Executor: executor,
		Progress: report.NewProgress(progressOut, cfg.Output.NoColor),
		Modules:  pyimports.Extract,
		Logger:   providers.Logger,
		Tracer:   providers.Tracer,
		Metrics:  metrics,
	})

	ctx := cmd.Context()
	start := time.Now()

	defer func() {
		status := observability.StatusOK
		if runErr != nil {
			status = observability.StatusError
		}

		metrics.RecordRun(ctx, runOp, status, time.Since(start))
	}()

	result, err := chk.Run(ctx, path)
	if err != nil {
		return err
	}

	return report.Render(cmd.OutOrStdout(), cfg.Output.Format, result)
}
