package config

import (
	"io"
	"log/slog"
	"os"

	"github.com/Sumatoshi-tech/importcheck/pkg/observability"
	"github.com/Sumatoshi-tech/importcheck/pkg/pyexec"
)

// ExecutorOptions builds interpreter options. The environment is the current
// process environment, then env_file, then interpreter.env.
func (c *Config) ExecutorOptions(output io.Writer, logger *slog.Logger) (pyexec.Options, error) {
	maxErrorSize, err := c.MaxErrorBytes()
	if err != nil {
		return pyexec.Options{}, err
	}

	extra, err := c.InterpreterEnv()
	if err != nil {
		return pyexec.Options{}, err
	}

	env, err := pyexec.Environ(os.Environ(), c.EnvFile, extra)
	if err != nil {
		return pyexec.Options{}, err
	}

	return pyexec.Options{
		Python:       c.Interpreter.Python,
		Args:         c.Interpreter.Args,
		Env:          env,
		Dir:          c.Interpreter.Dir,
		Output:       output,
		MaxErrorSize: maxErrorSize,
		Logger:       logger,
	}, nil
}

// ObservabilityConfig maps the logging, OTLP and metrics settings onto an
// observability.Config for mode.
func (c *Config) ObservabilityConfig(version string, mode observability.AppMode) (observability.Config, error) {
	level, err := c.LogLevel()
	if err != nil {
		return observability.Config{}, err
	}

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Mode = mode
	cfg.Environment = c.Observability.Environment
	cfg.OTLPEndpoint = c.Observability.OTLPEndpoint
	cfg.OTLPInsecure = c.Observability.OTLPInsecure
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Observability.OTLPHeaders)
	cfg.MetricsTextfile = c.Metrics.Textfile
	cfg.LogLevel = level
	cfg.LogJSON = c.Logging.JSON

	return cfg, nil
}
