// Package config loads importcheck settings from a config file, the
// environment and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/importcheck/pkg/pyexec"
	"github.com/Sumatoshi-tech/importcheck/pkg/report"
)

// Config is the top-level configuration struct for importcheck.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Mode          string              `mapstructure:"mode"`
	EnvFile       string              `mapstructure:"env_file"`
	MaxErrorSize  string              `mapstructure:"max_error_size"`
	Interpreter   InterpreterConfig   `mapstructure:"interpreter"`
	Output        OutputConfig        `mapstructure:"output"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

// InterpreterConfig describes the Python interpreter that runs statements.
type InterpreterConfig struct {
	Python string   `mapstructure:"python"`
	Args   []string `mapstructure:"args"`
	// Env holds extra KEY=VALUE variables. A list keeps the keys' case,
	// which viper would lower for a map.
	Env []string `mapstructure:"env"`
	Dir string   `mapstructure:"dir"`
}

// OutputConfig selects how results are printed.
type OutputConfig struct {
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ObservabilityConfig holds OTLP export settings.
type ObservabilityConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	OTLPHeaders  string `mapstructure:"otlp_headers"`
	Environment  string `mapstructure:"environment"`
}

// MetricsConfig holds the Prometheus textfile target.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidMode indicates an execution mode other than session or isolated.
	ErrInvalidMode = errors.New("mode must be session or isolated")
	// ErrInvalidFormat indicates an unsupported output.format.
	ErrInvalidFormat = errors.New("output.format must be one of " + strings.Join(report.Formats, ", "))
	// ErrInvalidMaxErrorSize indicates max_error_size is not a positive byte size.
	ErrInvalidMaxErrorSize = errors.New("max_error_size must be a positive size such as 64KiB")
	// ErrInvalidLogLevel indicates logging.level is not a slog level name.
	ErrInvalidLogLevel = errors.New("logging.level must be debug, info, warn or error")
	// ErrEmptyPython indicates interpreter.python was set to blank.
	ErrEmptyPython = errors.New("interpreter.python must not be empty")
	// ErrInvalidEnvEntry indicates an interpreter.env entry without '='.
	ErrInvalidEnvEntry = errors.New("interpreter.env entries must be KEY=VALUE")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Mode != pyexec.ModeSession && c.Mode != pyexec.ModeIsolated {
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}

	if !report.ValidFormat(c.Output.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}

	if strings.TrimSpace(c.Interpreter.Python) == "" {
		return ErrEmptyPython
	}

	_, sizeErr := c.MaxErrorBytes()
	if sizeErr != nil {
		return sizeErr
	}

	_, levelErr := c.LogLevel()
	if levelErr != nil {
		return levelErr
	}

	_, envErr := c.InterpreterEnv()

	return envErr
}

// MaxErrorBytes parses MaxErrorSize.
func (c *Config) MaxErrorBytes() (int, error) {
	size, err := humanize.ParseBytes(c.MaxErrorSize)
	if err != nil || size == 0 || size > 1<<30 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxErrorSize, c.MaxErrorSize)
	}

	return int(size), nil
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.Logging.Level))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return level, nil
}

// InterpreterEnv parses Interpreter.Env into a map.
func (c *Config) InterpreterEnv() (map[string]string, error) {
	env := make(map[string]string, len(c.Interpreter.Env))

	for _, entry := range c.Interpreter.Env {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEnvEntry, entry)
		}

		env[key] = value
	}

	return env, nil
}
