package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/importcheck/pkg/pyexec"
	"github.com/Sumatoshi-tech/importcheck/pkg/report"
)

// configName is the config file name without extension.
const configName = ".importcheck"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for importcheck settings.
const envPrefix = "IMPORTCHECK"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Defaults.
const (
	DefaultMode         = pyexec.ModeSession
	DefaultPython       = pyexec.DefaultPython
	DefaultMaxErrorSize = "64KiB"
	DefaultFormat       = report.FormatText
	DefaultLogLevel     = "warn"
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// Every key needs a default so AutomaticEnv can override it during Unmarshal.
func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("mode", DefaultMode)
	viperCfg.SetDefault("env_file", "")
	viperCfg.SetDefault("max_error_size", DefaultMaxErrorSize)

	viperCfg.SetDefault("interpreter.python", DefaultPython)
	viperCfg.SetDefault("interpreter.args", []string{})
	viperCfg.SetDefault("interpreter.env", []string{})
	viperCfg.SetDefault("interpreter.dir", "")

	viperCfg.SetDefault("output.format", DefaultFormat)
	viperCfg.SetDefault("output.no_color", false)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", false)

	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.environment", "")

	viperCfg.SetDefault("metrics.textfile", "")
}
