package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides, e.g. TALENTFLOW_ADDR or
// TALENTFLOW_TRANSPORT__FAILURE_RATE (double underscore separates levels).
const EnvPrefix = "TALENTFLOW_"

type Config struct {
	Addr         string           `koanf:"addr"`
	DatabasePath string           `koanf:"database_path"`
	APITimeout   time.Duration    `koanf:"timeout"`
	LogLevel     string           `koanf:"log_level"`
	DefaultActor string           `koanf:"default_actor"`
	Transport    TransportConfig  `koanf:"transport"`
	Metrics      MetricsConfig    `koanf:"metrics"`
	Assessment   AssessmentConfig `koanf:"assessment"`
}

// TransportConfig drives the simulated network in front of the API.
type TransportConfig struct {
	LatencyMin  time.Duration `koanf:"latency_min"`
	LatencyMax  time.Duration `koanf:"latency_max"`
	FailureRate float64       `koanf:"failure_rate"`
}

type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

type AssessmentConfig struct {
	// StrictChoices rejects single/multi-choice answers outside the declared options.
	StrictChoices bool `koanf:"strict_choices"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Addr:         ":8080",
		DatabasePath: "talentflow.db",
		APITimeout:   15 * time.Second,
		LogLevel:     "info",
		DefaultActor: "HR Team",
		Transport: TransportConfig{
			LatencyMin:  200 * time.Millisecond,
			LatencyMax:  1200 * time.Millisecond,
			FailureRate: 0.1,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "talentflow",
		},
	}
}

// LoadConfig layers defaults, an optional YAML file and TALENTFLOW_* env vars
// (low to high precedence). An empty path falls back to $TALENTFLOW_CONFIG.
func LoadConfig(path string) (*Config, error) {
	base := Default()
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	// the file path itself is not a config key
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path must not be empty"))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if strings.TrimSpace(c.DefaultActor) == "" {
		errs = append(errs, errors.New("default_actor must not be empty"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.Transport.LatencyMin < 0 || c.Transport.LatencyMax < 0 {
		errs = append(errs, errors.New("transport latency must not be negative"))
	}
	if c.Transport.LatencyMax < c.Transport.LatencyMin {
		errs = append(errs, fmt.Errorf("transport.latency_max (%s) is below latency_min (%s)", c.Transport.LatencyMax, c.Transport.LatencyMin))
	}
	if c.Transport.FailureRate < 0 || c.Transport.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("transport.failure_rate must be within [0,1], got %v", c.Transport.FailureRate))
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errs = append(errs, errors.New("metrics.namespace must not be empty when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// Level parses LogLevel. Accepts debug, info, warn/warning, error.
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %s", c.LogLevel)
}
