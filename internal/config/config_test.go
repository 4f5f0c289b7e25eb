package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/garnizeh/talentflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TALENTFLOW_CONFIG", "")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "talentflow.db", cfg.DatabasePath)
	assert.Equal(t, 15*time.Second, cfg.APITimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Transport.LatencyMin)
	assert.Equal(t, 1200*time.Millisecond, cfg.Transport.LatencyMax)
	assert.InDelta(t, 0.1, cfg.Transport.FailureRate, 1e-9)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := "addr: \":9090\"\n" +
		"database_path: '" + filepath.Join(dir, "tf.db") + "'\n" +
		"timeout: 3s\n" +
		"transport:\n" +
		"  latency_min: 0s\n" +
		"  latency_max: 50ms\n" +
		"  failure_rate: 0.25\n" +
		"assessment:\n" +
		"  strict_choices: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("TALENTFLOW_ADDR", ":7070")
	t.Setenv("TALENTFLOW_TRANSPORT__FAILURE_RATE", "0")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr, "env overrides file")
	assert.Equal(t, 3*time.Second, cfg.APITimeout)
	assert.Equal(t, time.Duration(0), cfg.Transport.LatencyMin)
	assert.Equal(t, 50*time.Millisecond, cfg.Transport.LatencyMax)
	assert.Zero(t, cfg.Transport.FailureRate)
	assert.True(t, cfg.Assessment.StrictChoices)
	assert.Equal(t, "HR Team", cfg.DefaultActor, "untouched keys keep defaults")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"empty addr", func(c *config.Config) { c.Addr = "" }},
		{"empty database path", func(c *config.Config) { c.DatabasePath = "" }},
		{"zero timeout", func(c *config.Config) { c.APITimeout = 0 }},
		{"blank actor", func(c *config.Config) { c.DefaultActor = "  " }},
		{"bad log level", func(c *config.Config) { c.LogLevel = "loud" }},
		{"inverted latency", func(c *config.Config) { c.Transport.LatencyMin, c.Transport.LatencyMax = time.Second, time.Millisecond }},
		{"failure rate above one", func(c *config.Config) { c.Transport.FailureRate = 1.5 }},
		{"metrics without namespace", func(c *config.Config) { c.Metrics.Namespace = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLevel(t *testing.T) {
	cfg := config.Default()
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		cfg.LogLevel = in
		got, err := cfg.Level()
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
