// Package cli wires the talentflow commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/garnizeh/talentflow/internal/config"
)

// RootOptions holds global flags and the state PersistentPreRunE derives
// from them.
type RootOptions struct {
	ConfigPath string
	Version    string
	BuildTime  string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand creates the talentflow command tree.
func NewRootCommand(version, buildTime string) *cobra.Command {
	opts := &RootOptions{Version: version, BuildTime: buildTime}

	cmd := &cobra.Command{
		Use:   "talentflow",
		Short: "Hiring pipeline API",
		Long: `talentflow serves jobs, candidates and assessments over HTTP behind a
simulated unreliable network, and manages the SQLite store behind it.`,
		Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config YAML file (default $TALENTFLOW_CONFIG)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))

	return cmd
}

func (o *RootOptions) load(logOut io.Writer) error {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	level, _ := cfg.Level()
	o.cfg = cfg
	o.logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: level}))
	return nil
}
