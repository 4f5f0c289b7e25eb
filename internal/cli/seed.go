package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garnizeh/talentflow/internal/repository/sqlite"
	"github.com/garnizeh/talentflow/internal/seed"
)

func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load a YAML fixture into an empty database",
		Long: `Load jobs, candidates and assessments from a YAML fixture. Candidates get
a generated stage history. A database that already holds jobs is left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.DecodeFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			conn, err := openMigrated(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer conn.Close()

			s, err := seed.New(sqlite.New(conn, rootOpts.logger), seed.WithLogger(rootOpts.logger))
			if err != nil {
				return err
			}
			sum, err := s.Apply(ctx, f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if sum.Skipped {
				fmt.Fprintln(out, "database already has jobs, nothing seeded")
				return nil
			}
			fmt.Fprintf(out, "seeded %d jobs, %d candidates, %d timeline events, %d assessments\n",
				sum.Jobs, sum.Candidates, sum.Events, sum.Assessments)
			return nil
		},
	}
}
