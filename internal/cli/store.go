package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/garnizeh/talentflow/internal/db"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openMigrated(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer conn.Close()

			versions, err := db.Applied(cmd.Context(), conn)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "database %s is up to date\n", rootOpts.cfg.DatabasePath)
			for _, v := range versions {
				fmt.Fprintf(out, "  %s\n", v)
			}
			return nil
		},
	}
}

func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup [dest]",
		Short: "Write a consistent snapshot of the database",
		Long: `Write a consistent snapshot of the database with VACUUM INTO. It is safe
to run while the server is up. dest defaults to <database_path>.bak and must
not exist yet.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dst := rootOpts.cfg.DatabasePath + ".bak"
			if len(args) == 1 {
				dst = args[0]
			}
			if err := backup(cmd.Context(), rootOpts, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", dst)
			return nil
		},
	}
}

func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore [src]",
		Short: "Replace the database with a backup",
		Long: `Replace the database with a backup. src defaults to <database_path>.bak
and is integrity-checked first. Stop the server before restoring.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := rootOpts.cfg.DatabasePath + ".bak"
			if len(args) == 1 {
				src = args[0]
			}
			if err := restore(cmd.Context(), rootOpts, src); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database restored from %s\n", src)
			return nil
		},
	}
}

func backup(ctx context.Context, opts *RootOptions, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("backup target %s already exists", dst)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	conn, err := db.New(ctx, opts.cfg.DatabasePath, opts.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Exec(ctx, `VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("backup to %s: %w", dst, err)
	}
	opts.logger.Info("backup completed", slog.String("src", opts.cfg.DatabasePath), slog.String("dst", dst))
	return nil
}

func restore(ctx context.Context, opts *RootOptions, src string) error {
	if err := checkIntegrity(ctx, src); err != nil {
		return err
	}

	dst := opts.cfg.DatabasePath
	tmp := dst + ".restore"
	if err := copyFile(src, tmp); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	// a WAL left by the old database would be replayed onto the restored one
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dst + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			os.Remove(tmp)
			return fmt.Errorf("restore: %w", err)
		}
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("restore: %w", err)
	}
	opts.logger.Info("restore completed", slog.String("src", src), slog.String("dst", dst))
	return nil
}

// checkIntegrity opens path read-only so the check leaves the file as found.
func checkIntegrity(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("backup source: %w", err)
	}
	conn, err := sql.Open("sqlite", "file:"+abs+"?mode=ro")
	if err != nil {
		return err
	}
	defer conn.Close()

	var result string
	if err := conn.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&result); err != nil {
		return fmt.Errorf("check %s: %w", path, err)
	}
	if result != "ok" {
		return fmt.Errorf("check %s: %s", path, result)
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
