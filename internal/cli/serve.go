package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/garnizeh/talentflow/api"
	dbfs "github.com/garnizeh/talentflow/db"
	"github.com/garnizeh/talentflow/internal/db"
	"github.com/garnizeh/talentflow/internal/metrics"
)

const shutdownGrace = 30 * time.Second

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. Pending migrations are applied on start; SIGINT or
SIGTERM drains in-flight requests before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts, nil)
		},
	}
}

// runServe blocks until ctx is done. ready, when set, receives the bound
// listener address once the server accepts connections.
func runServe(ctx context.Context, opts *RootOptions, ready func(addr string)) error {
	cfg, logger := opts.cfg, opts.logger
	logger.Info("starting talentflow", slog.String("version", opts.Version), slog.String("build_time", opts.BuildTime))

	conn, err := openMigrated(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Error("close db", slog.Any("err", err))
		}
	}()

	api.SetLogger(logger)
	m := metrics.New(metrics.WithNamespace(cfg.Metrics.Namespace))
	handler, err := api.SetupRoutes(cfg, opts.Version, opts.BuildTime, conn, m)
	if err != nil {
		return err
	}

	// latency simulation counts against the write deadline
	writeTimeout := cfg.APITimeout + cfg.Transport.LatencyMax
	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	logger.Info("server listening", slog.String("addr", ln.Addr().String()))
	if ready != nil {
		ready(ln.Addr().String())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	<-errCh
	logger.Info("server exited")
	return nil
}

func openMigrated(ctx context.Context, opts *RootOptions) (*db.DB, error) {
	conn, err := db.New(ctx, opts.cfg.DatabasePath, opts.logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, conn, dbfs.Migrations); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}
