package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adewale/keyboardia/internal/config"
	"github.com/adewale/keyboardia/internal/coordinator"
	"github.com/adewale/keyboardia/internal/server"
	"github.com/adewale/keyboardia/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session coordinator",
		Long: `Run the session coordinator: WebSocket endpoint, durable mutation log,
and HTTP inspection routes.

Examples:
  keyboardia serve --addr localhost:8080 --db ./keyboardia.sqlite3
  keyboardia serve --config ./keyboardia.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Database != "" {
		cfg.Server.DBPath = opts.Database
	}

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	hub := coordinator.NewHub(st, coordinator.WithHubSnapshotEvery(cfg.Server.SnapshotEvery))
	defer hub.Close()

	srv := server.New(hub, st)
	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: srv.Router()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Server.Addr, "db", cfg.Server.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-exit:
		slog.Info("signal caught, shutting down", "sig", sig)
	case err := <-errCh:
		return WrapExitError(ExitCommandError, "server failed", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown incomplete", "error", err)
		_ = httpServer.Close()
	}
	return nil
}
