package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/internal/server"
	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/safeconv"
)

type serveOptions struct {
	addr   string
	noLoad bool
	noSave bool
}

// NewServeCommand creates the serve subcommand.
func NewServeCommand(globals *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the buckets over HTTP",
		Long: `Serve the buckets over HTTP until interrupted.

The configured snapshot is loaded at startup when present and written back on
shutdown. Health, readiness and Prometheus endpoints are served at /healthz,
/readyz and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := globals.setup(observability.ModeServe)
			if err != nil {
				return err
			}

			defer env.shutdown(context.WithoutCancel(cmd.Context()))

			addr := opts.addr
			if addr == "" {
				addr = env.cfg.Server.Addr()
			}

			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, env, listener, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides server.host and server.port)")
	cmd.Flags().BoolVar(&opts.noLoad, "no-load", false, "start empty instead of loading the snapshot")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not write a snapshot on shutdown")

	return cmd
}

// serve runs the HTTP server on listener until ctx is done.
func serve(ctx context.Context, env *environment, listener net.Listener, opts *serveOptions) error {
	logger := env.providers.Logger

	store, err := env.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if !opts.noLoad {
		err = store.Load(ctx)

		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.InfoContext(ctx, "no snapshot to load, starting empty", "path", store.SnapshotPath())
		case err != nil:
			return fmt.Errorf("load snapshot: %w", err)
		}
	}

	maxBody, err := env.cfg.Server.BodyLimit()
	if err != nil {
		return err
	}

	handler := server.New(store, server.Options{
		Tracer:  env.providers.Tracer,
		RED:     env.red,
		Logger:  logger,
		Metrics: env.providers.MetricsHandler,
		MaxBody: int64(safeconv.ClampUint64ToInt(maxBody)),
	}).Handler()

	httpServer := &http.Server{
		Handler:      handler,
		ReadTimeout:  env.cfg.Server.ReadTimeout,
		WriteTimeout: env.cfg.Server.WriteTimeout,
		IdleTimeout:  env.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	logger.InfoContext(ctx, "rbmap listening", "addr", listener.Addr().String())

	select {
	case err = <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), env.cfg.Server.ShutdownTimeout)
	defer cancel()

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.InfoContext(shutdownCtx, "rbmap stopped")

	if opts.noSave {
		return nil
	}

	// A hibernated store must be woken before it can be written out.
	store.Boot(shutdownCtx)

	err = store.Save(shutdownCtx)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	return nil
}
