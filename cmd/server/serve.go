package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/roomcast/internal/auth"
	"github.com/Tyrowin/roomcast/internal/config"
	"github.com/Tyrowin/roomcast/internal/server"
	"github.com/Tyrowin/roomcast/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logs.GetLoggerFromString(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
			}
			return serve(ctx, cfg, ln, log)
		},
	}
}

// serve runs the chat server on ln until ctx is cancelled or the HTTP server
// fails, then shuts everything down within cfg.ShutdownTimeout.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener, log *slog.Logger) error {
	backend, err := store.Open(ctx, cfg.StoreTarget, log)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		log.Info("Closing message store...")
		if err := backend.Close(); err != nil {
			log.Error("Error closing message store", "error", err)
		}
	}()

	opts := []auth.Option{auth.WithIssuer(cfg.JWTIssuer)}
	if cfg.RequireKnownUser {
		opts = append(opts, auth.WithDirectory(backend))
	}
	gate := auth.NewGate([]byte(cfg.JWTSecret), opts...)

	registry := server.NewRegistry(log)
	reporter := server.NewLogReporter(log)
	gateway := server.NewGateway(cfg, gate, backend, registry, reporter, log)
	httpServer := server.CreateServer(cfg.Addr, server.SetupRoutes(server.RouteDeps{
		Gateway:  gateway,
		Registry: registry,
		Reporter: reporter,
		Log:      log,
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(httpServer, ln, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		return server.ShutdownServer(httpServer, gateway, cfg.ShutdownTimeout, log)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}
