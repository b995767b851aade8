package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified address and handler.
// The write timeout is left unset: /ws requests live as long as their session.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Serve runs server on an existing listener.
func Serve(server *http.Server, ln net.Listener, log *slog.Logger) error {
	log.Info("Server listening", "addr", ln.Addr().String())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer closes the gateway's sessions, then shuts the HTTP server
// down. Both steps share the timeout.
func ShutdownServer(server *http.Server, gateway *Gateway, timeout time.Duration, log *slog.Logger) error {
	log.Info("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if gateway != nil {
		if err := gateway.Shutdown(ctx); err != nil {
			log.Error("Gateway shutdown error", "error", err)
			errs = append(errs, err)
		}
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	log.Info("HTTP server shutdown completed")
	return nil
}
