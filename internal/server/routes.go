package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouteDeps are the collaborators the HTTP routes are built from.
type RouteDeps struct {
	Gateway  *Gateway
	Registry *Registry
	Reporter *LogReporter
	Log      *slog.Logger
}

// SetupRoutes builds the chi router: health text on /, JSON status on
// /healthz, the WebSocket endpoint on /ws and the test page on /test.
func SetupRoutes(deps RouteDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Log))
	r.Use(middleware.Recoverer)

	r.Get("/", HealthHandler)
	r.Get("/healthz", StatusHandler(deps.Registry, deps.Reporter, deps.Log))
	r.Handle("/ws", deps.Gateway)
	r.Get("/test", TestPageHandler(deps.Log))
	return r
}

// requestLogger logs one line per request once the handler returns. For /ws
// that is when the session ends.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
