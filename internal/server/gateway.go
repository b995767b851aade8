package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomcast/internal/config"
	"github.com/Tyrowin/roomcast/internal/store"
)

// ErrGatewayClosed is returned by Shutdown when it is called twice.
var ErrGatewayClosed = errors.New("gateway closed")

// Gateway accepts WebSocket upgrades on /ws and runs one Session per
// connection. Sessions run on the handler goroutine; http.Server.Shutdown
// does not wait for hijacked connections, so the Gateway tracks them itself.
type Gateway struct {
	cfg      *config.Config
	gate     Authenticator
	store    store.MessageStore
	registry *Registry
	reporter Reporter
	upgrader websocket.Upgrader
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewGateway(cfg *config.Config, gate Authenticator, messages store.MessageStore, registry *Registry, reporter Reporter, log *slog.Logger) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	origins := newOriginPolicy(cfg.Origins(), log)

	return &Gateway{
		cfg:      cfg,
		gate:     gate,
		store:    messages,
		registry: registry,
		reporter: reporter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ServeHTTP upgrades the request and blocks until the session ends.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}
	if !g.track() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer g.wg.Done()

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sessionID := newSessionID()
	log := g.log.With("session_id", sessionID)
	client := NewClient(conn, r.RemoteAddr, ClientOptions{
		SendQueueSize:  g.cfg.SendQueueSize,
		WriteTimeout:   g.cfg.WriteTimeout,
		PongTimeout:    g.cfg.PongTimeout,
		PingInterval:   g.cfg.PingInterval(),
		MaxMessageSize: int64(g.cfg.MaxMessageSize),
	}, log)

	session := &Session{
		id:         sessionID,
		client:     client,
		credential: credentialFromRequest(r),
		gate:       g.gate,
		store:      g.store,
		registry:   g.registry,
		reporter:   g.reporter,
		limiter:    newRateLimiter(g.cfg.RateLimit),
		cfg: SessionConfig{
			HistoryDepth: g.cfg.HistoryDepth,
			StoreTimeout: g.cfg.StoreTimeout,
		},
		log: log.With("remote", r.RemoteAddr),
		now: time.Now,
	}
	session.Run(g.ctx)
}

// track reserves a slot in the WaitGroup unless shutdown has begun.
func (g *Gateway) track() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.wg.Add(1)
	return true
}

// Shutdown stops accepting sessions, closes the live ones and waits for them
// to finish or for ctx to expire.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrGatewayClosed
	}
	g.closed = true
	g.mu.Unlock()

	g.registry.CloseAll(websocket.CloseGoingAway, "server shutting down")
	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.log.Info("All sessions closed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// credentialFromRequest looks for a token in the query string, then the
// Authorization header, then the access_token cookie.
func credentialFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); header != "" {
		if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
