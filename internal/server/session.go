package server

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomcast/internal/chat"
	"github.com/Tyrowin/roomcast/internal/store"
)

// State is a step of a session's lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateReplaying
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReplaying:
		return "replaying"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Authenticator resolves the identity behind a credential.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (chat.Identity, error)
}

// SessionConfig holds the limits a session applies.
type SessionConfig struct {
	HistoryDepth int
	StoreTimeout time.Duration
}

// Session drives one connection from authentication to close.
type Session struct {
	id         string
	client     *Client
	credential string
	gate       Authenticator
	store      store.MessageStore
	registry   *Registry
	reporter   Reporter
	limiter    *rateLimiter
	cfg        SessionConfig
	log        *slog.Logger
	now        func() time.Time

	identity chat.Identity
	handle   Handle
	state    atomic.Int32
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) transition(next State) {
	prev := State(s.state.Swap(int32(next)))
	s.log.Debug("Session state changed", "from", prev, "to", next)
}

// Run executes the session until the connection ends or ctx is cancelled.
// Every exit path, panics included, passes through close exactly once.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.close()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Recovered from panic in session", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	stop := context.AfterFunc(ctx, func() {
		s.client.Close(websocket.CloseGoingAway, "server shutting down")
	})
	defer stop()

	s.transition(StateAuthenticating)
	identity, err := s.gate.Authenticate(ctx, s.credential)
	if err != nil {
		code, reason := closeReason(err)
		s.log.Info("Refusing connection", "reason", reason, "error", err)
		s.client.Close(code, reason)
		return
	}
	s.identity = identity
	s.log = s.log.With("user", identity.Email)

	s.transition(StateReplaying)
	if err := s.replay(ctx); err != nil {
		s.log.Info("History replay aborted", "error", err)
		return
	}
	if s.client.closing() {
		return
	}

	s.client.start()
	s.handle = s.registry.Register(s.client)
	s.log = s.log.With("conn_id", s.handle)
	s.transition(StateActive)
	s.log.Info("Client joined")

	s.serve(ctx)
}

// replay streams the last HistoryDepth messages, oldest first. A store
// failure degrades to an empty history; only a transport failure is fatal.
func (s *Session) replay(ctx context.Context) error {
	if s.cfg.HistoryDepth <= 0 {
		return nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	history, err := s.store.ListRecent(storeCtx, s.cfg.HistoryDepth)
	cancel()
	if err != nil {
		s.reporter.Report(ctx, "list_recent", err)
		return nil
	}

	for _, msg := range history {
		payload, err := chat.Encode(chat.FrameHistory, msg)
		if err != nil {
			s.log.Warn("Skipping undecodable history message", "id", msg.ID, "error", err)
			continue
		}
		if err := s.client.writeText(payload); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
	}
	s.log.Debug("History replayed", "count", len(history))
	return nil
}

// serve is the Active loop: read, stamp, persist, broadcast.
func (s *Session) serve(ctx context.Context) {
	s.client.setupReadConnection()

	for {
		raw, err := s.client.read()
		if err != nil {
			s.client.logReadError(err)
			return
		}

		if !s.limiter.allow() {
			s.log.Warn("Rate limit exceeded; discarding message")
			continue
		}

		content := chat.ParseInbound(raw)
		if content == "" {
			continue
		}
		s.relay(ctx, chat.NewMessage(s.identity, s.id, content, s.now()))
	}
}

// relay persists msg and broadcasts it. A persistence failure is reported
// but does not stop the broadcast.
func (s *Session) relay(ctx context.Context, msg chat.Message) {
	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	err := s.store.Append(storeCtx, msg)
	cancel()
	if err != nil {
		s.reporter.Report(ctx, "append", err)
	}

	payload, err := chat.Encode(chat.FrameMessage, msg)
	if err != nil {
		s.log.Error("Error encoding message", "id", msg.ID, "error", err)
		return
	}

	failed := s.registry.Broadcast(payload)
	if len(failed) > 0 {
		s.registry.Evict(failed)
	}
	s.log.Debug("Message relayed", "id", msg.ID, "message", msg.String(), "failed", len(failed))
}

// close is the Closed state: leave the registry, stop the writer and
// release the socket.
func (s *Session) close() {
	s.registry.Unregister(s.handle)
	s.client.release()
	s.transition(StateClosed)
}

func newSessionID() string {
	return uuid.NewString()
}
