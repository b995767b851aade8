package server

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Handle identifies a registered connection. Handles are generated by the
// Registry and are the only way other tasks refer to a connection.
type Handle string

// Conn is the Registry's view of a live connection. The Registry uses a Conn
// as a map key, so implementations must be pointer types such as *Client.
type Conn interface {
	// Enqueue queues payload for delivery without blocking and reports
	// whether it was accepted.
	Enqueue(payload []byte) bool
	// Close asks the connection to shut down with the given close code.
	Close(code int, reason string)
}

var _ Conn = (*Client)(nil)

// Registry tracks the live connections that receive broadcasts.
//
// Register, Unregister and Broadcast are serialised by one RWMutex. Broadcast
// only enqueues under the read lock; the network writes happen on each
// connection's writer goroutine, so a stalled client cannot hold the lock.
type Registry struct {
	mu      sync.RWMutex
	conns   map[Handle]Conn
	handles map[Conn]Handle
	log     *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		conns:   make(map[Handle]Conn),
		handles: make(map[Conn]Handle),
		log:     log,
	}
}

// Register adds c and returns its handle. Registering a connection that is
// already present returns the existing handle.
func (r *Registry) Register(c Conn) Handle {
	r.mu.Lock()
	if h, ok := r.handles[c]; ok {
		r.mu.Unlock()
		return h
	}
	h := Handle(uuid.NewString())
	r.conns[h] = c
	r.handles[c] = h
	count := len(r.conns)
	r.mu.Unlock()

	r.log.Debug("Connection registered", "conn_id", h, "total", count)
	return h
}

// Unregister removes h and reports whether it was present. Unknown or
// already removed handles are ignored.
func (r *Registry) Unregister(h Handle) bool {
	_, ok := r.remove(h)
	return ok
}

func (r *Registry) remove(h Handle) (Conn, bool) {
	r.mu.Lock()
	c, ok := r.conns[h]
	if ok {
		delete(r.conns, h)
		delete(r.handles, c)
	}
	count := len(r.conns)
	r.mu.Unlock()

	if ok {
		r.log.Debug("Connection unregistered", "conn_id", h, "total", count)
	}
	return c, ok
}

// Broadcast makes one delivery attempt to every registered connection and
// returns the handles whose delivery failed. Membership is left untouched;
// callers pass the failures to Evict.
func (r *Registry) Broadcast(payload []byte) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var failed []Handle
	for h, c := range r.conns {
		if !c.Enqueue(payload) {
			failed = append(failed, h)
		}
	}
	return failed
}

// Evict unregisters each handle and closes the connections that were still
// registered.
func (r *Registry) Evict(handles []Handle) {
	for _, h := range handles {
		c, ok := r.remove(h)
		if !ok {
			continue
		}
		r.log.Warn("Evicting connection after failed delivery", "conn_id", h)
		c.Close(websocket.CloseTryAgainLater, "send queue full")
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Handles returns a snapshot of the registered handles.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.conns)
}

// Contains reports whether h is registered.
func (r *Registry) Contains(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[h]
	return ok
}

// CloseAll asks every registered connection to close. Connections stay
// registered until their sessions unregister them.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.RLock()
	conns := lo.Values(r.conns)
	r.mu.RUnlock()

	for _, c := range conns {
		c.Close(code, reason)
	}
	r.log.Info("Closed registered connections", "count", len(conns))
	return len(conns)
}
