package server

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeConn records what the registry delivers to it.
type fakeConn struct {
	mu        sync.Mutex
	full      bool
	received  [][]byte
	closes    int
	closeCode int
}

func (c *fakeConn) Enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.received = append(c.received, payload)
	return true
}

func (c *fakeConn) Close(code int, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	c.closeCode = code
}

func (c *fakeConn) payloads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.received))
	for _, p := range c.received {
		out = append(out, string(p))
	}
	return out
}

func newTestRegistry() *Registry {
	return NewRegistry(logs.GetLoggerFromLevel(slog.LevelError))
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	c := &fakeConn{}

	h1 := r.Register(c)
	h2 := r.Register(c)

	require.Equal(t, h1, h2)
	require.Equal(t, 1, r.Len())
	require.True(t, r.Contains(h1))
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	h := r.Register(&fakeConn{})

	require.True(t, r.Unregister(h))
	require.False(t, r.Unregister(h))
	require.False(t, r.Unregister(Handle("unknown")))
	require.Zero(t, r.Len())
}

func TestRegistry_BroadcastDeliversToEveryRegisteredConnection(t *testing.T) {
	r := newTestRegistry()
	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		r.Register(c)
	}

	failed := r.Broadcast([]byte("hello"))

	require.Empty(t, failed)
	for _, c := range conns {
		require.Equal(t, []string{"hello"}, c.payloads())
	}
}

func TestRegistry_BroadcastSkipsUnregistered(t *testing.T) {
	r := newTestRegistry()
	stays, leaves := &fakeConn{}, &fakeConn{}
	r.Register(stays)
	r.Unregister(r.Register(leaves))

	r.Broadcast([]byte("after"))

	require.Equal(t, []string{"after"}, stays.payloads())
	require.Empty(t, leaves.payloads())
}

func TestRegistry_FailedDeliveriesAreReportedAndEvictedOnce(t *testing.T) {
	r := newTestRegistry()
	healthy := &fakeConn{}
	stalled := &fakeConn{full: true}
	r.Register(healthy)
	stalledHandle := r.Register(stalled)

	failed := r.Broadcast([]byte("one"))
	require.Equal(t, []Handle{stalledHandle}, failed)
	require.Equal(t, 2, r.Len(), "broadcast must not change membership")

	r.Evict(failed)
	r.Evict(failed)

	require.Equal(t, 1, r.Len())
	require.False(t, r.Contains(stalledHandle))
	require.Equal(t, 1, stalled.closes)
	require.Equal(t, websocket.CloseTryAgainLater, stalled.closeCode)
	require.Equal(t, []string{"one"}, healthy.payloads())
}

func TestRegistry_CloseAllKeepsMembership(t *testing.T) {
	r := newTestRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	r.Register(a)
	r.Register(b)

	require.Equal(t, 2, r.CloseAll(websocket.CloseGoingAway, "bye"))
	require.Equal(t, 1, a.closes)
	require.Equal(t, websocket.CloseGoingAway, b.closeCode)
	require.Equal(t, 2, r.Len())
}

func TestRegistry_ConcurrentMembership(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := newTestRegistry()
	const workers = 32
	const rounds = 50

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		kept = make(map[Handle]struct{})
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				h := r.Register(&fakeConn{})
				r.Broadcast([]byte(fmt.Sprintf("%d-%d", w, i)))
				if i%2 == 0 {
					if !r.Unregister(h) {
						t.Errorf("handle %s was not registered", h)
					}
					continue
				}
				mu.Lock()
				kept[h] = struct{}{}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, len(kept), r.Len())
	require.ElementsMatch(t, keys(kept), r.Handles())
}

func keys(m map[Handle]struct{}) []Handle {
	out := make([]Handle, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	return out
}
