package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Tyrowin/roomcast/internal/chat"
)

// Memory keeps history and users in process memory.
type Memory struct {
	mu       sync.RWMutex
	messages []chat.Message
	users    map[string]chat.User
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]chat.User)}
}

// Append inserts msg after every message with the same or an earlier
// timestamp, keeping the history chronological.
func (m *Memory) Append(_ context.Context, msg chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.messages), func(i int) bool {
		return m.messages[i].CreatedAt.After(msg.CreatedAt)
	})
	m.messages = append(m.messages, chat.Message{})
	copy(m.messages[i+1:], m.messages[i:])
	m.messages[i] = msg
	return nil
}

func (m *Memory) ListRecent(_ context.Context, n int) ([]chat.Message, error) {
	if n <= 0 {
		return []chat.Message{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	start := max(len(m.messages)-n, 0)
	recent := make([]chat.Message, len(m.messages)-start)
	copy(recent, m.messages[start:])
	return recent, nil
}

func (m *Memory) LookupByEmail(_ context.Context, email string) (chat.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[normalizeEmail(email)]
	if !ok {
		return chat.User{}, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	return user, nil
}

func (m *Memory) PutUser(_ context.Context, user chat.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[normalizeEmail(user.Email)] = user
	return nil
}

func (m *Memory) Close() error { return nil }
