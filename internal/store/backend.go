// Package store provides the durable collaborators of the chat gateway: the
// message history and the user directory, backed by BadgerDB, SQLite or
// process memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Tyrowin/roomcast/internal/chat"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedTarget = errors.New("unsupported store target")
)

// Backend is a complete storage backend: message history plus user
// directory.
type Backend interface {
	MessageStore
	LookupByEmail(ctx context.Context, email string) (chat.User, error)
	PutUser(ctx context.Context, user chat.User) error
	Close() error
}

// Open connects to the backend described by target:
//
//	badger://<dir>   BadgerDB in dir (in-memory when dir is empty)
//	sqlite://<file>  SQLite database file (":memory:" allowed)
//	memory://        process memory, lost on exit
func Open(ctx context.Context, target string, log *slog.Logger) (Backend, error) {
	scheme, location, ok := strings.Cut(strings.TrimSpace(target), "://")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTarget, target)
	}

	switch strings.ToLower(scheme) {
	case "badger":
		return OpenBadger(location, log)
	case "sqlite":
		return OpenSQLite(ctx, location)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedTarget, scheme)
	}
}
