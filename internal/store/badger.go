package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"github.com/Tyrowin/roomcast/internal/chat"
)

const (
	messagePrefix = "msg:"
	userPrefix    = "user:"
)

// Badger stores messages and users in a BadgerDB instance.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a BadgerDB in dir. An empty dir keeps the
// database in memory.
func OpenBadger(dir string, log *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{log: log}).
		WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

// messageKey is "msg:{unixnano padded to 19 digits}:{id}" so that a
// lexicographic scan is chronological and equal timestamps do not collide.
func messageKey(msg chat.Message) []byte {
	return fmt.Appendf(nil, "%s%019d:%s", messagePrefix, msg.CreatedAt.UnixNano(), msg.ID)
}

func (b *Badger) Append(_ context.Context, msg chat.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg), value)
	})
}

// ListRecent scans backwards from the newest key and returns the result in
// chronological order.
func (b *Badger) ListRecent(ctx context.Context, n int) ([]chat.Message, error) {
	if n <= 0 {
		return []chat.Message{}, nil
	}

	messages := make([]chat.Message, 0, n)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(messagePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(messagePrefix + "\xff")); it.Valid() && len(messages) < n; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var msg chat.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return fmt.Errorf("decode %q: %w", it.Item().Key(), err)
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Reverse(messages), nil
}

func (b *Badger) LookupByEmail(_ context.Context, email string) (chat.User, error) {
	var user chat.User
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chat.User{}, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return chat.User{}, err
	}
	return user, nil
}

func (b *Badger) PutUser(_ context.Context, user chat.User) error {
	value, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(user.Email), value)
	})
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func userKey(email string) []byte {
	return []byte(userPrefix + strings.ToLower(strings.TrimSpace(email)))
}

// badgerLogger routes badger's printf-style logging into slog.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger().Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger().Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger().Info(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger().Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l badgerLogger) logger() *slog.Logger {
	if l.log == nil {
		return slog.Default()
	}
	return l.log
}
