package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	_ "modernc.org/sqlite"

	"github.com/Tyrowin/roomcast/internal/chat"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	email      TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	email      TEXT NOT NULL,
	username   TEXT NOT NULL,
	content    TEXT NOT NULL,
	session_id TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_created_at ON messages (created_at, seq);
CREATE INDEX IF NOT EXISTS messages_session_id ON messages (session_id);
`

// SQLite stores messages and users in a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database file at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, msg chat.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, email, username, content, session_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Author.Email, msg.Author.Username, msg.Content, msg.SessionID, msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLite) ListRecent(ctx context.Context, n int) ([]chat.Message, error) {
	if n <= 0 {
		return []chat.Message{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, username, content, session_id, created_at
		   FROM messages
		  ORDER BY created_at DESC, seq DESC
		  LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, n)
	for rows.Next() {
		var (
			msg       chat.Message
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &msg.Author.Email, &msg.Author.Username, &msg.Content, &msg.SessionID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return lo.Reverse(messages), nil
}

func (s *SQLite) LookupByEmail(ctx context.Context, email string) (chat.User, error) {
	var (
		user      chat.User
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT email, username, is_active, created_at FROM users WHERE email = ?`,
		normalizeEmail(email),
	).Scan(&user.Email, &user.Username, &user.Active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.User{}, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return chat.User{}, fmt.Errorf("query user: %w", err)
	}
	user.CreatedAt = time.Unix(0, createdAt).UTC()
	return user, nil
}

func (s *SQLite) PutUser(ctx context.Context, user chat.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, username, is_active, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET username = excluded.username, is_active = excluded.is_active`,
		normalizeEmail(user.Email), user.Username, user.Active, user.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
