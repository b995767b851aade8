// Package chat defines the domain types shared by the gateway, the credential
// gate and the message stores.
package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is the authenticated principal bound to a connection.
type Identity struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Name returns the display name, falling back to the email address.
func (i Identity) Name() string {
	if name := strings.TrimSpace(i.Username); name != "" {
		return name
	}
	return i.Email
}

// User is a directory record used to resolve and gate identities.
type User struct {
	Identity
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single chat line. It is immutable once created.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    Identity  `json:"author"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage stamps content with its author, the connection's correlation id
// and the creation time.
func NewMessage(author Identity, sessionID, content string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		Author:    author,
		SessionID: sessionID,
		CreatedAt: at.UTC(),
	}
}

// String renders the message as "<timestamp> - <email>: <content>".
func (m Message) String() string {
	return fmt.Sprintf("%s - %s: %s", m.CreatedAt.Format(time.RFC3339Nano), m.Author.Email, m.Content)
}
