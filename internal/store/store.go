//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package store

import (
	"context"

	"github.com/Tyrowin/roomcast/internal/chat"
)

// MessageStore persists chat history. Implementations are safe for
// concurrent use.
type MessageStore interface {
	// Append persists msg.
	Append(ctx context.Context, msg chat.Message) error
	// ListRecent returns at most n messages, oldest first.
	ListRecent(ctx context.Context, n int) ([]chat.Message, error)
}
