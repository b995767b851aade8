//go:generate go run go.uber.org/mock/mockgen -source=directory.go -destination=../mocks/mock_directory.go -package=mocks
package auth

import (
	"context"

	"github.com/Tyrowin/roomcast/internal/chat"
)

// Directory resolves the user record behind a verified token subject.
type Directory interface {
	LookupByEmail(ctx context.Context, email string) (chat.User, error)
}
