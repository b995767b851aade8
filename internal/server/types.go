package server

import (
	"errors"
	"net"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomcast/internal/auth"
)

// Close codes sent to clients. The 4000-range codes are part of the client
// protocol and must not change.
const (
	CloseMissingCredential = 4000
	CloseInvalidCredential = 4001
	CloseNormal            = websocket.CloseNormalClosure
)

// closeReason maps a credential refusal to its close code and reason text.
func closeReason(err error) (int, string) {
	if errors.Is(err, auth.ErrMissingCredential) {
		return CloseMissingCredential, "Missing token"
	}
	return CloseInvalidCredential, "Invalid token"
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
