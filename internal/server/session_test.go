package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomcast/internal/auth"
	"github.com/Tyrowin/roomcast/internal/chat"
	"github.com/Tyrowin/roomcast/internal/store"
)

func TestState_String(t *testing.T) {
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "authenticating", StateAuthenticating.String())
	require.Equal(t, "replaying", StateReplaying.String())
	require.Equal(t, "active", StateActive.String())
	require.Equal(t, "closed", StateClosed.String())
	require.Equal(t, "state(42)", State(42).String())
}

func TestCloseReason(t *testing.T) {
	code, reason := closeReason(fmt.Errorf("authenticate: %w", auth.ErrMissingCredential))
	require.Equal(t, CloseMissingCredential, code)
	require.Equal(t, "Missing token", reason)

	code, reason = closeReason(auth.ErrInvalidCredential)
	require.Equal(t, CloseInvalidCredential, code)
	require.Equal(t, "Invalid token", reason)

	code, _ = closeReason(errors.New("anything else"))
	require.Equal(t, CloseInvalidCredential, code)
}

func TestCredentialFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(r *http.Request)
		target  string
		want    string
	}{
		{name: "none", target: "/ws", want: ""},
		{name: "query parameter", target: "/ws?token=abc", want: "abc"},
		{
			name:   "bearer header",
			target: "/ws",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer def")
			},
			want: "def",
		},
		{
			name:   "non-bearer header ignored",
			target: "/ws",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
			},
			want: "",
		},
		{
			name:   "cookie",
			target: "/ws",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "access_token", Value: "ghi"})
			},
			want: "ghi",
		},
		{
			name:   "query wins over header and cookie",
			target: "/ws?token=abc",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer def")
				r.AddCookie(&http.Cookie{Name: "access_token", Value: "ghi"})
			},
			want: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, http.NoBody)
			if tt.prepare != nil {
				tt.prepare(r)
			}
			require.Equal(t, tt.want, credentialFromRequest(r))
		})
	}
}

func TestSession_RelayPersistsBroadcastsAndLogsMessage(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	messages := store.NewMemory()
	registry := NewRegistry(log)
	peer := &fakeConn{}
	registry.Register(peer)

	s := &Session{
		id:       "session-1",
		store:    messages,
		registry: registry,
		reporter: NewLogReporter(log),
		cfg:      SessionConfig{StoreTimeout: time.Second},
		log:      log,
	}
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := chat.NewMessage(chat.Identity{Username: "alice", Email: "alice@example.com"}, s.id, "hi", at)

	s.relay(context.Background(), msg)

	stored, err := messages.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []chat.Message{msg}, stored)
	require.Len(t, peer.payloads(), 1)
	require.Contains(t, buf.String(), "2024-03-01T12:00:00Z - alice@example.com: hi")
}
