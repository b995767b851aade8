package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"raw text", "hello there", "hello there"},
		{"raw text trimmed", "  hi \n", "hi"},
		{"json envelope", `{"content":" hi "}`, "hi"},
		{"json without content", `{"other":"x"}`, ""},
		{"broken json kept verbatim", `{"content":`, `{"content":`},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParseInbound([]byte(tt.raw)))
		})
	}
}

func TestEncodeCarriesIdentity(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := NewMessage(Identity{Username: "alice", Email: "alice@example.com"}, "sess-1", "hi", at)

	payload, err := Encode(FrameMessage, msg)
	req.NoError(err)

	var frame Frame
	req.NoError(json.Unmarshal(payload, &frame))
	req.Equal(FrameMessage, frame.Type)
	req.Equal("hi", frame.Content)
	req.Equal("alice", frame.Author)
	req.Equal("alice@example.com", frame.Email)
	req.Equal("sess-1", frame.SessionID)
	req.NotEmpty(frame.ID)
	req.Equal("2024-03-01T12:00:00Z - alice@example.com: hi", msg.String())
}

func TestIdentityNameFallsBackToEmail(t *testing.T) {
	require.Equal(t, "bob@example.com", Identity{Email: "bob@example.com"}.Name())
}
