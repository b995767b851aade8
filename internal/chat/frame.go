package chat

import (
	"encoding/json"
	"strings"
	"time"
)

// Frame types sent to clients.
const (
	FrameHistory = "history"
	FrameMessage = "message"
)

// Frame is the JSON rendering of a Message on the wire.
type Frame struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

// Inbound is the optional JSON envelope a client may send instead of raw text.
type Inbound struct {
	Content string `json:"content"`
}

// NewFrame builds the wire frame for msg.
func NewFrame(kind string, msg Message) Frame {
	return Frame{
		Type:      kind,
		ID:        msg.ID,
		Content:   msg.Content,
		Author:    msg.Author.Name(),
		Email:     msg.Author.Email,
		SessionID: msg.SessionID,
		Timestamp: msg.CreatedAt.Format(time.RFC3339Nano),
	}
}

// Encode renders msg as a JSON frame of the given kind.
func Encode(kind string, msg Message) ([]byte, error) {
	return json.Marshal(NewFrame(kind, msg))
}

// ParseInbound extracts message content from a client payload. JSON objects
// carrying a "content" field are unwrapped; anything else is taken verbatim.
// The returned content is trimmed and may be empty.
func ParseInbound(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var in Inbound
		if err := json.Unmarshal([]byte(trimmed), &in); err == nil {
			return strings.TrimSpace(in.Content)
		}
	}
	return trimmed
}
