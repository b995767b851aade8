// Package testhelpers provides common utilities shared by the HTTP and
// WebSocket tests: configuration, token minting, dialing and frame reading.
package testhelpers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomcast/internal/auth"
	"github.com/Tyrowin/roomcast/internal/chat"
	"github.com/Tyrowin/roomcast/internal/config"
)

// Secret signs every token minted by these helpers.
const Secret = "test-secret-0123456789abcdef"

// TestOrigin is sent as the Origin header by ConnectWebSocket.
const TestOrigin = "http://localhost:8080"

// NewConfig returns a validated Config for tests. Entries in overrides replace
// the defaults.
func NewConfig(t *testing.T, overrides map[string]string) *config.Config {
	t.Helper()

	es := env.EnvSet{
		"JWT_SECRET":      Secret,
		"ALLOWED_ORIGINS": TestOrigin,
		"STORE_TARGET":    "memory://",
		"STORE_TIMEOUT":   "1s",
		"WRITE_TIMEOUT":   "2s",
		"LOG_LEVEL":       "ERROR",
	}
	for k, v := range overrides {
		es[k] = v
	}

	cfg, err := config.Parse(es)
	require.NoError(t, err)
	return cfg
}

// IssueToken mints a token for email signed with Secret.
func IssueToken(t *testing.T, email, username string) string {
	t.Helper()

	token, err := auth.NewIssuer([]byte(Secret), "gochat").
		Issue(chat.Identity{Username: username, Email: email}, time.Minute)
	require.NoError(t, err)
	return token
}

// WebSocketURL turns an httptest server URL into the /ws endpoint, with the
// token query parameter when token is not empty.
func WebSocketURL(serverURL, token string) string {
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

// ConnectWebSocket dials url with the test origin and the given extra headers.
func ConnectWebSocket(url string, header http.Header) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	if header == nil {
		header = http.Header{}
	}
	if header.Get("Origin") == "" {
		header.Set("Origin", TestOrigin)
	}

	conn, resp, err := dialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// MustConnect dials url and fails the test on error. The connection is
// closed when the test ends.
func MustConnect(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := ConnectWebSocket(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendMessage sends a JSON message with a "content" field.
func SendMessage(conn *websocket.Conn, content string) error {
	return conn.WriteJSON(chat.Inbound{Content: content})
}

// ReadFrame reads the next frame, failing the test if none arrives in time.
func ReadFrame(t *testing.T, conn *websocket.Conn) chat.Frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frame chat.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// ReadCloseCode reads until the server closes the connection and returns
// the close code it sent.
func ReadCloseCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			return closeErr.Code
		}
	}
}

// CloseWebSocket sends a normal close frame, then closes the socket.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	require.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	require.Equal(t, expected, resp.Header.Get("Content-Type"), "unexpected content type")
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
