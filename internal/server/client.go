package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// closeGracePeriod bounds how long a connection waits for the peer to answer
// a close frame before the socket is torn down.
const closeGracePeriod = time.Second

// Client owns one WebSocket connection. Reads happen on the session's
// goroutine; writes happen on the writer goroutine started by start, except
// for the history replay and the final close frame of a connection whose
// writer never started, which the session writes itself.
type Client struct {
	conn           *websocket.Conn
	addr           string
	send           chan []byte
	done           chan struct{}
	writerDone     chan struct{}
	closeOnce      sync.Once
	releaseOnce    sync.Once
	closeCode      int
	closeReason    string
	graceTimer     *time.Timer
	writeTimeout   time.Duration
	pongTimeout    time.Duration
	pingInterval   time.Duration
	maxMessageSize int64
	log            *slog.Logger
}

// ClientOptions carries the per-connection transport limits.
type ClientOptions struct {
	SendQueueSize  int
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

// NewClient wraps conn. The send queue is bounded by opts.SendQueueSize; once
// it is full, Enqueue fails instead of blocking the broadcaster.
func NewClient(conn *websocket.Conn, addr string, opts ClientOptions, log *slog.Logger) *Client {
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = 256
	}
	if conn != nil && opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}

	return &Client{
		conn:           conn,
		addr:           addr,
		send:           make(chan []byte, opts.SendQueueSize),
		done:           make(chan struct{}),
		closeCode:      CloseNormal,
		writeTimeout:   opts.WriteTimeout,
		pongTimeout:    opts.PongTimeout,
		pingInterval:   opts.PingInterval,
		maxMessageSize: opts.MaxMessageSize,
		log:            log.With("remote", addr),
	}
}

// Enqueue queues payload for the writer goroutine without blocking. It fails
// once the client is closing or its writer has died.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close marks the client as closing with code. It never touches the socket:
// the writer goroutine sends the close frame, or release does when the writer
// never started. Safe to call from any goroutine, more than once; the first
// code wins.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

func (c *Client) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// release stops the writer and closes the socket. It runs once, on the
// session goroutine, when the session reaches Closed.
func (c *Client) release() {
	c.releaseOnce.Do(func() {
		c.Close(CloseNormal, "")
		if c.conn == nil {
			return
		}

		if c.writerDone != nil {
			<-c.writerDone
			if c.graceTimer != nil {
				c.graceTimer.Stop()
			}
		} else {
			c.writeClose()
		}
		c.closeConn()
	})
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(c.handlePong)
}

// handlePong extends the read deadline while the client is open. Once it is
// closing the deadline is left to the close handshake.
func (c *Client) handlePong(string) error {
	if c.closing() {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
}

// read blocks until the next data frame arrives.
func (c *Client) read() ([]byte, error) {
	_, payload, err := c.conn.ReadMessage()
	return payload, err
}

// logReadError records why the read loop ended.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Message exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.log.Info("Client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("Client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket close", "error", err)
	default:
		c.log.Info("WebSocket read ended", "error", err)
	}
}

// writeText writes one text frame directly. Only valid before start.
func (c *Client) writeText(payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// writeClose sends the close frame recorded by Close.
func (c *Client) writeClose() {
	msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
	err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
	if err != nil && !isExpectedCloseError(err) {
		c.log.Debug("Error writing close message", "error", err)
	}
}

func (c *Client) closeConn() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("Error closing connection", "error", err)
	}
}

// start launches the writer goroutine. From then on every outbound frame
// goes through Enqueue.
func (c *Client) start() {
	c.writerDone = make(chan struct{})
	go c.writePump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		close(c.writerDone)
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing. A pending close wins over queued messages.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	if c.closing() {
		c.finishClose()
		return false
	}

	select {
	case <-c.done:
		c.finishClose()
		return false
	case message := <-c.send:
		return c.handleWrite(c.writeText(message), "message")
	case <-ticker.C:
		return c.handleWrite(c.writePing(), "ping")
	}
}

// finishClose sends the close frame and gives the peer closeGracePeriod to
// answer before the socket is closed, which unblocks the session's read loop.
func (c *Client) finishClose() {
	c.writeClose()
	c.graceTimer = time.AfterFunc(closeGracePeriod, c.closeConn)
}

// handleWrite tears the socket down after a failed write. The client is marked
// closing so the next broadcast reports it as a failed delivery, and the
// session's read loop ends as well.
func (c *Client) handleWrite(err error, kind string) bool {
	if err == nil {
		return true
	}
	if !isExpectedCloseError(err) {
		c.log.Warn("Error writing to client", "kind", kind, "error", err)
	}
	c.Close(websocket.CloseAbnormalClosure, "write failed")
	c.closeConn()
	return false
}

// writePing sends a ping message to keep the connection alive
func (c *Client) writePing() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}
