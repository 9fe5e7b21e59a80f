package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client represents a connected WebSocket client
type Client struct {
	id     string
	conn   *websocket.Conn
	config *Config
	logger *zap.SugaredLogger
	send   chan Message
	done   chan struct{}

	// One check at a time
	mu          sync.Mutex
	checkCancel context.CancelFunc
}

func newClient(conn *websocket.Conn, config *Config, l *zap.SugaredLogger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		conn:   conn,
		config: config,
		logger: l.With("client", id),
		send:   make(chan Message, 256),
		done:   make(chan struct{}),
	}
}

func (c *Client) SendMessage(msg Message) {
	select {
	case c.send <- msg:
	default:
		// Channel full, drop message
		c.logger.Warn("message channel full, dropping message")
	}
}

func (c *Client) SendLog(message, level string) {
	c.SendMessage(NewLogMessage(message, level))
}

func (c *Client) SendProgress(percent int, stage, message string) {
	c.SendMessage(NewProgressMessage(percent, stage, message))
}

func (c *Client) SendError(message string, err error) {
	c.SendMessage(NewErrorMessage(message, err))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warnw("error writing message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		// Cancel any running check
		c.mu.Lock()
		if c.checkCancel != nil {
			c.checkCancel()
		}
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warnw("websocket error", "error", err)
			}
			return
		}

		switch msg.Type {
		case TypeCheck:
			c.handleCheck(msg)
		case TypePing:
			c.SendMessage(Message{Type: TypePong})
		default:
			c.SendError(fmt.Sprintf("Unknown message type: %s", msg.Type), nil)
		}
	}
}

// handleCheck starts a check in the background. A second check while one
// is running is rejected.
func (c *Client) handleCheck(msg Message) {
	payload, err := ParseCheckPayload(msg)
	if err != nil {
		c.SendError("Failed to parse check request", err)
		return
	}

	c.mu.Lock()
	if c.checkCancel != nil {
		c.mu.Unlock()
		c.SendError("Check already in progress", nil)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.checkCancel = cancel
	c.mu.Unlock()

	go func() {
		pipeline := NewPipeline(c.config, c, c.logger)
		report, err := pipeline.Run(ctx, payload)
		cancelled := errors.Is(ctx.Err(), context.Canceled)

		// Release the slot before reporting so the client can start the next check
		c.mu.Lock()
		c.checkCancel = nil
		c.mu.Unlock()
		cancel()

		switch {
		case err != nil && cancelled:
			c.SendLog("Check cancelled", "warning")
		case err != nil:
			c.SendError("Check failed", err)
		case report.HasErrors():
			c.SendMessage(NewCompleteMessage(false, fmt.Sprintf("Check found %d error(s)", report.Errors())))
		default:
			c.SendMessage(NewCompleteMessage(true, "Check complete"))
		}
	}()
}
