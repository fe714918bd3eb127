package ws

import (
	"log/slog"
	"time"

	"number_baseball/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one WebSocket connection. SessionID is set for duel connections
// and empty for matchmaking ones.
type Client struct {
	ID        string
	UserID    *int64
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte

	limiter *rate.Limiter
	log     *slog.Logger
}

func NewClient(conn *websocket.Conn, userID *int64, sessionID string, limiter *rate.Limiter) *Client {
	id := uuid.NewString()
	l := logger.ForConn(id)
	if sessionID != "" {
		l = l.With("session", sessionID)
	}
	return &Client{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		limiter:   limiter,
		log:       l,
	}
}

func (c *Client) InDuel() bool {
	return c.SessionID != ""
}

// allow reports whether another inbound event fits the connection's budget.
func (c *Client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// readPump feeds inbound frames to the dispatcher until the connection
// drops, then runs disconnect cleanup before returning.
func (c *Client) readPump(hub *Hub, d *Dispatcher) {
	defer func() {
		hub.Unregister(c)
		d.Disconnect(c)
		_ = c.Conn.Close()
		c.log.Debug("connection closed")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read error", "error", err)
			}
			return
		}
		d.Dispatch(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
