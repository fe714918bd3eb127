package ws

import (
	"context"
	"net/http"

	"number_baseball/internal/domain"
	"number_baseball/internal/logger"
	"number_baseball/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Options configure the upgrade and per-connection throttling.
type Options struct {
	AllowedOrigin string
	EventRate     float64
	EventBurst    int
}

// HandleMatchmaking serves /ws.
func HandleMatchmaking(hub *Hub, d *Dispatcher, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		serve(c, hub, d, opts, "")
	}
}

// HandleDuel serves /ws/duel/:id. The connection is bound to the session on
// connect; an unknown or full session gets an error event and is closed.
func HandleDuel(hub *Hub, d *Dispatcher, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		serve(c, hub, d, opts, c.Param("id"))
	}
}

func serve(c *gin.Context, hub *Hub, d *Dispatcher, opts Options, sessionID string) {
	var userID *int64
	if token := c.Query("token"); token != "" && service.JWTEnabled() {
		uid, err := service.ParseJWT(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID = &uid
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if opts.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == opts.AllowedOrigin
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("ws upgrade error", "error", err)
		return
	}

	var limiter *rate.Limiter
	if opts.EventRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.EventRate), max(opts.EventBurst, 1))
	}

	client := NewClient(conn, userID, sessionID, limiter)
	hub.Register(client)
	go client.writePump()

	hub.Notify(domain.Notice{To: client.ID, Type: domain.EventConnected, Payload: domain.ConnectedPayload{
		ConnectionID: client.ID,
		SessionID:    sessionID,
	}})

	ctx, cancel := context.WithTimeout(c.Request.Context(), eventTimeout)
	err = d.Connect(ctx, client)
	cancel()
	if err != nil {
		client.log.Debug("connect rejected", "error", err)
		hub.Notify(domain.NewErrorNotice(client.ID, err))
		hub.Unregister(client)
		return
	}

	client.log.Debug("connection open")
	go client.readPump(hub, d)
}
