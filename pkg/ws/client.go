package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/parlor/parlor/pkg/models"
	"github.com/parlor/parlor/pkg/service"
	"github.com/parlor/parlor/pkg/utils"
)

// Events received from clients.
const (
	eventJoinConversation = "join_conversation"
	eventSendMessage      = "send_message"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// wireEvent is the JSON frame exchanged over the socket.
type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	TS    int64           `json:"ts,omitempty"`
}

// outEvent is a server-to-client frame before serialization.
type outEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	TS    int64  `json:"ts"`
}

// Client is one live websocket connection. Outbound events go through a
// buffered channel; when the buffer is full the event is dropped rather
// than blocking a broadcast on a slow reader.
type Client struct {
	conn     *websocket.Conn
	send     chan outEvent
	done     chan struct{}
	registry *Registry
	userID   string
	logger   *slog.Logger
}

// Deliver queues an event for this client. Never blocks. Events for a
// closed or saturated client are dropped; an in-flight reply cycle may
// outlive the connection it started on.
func (c *Client) Deliver(event string, payload any) {
	msg := outEvent{
		Event: event,
		Data:  payload,
		TS:    time.Now().UnixMilli(),
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		// Drop if buffer is full
		c.logger.Debug("dropped event (buffer full)", "event", event)
	}
}

// NotifyError sends an error event to this client only.
func (c *Client) NotifyError(message string) {
	c.Deliver(service.EventError, gin.H{"message": message})
}

// Gateway upgrades HTTP requests to websocket connections and dispatches
// inbound events to the relay.
type Gateway struct {
	registry *Registry
	relay    *service.RelayService
	auth     *service.AuthService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewGateway creates a websocket gateway.
func NewGateway(registry *Registry, relay *service.RelayService, auth *service.AuthService) *Gateway {
	return &Gateway{
		registry: registry,
		relay:    relay,
		auth:     auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: utils.GetLogger(),
	}
}

// Handle is the Gin handler for websocket connections.
// Query params:
//   - token: optional bearer token establishing the caller's identity;
//     without it the connection acts as the placeholder owner.
func (g *Gateway) Handle(c *gin.Context) {
	userID := models.PlaceholderOwner
	if token := c.Query("token"); token != "" {
		id, err := g.auth.ParseToken(token)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			return
		}
		userID = id
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &Client{
		conn:     conn,
		send:     make(chan outEvent, sendBuffer),
		done:     make(chan struct{}),
		registry: g.registry,
		userID:   userID,
		logger:   g.logger,
	}

	g.logger.Debug("client connected", "user_id", userID)

	go client.writePump()
	g.readPump(client)
}

// readPump reads frames until the connection drops, then removes the client
// from every room. Each send_message cycle runs in its own goroutine so a
// 3-5 s reply delay never blocks the next inbound frame; a disconnect does
// not cancel in-flight cycles, they run to completion and broadcast to
// whoever is left.
func (g *Gateway) readPump(c *Client) {
	defer func() {
		g.registry.Leave(c)
		close(c.done)
		_ = c.conn.Close()
		g.logger.Debug("client disconnected", "user_id", c.userID)
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame wireEvent
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.NotifyError("malformed event")
			continue
		}

		switch frame.Event {
		case eventJoinConversation:
			var conversationID string
			if err := json.Unmarshal(frame.Data, &conversationID); err != nil || conversationID == "" {
				c.NotifyError("conversation id is required")
				continue
			}
			g.registry.Join(c, conversationID)
			g.logger.Debug("client joined conversation", "conversation_id", conversationID)

		case eventSendMessage:
			var in service.IncomingMessage
			if err := json.Unmarshal(frame.Data, &in); err != nil {
				c.NotifyError("malformed message")
				continue
			}
			go g.relay.HandleIncoming(context.Background(), c, c.userID, in)

		default:
			c.NotifyError("unknown event")
		}
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
