package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/parlor/parlor/pkg/db"
	"github.com/parlor/parlor/pkg/models"
	"github.com/parlor/parlor/pkg/service"
	"github.com/parlor/parlor/pkg/utils"
)

type gatewayFixture struct {
	store    *service.ChatStoreService
	registry *Registry
	server   *httptest.Server
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	store := service.NewChatStoreService(gdb)
	if err := store.AutoMigrate(); err != nil {
		t.Fatalf("migrate database: %v", err)
	}

	auth := service.NewAuthService(gdb, "test-secret", time.Hour)
	replies := service.NewReplyServiceWithProviders(
		func() time.Duration { return 0 },
		func(n int) int { return 0 },
	)
	registry := NewRegistry()
	relay := service.NewRelayService(store, replies, registry)
	gateway := NewGateway(registry, relay, auth)

	r := gin.New()
	r.GET("/ws", gateway.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &gatewayFixture{store: store, registry: registry, server: srv}
}

func (f *gatewayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s data: %v", event, err)
	}
	frame := map[string]any{"event": event, "data": json.RawMessage(raw)}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write %s frame: %v", event, err)
	}
}

type receivedFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) receivedFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f receivedFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// waitForRoomSize polls until the room has n subscribers. Joins are
// processed per connection with no cross-connection ordering, so the test
// must observe the registry before triggering a send.
func waitForRoomSize(t *testing.T, r *Registry, conversationID string, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r.RoomSize(conversationID) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached %d subscribers", conversationID, n)
}

func TestGateway_SendMessageReachesEverySubscriberInOrder(t *testing.T) {
	f := newGatewayFixture(t)

	conv, err := f.store.CreateConversation(context.Background(), models.PlaceholderOwner, "New Chat")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	a := f.dial(t)
	b := f.dial(t)
	sendFrame(t, a, "join_conversation", conv.ID)
	sendFrame(t, b, "join_conversation", conv.ID)
	waitForRoomSize(t, f.registry, conv.ID, 2)

	sendFrame(t, a, "send_message", map[string]any{
		"text":            "Hello there",
		"sender":          models.SenderUser,
		"conversation_id": conv.ID,
	})

	// The sender and the bystander see the same four frames in cycle order.
	for name, conn := range map[string]*websocket.Conn{"sender": a, "bystander": b} {
		frame := readFrame(t, conn)
		if frame.Event != service.EventReceiveMessage {
			t.Fatalf("%s frame 0 = %q, want %q", name, frame.Event, service.EventReceiveMessage)
		}
		var userMsg models.Message
		if err := json.Unmarshal(frame.Data, &userMsg); err != nil {
			t.Fatalf("%s decode user message: %v", name, err)
		}
		if userMsg.Sender != models.SenderUser || userMsg.Text != "Hello there" {
			t.Fatalf("%s got user message %+v", name, userMsg)
		}

		frame = readFrame(t, conn)
		var typing bool
		if err := json.Unmarshal(frame.Data, &typing); err != nil {
			t.Fatalf("%s decode typing payload: %v", name, err)
		}
		if frame.Event != service.EventAITyping || !typing {
			t.Fatalf("%s frame 1 = %q/%v, want ai_typing true", name, frame.Event, typing)
		}

		frame = readFrame(t, conn)
		if frame.Event != service.EventReceiveMessage {
			t.Fatalf("%s frame 2 = %q, want %q", name, frame.Event, service.EventReceiveMessage)
		}
		var aiMsg models.Message
		if err := json.Unmarshal(frame.Data, &aiMsg); err != nil {
			t.Fatalf("%s decode assistant message: %v", name, err)
		}
		if aiMsg.Sender != models.SenderAssistant || aiMsg.Text == "" {
			t.Fatalf("%s got assistant message %+v", name, aiMsg)
		}
		if aiMsg.ConversationID != conv.ID {
			t.Fatalf("%s assistant message conversation = %q, want %q", name, aiMsg.ConversationID, conv.ID)
		}

		frame = readFrame(t, conn)
		if err := json.Unmarshal(frame.Data, &typing); err != nil {
			t.Fatalf("%s decode typing payload: %v", name, err)
		}
		if frame.Event != service.EventAITyping || typing {
			t.Fatalf("%s frame 3 = %q/%v, want ai_typing false", name, frame.Event, typing)
		}
	}
}

func TestGateway_BadFramesGetErrorEvents(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write raw frame: %v", err)
	}
	if frame := readFrame(t, conn); frame.Event != service.EventError {
		t.Fatalf("malformed frame answered with %q, want %q", frame.Event, service.EventError)
	}

	sendFrame(t, conn, "join_conversation", "")
	if frame := readFrame(t, conn); frame.Event != service.EventError {
		t.Fatalf("empty join answered with %q, want %q", frame.Event, service.EventError)
	}

	sendFrame(t, conn, "bogus_event", nil)
	if frame := readFrame(t, conn); frame.Event != service.EventError {
		t.Fatalf("unknown event answered with %q, want %q", frame.Event, service.EventError)
	}
}

func TestGateway_EmptySendNotifiesOriginOnly(t *testing.T) {
	f := newGatewayFixture(t)

	conv, err := f.store.CreateConversation(context.Background(), models.PlaceholderOwner, "New Chat")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	origin := f.dial(t)
	bystander := f.dial(t)
	sendFrame(t, origin, "join_conversation", conv.ID)
	sendFrame(t, bystander, "join_conversation", conv.ID)
	waitForRoomSize(t, f.registry, conv.ID, 2)

	sendFrame(t, origin, "send_message", map[string]any{
		"text":            "   ",
		"sender":          models.SenderUser,
		"conversation_id": conv.ID,
	})

	if frame := readFrame(t, origin); frame.Event != service.EventError {
		t.Fatalf("origin got %q, want %q", frame.Event, service.EventError)
	}

	// The bystander hears nothing; a rejected send broadcasts no events.
	_ = bystander.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var leaked receivedFrame
	if err := bystander.ReadJSON(&leaked); err == nil {
		t.Fatalf("bystander received %+v, want nothing", leaked)
	}
}

func TestClientDeliver_DropsInsteadOfBlocking(t *testing.T) {
	c := &Client{
		send:   make(chan outEvent, 1),
		done:   make(chan struct{}),
		logger: utils.GetLogger(),
	}

	c.Deliver(service.EventReceiveMessage, "first")
	// Buffer is full now; this must return without blocking.
	c.Deliver(service.EventReceiveMessage, "second")

	ev := <-c.send
	if ev.Data != "first" {
		t.Fatalf("queued event data = %v, want %q", ev.Data, "first")
	}
	select {
	case ev := <-c.send:
		t.Fatalf("dropped event was queued: %+v", ev)
	default:
	}

	// After shutdown Deliver is a no-op, never a panic.
	close(c.done)
	c.Deliver(service.EventReceiveMessage, "after close")
	select {
	case ev := <-c.send:
		t.Fatalf("event queued after close: %+v", ev)
	default:
	}
}
