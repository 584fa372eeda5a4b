// Message relay - the persist/broadcast/typing/reply cycle
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/parlor/parlor/pkg/models"
	"github.com/parlor/parlor/pkg/utils"
)

// Events pushed to room subscribers.
const (
	EventReceiveMessage = "receive_message"
	EventAITyping       = "ai_typing"
	EventError          = "error"
)

// Broadcaster fans an event out to every current subscriber of a
// conversation. Delivery is best effort by contract: no acknowledgments are
// tracked, nothing is retried, and a subscriber that is slow or already gone
// simply misses the event. Implementations must not block.
type Broadcaster interface {
	Broadcast(conversationID, event string, payload any)
}

// ErrorNotifier surfaces a failure to the originating connection only, as
// opposed to the whole room.
type ErrorNotifier interface {
	NotifyError(message string)
}

// ReplyGenerator produces assistant replies. *ReplyService is the real
// implementation; tests substitute deterministic or failing ones.
type ReplyGenerator interface {
	Generate(ctx context.Context, conversationID string) (string, error)
	Pick() string
}

// IncomingMessage is a send_message event received over a socket.
type IncomingMessage struct {
	Text           string `json:"text"`
	Sender         string `json:"sender"`
	ConversationID string `json:"conversation_id"`
}

// RelayService runs the message cycle: persist the user's message, broadcast
// it, signal typing, produce the assistant reply, persist and broadcast it,
// clear typing. Cycles for the same conversation are not mutually excluded,
// so two rapid sends may interleave their steps; subscribers can then
// observe an order that differs from submission order.
type RelayService struct {
	store   *ChatStoreService
	replies ReplyGenerator
	rooms   Broadcaster
	logger  *slog.Logger
}

// NewRelayService creates a new relay service.
func NewRelayService(store *ChatStoreService, replies ReplyGenerator, rooms Broadcaster) *RelayService {
	return &RelayService{
		store:   store,
		replies: replies,
		rooms:   rooms,
		logger:  utils.GetLogger(),
	}
}

// HandleIncoming processes one send_message event from origin. It never
// returns an error; failures are reported to the originating connection and
// the room's typing indicator is force-cleared so the room is never left
// stuck in a perpetual typing state. Nothing is retried.
func (s *RelayService) HandleIncoming(ctx context.Context, origin ErrorNotifier, ownerID string, in IncomingMessage) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		// Rejected before any write; no room-visible state to correct.
		origin.NotifyError("message text is required")
		return
	}

	conv, err := s.store.EnsureConversation(ctx, ownerID, in.ConversationID, text)
	if err != nil {
		s.fail(origin, in.ConversationID, err)
		return
	}
	convID := conv.ID

	userMsg, err := s.store.AppendMessage(ctx, convID, models.SenderUser, text)
	if err != nil {
		s.fail(origin, convID, err)
		return
	}
	s.rooms.Broadcast(convID, EventReceiveMessage, userMsg)
	s.rooms.Broadcast(convID, EventAITyping, true)

	replyText, err := s.replies.Generate(ctx, convID)
	if err != nil {
		s.fail(origin, convID, err)
		return
	}

	aiMsg, err := s.store.AppendMessage(ctx, convID, models.SenderAssistant, replyText)
	if err != nil {
		s.fail(origin, convID, err)
		return
	}
	s.rooms.Broadcast(convID, EventReceiveMessage, aiMsg)
	s.rooms.Broadcast(convID, EventAITyping, false)
}

// CreateMessageSync is the REST-only entry point. It shares the persistence
// and title-update semantics of the socket cycle but returns both saved
// messages in one response, emits no typing signals and never touches the
// room registry: messages created this way are invisible to live
// subscribers of the conversation.
func (s *RelayService) CreateMessageSync(ctx context.Context, ownerID, text, conversationID string) (*models.CreateMessageResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	conv, err := s.store.EnsureConversation(ctx, ownerID, conversationID, text)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.store.AppendMessage(ctx, conv.ID, models.SenderUser, text)
	if err != nil {
		return nil, err
	}

	aiMsg, err := s.store.AppendMessage(ctx, conv.ID, models.SenderAssistant, s.replies.Pick())
	if err != nil {
		return nil, err
	}

	return &models.CreateMessageResponse{
		UserMessage:    userMsg,
		AIMessage:      aiMsg,
		ConversationID: conv.ID,
	}, nil
}

// fail reports the error to the originating connection and force-clears the
// room's typing indicator. The delay already spent on the reply is not
// refunded.
func (s *RelayService) fail(origin ErrorNotifier, conversationID string, err error) {
	s.logger.Error("message cycle failed", "conversation_id", conversationID, "error", err)
	origin.NotifyError("error sending message")
	if conversationID != "" {
		s.rooms.Broadcast(conversationID, EventAITyping, false)
	}
}
