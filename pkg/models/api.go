// API request/response types for the chat server
package models

import (
	"github.com/parlor/parlor/pkg/db"
)

// ========== Type aliases for database types ==========
// These allow other packages to use models.Message instead of db.Message

type User = db.User
type Conversation = db.Conversation
type Message = db.Message

// ========== Constant aliases from db package ==========

const (
	SenderUser      = db.SenderUser
	SenderAssistant = db.SenderAssistant

	PlaceholderOwner = db.PlaceholderOwner
)

// ========== Auth API types ==========

// CredentialsRequest carries a signup or login attempt.
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse returns a signed bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ========== Message API types ==========

// CreateMessageRequest represents a request to create a message. When
// ConversationID is empty a new conversation is created implicitly.
// Sender is accepted for wire compatibility but ignored: this endpoint
// always records the user side and generates the assistant side itself.
type CreateMessageRequest struct {
	Text           string `json:"text"`
	Sender         string `json:"sender"`
	ConversationID string `json:"conversation_id"`
}

// CreateMessageResponse returns both sides of a completed send cycle.
type CreateMessageResponse struct {
	UserMessage    *Message `json:"user_message"`
	AIMessage      *Message `json:"ai_message"`
	ConversationID string   `json:"conversation_id"`
}

// ========== Conversation API types ==========

// CreateConversationRequest represents a request to create a conversation.
// When Message is set, the title is derived from its first 30 characters;
// otherwise Title is used as given (default "New Chat").
type CreateConversationRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// CreateConversationResponse returns the new conversation plus the caller's
// refreshed conversation list.
type CreateConversationResponse struct {
	Conversation  *Conversation  `json:"conversation"`
	Conversations []Conversation `json:"conversations"`
}

// DeleteConversationResponse returns the refreshed list after a delete.
type DeleteConversationResponse struct {
	Message       string         `json:"message"`
	Conversations []Conversation `json:"conversations"`
}

// ClearConversationsResponse reports a bulk delete.
type ClearConversationsResponse struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deleted_count"`
}
