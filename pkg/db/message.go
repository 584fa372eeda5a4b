// Database models for chat messages
package db

import "time"

// Message senders
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Message is one unit of chat content. Messages are immutable once created
// and totally ordered within a conversation by Timestamp.
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	ConversationID string    `json:"conversation_id" gorm:"index;size:36;not null"`
	Text           string    `json:"text" gorm:"type:text;not null"`
	Sender         string    `json:"sender" gorm:"size:20;not null"` // user, assistant
	Timestamp      time.Time `json:"timestamp" gorm:"index"`
}

func (Message) TableName() string {
	return "messages"
}
