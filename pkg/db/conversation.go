// Database models for chat conversations
package db

import "time"

// Conversation represents a chat thread owned by a single user.
// UpdatedAt is refreshed every time a message is appended, and the title is
// re-derived from the appended message's text, so it always reflects
// whichever message was saved last.
type Conversation struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Title     string    `json:"title" gorm:"size:200;default:'New Chat'"`
	OwnerID   string    `json:"owner_id" gorm:"index;size:100;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}
