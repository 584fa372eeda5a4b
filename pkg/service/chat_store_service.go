// Chat store service - conversation and message persistence
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/parlor/parlor/pkg/models"
	"github.com/parlor/parlor/pkg/utils"
	"gorm.io/gorm"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrEmptyText            = errors.New("message text is required")
)

// titleMaxLen is the number of leading characters of a message's text used
// as the conversation title.
const titleMaxLen = 30

// ChatStoreService handles conversation and message persistence.
type ChatStoreService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewChatStoreService creates a new chat store service.
func NewChatStoreService(gdb *gorm.DB) *ChatStoreService {
	return &ChatStoreService{
		db:     gdb,
		logger: utils.GetLogger(),
	}
}

// AutoMigrate creates database tables.
func (s *ChatStoreService) AutoMigrate() error {
	return s.db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{})
}

// DB returns the database instance.
func (s *ChatStoreService) DB() *gorm.DB {
	return s.db
}

// DeriveTitle returns the first 30 characters of text, with a trailing
// ellipsis iff the text is longer than that.
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxLen {
		return text
	}
	return string(runes[:titleMaxLen]) + "..."
}

// ========== Conversation Management ==========

// CreateConversation creates a new conversation owned by ownerID.
func (s *ChatStoreService) CreateConversation(ctx context.Context, ownerID, title string) (*models.Conversation, error) {
	if title == "" {
		title = "New Chat"
	}
	if ownerID == "" {
		ownerID = models.PlaceholderOwner
	}

	now := time.Now()
	conv := &models.Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// EnsureConversation returns the conversation with the given id, or creates
// a fresh one when id is empty. The seed text only feeds the initial title;
// appending the message itself is the caller's separate step.
func (s *ChatStoreService) EnsureConversation(ctx context.Context, ownerID, id, seedText string) (*models.Conversation, error) {
	if id == "" {
		return s.CreateConversation(ctx, ownerID, DeriveTitle(seedText))
	}
	return s.GetConversation(ctx, id)
}

// GetConversation retrieves a conversation by ID.
func (s *ChatStoreService) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// ListConversations lists a user's conversations, most recently updated first.
func (s *ChatStoreService) ListConversations(ctx context.Context, ownerID string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&conversations).Error; err != nil {
		return nil, err
	}
	return conversations, nil
}

// DeleteConversation deletes a user's conversation and all of its messages.
func (s *ChatStoreService) DeleteConversation(ctx context.Context, ownerID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConversationNotFound
		}
		// Cascade to messages so no orphans are left behind.
		return tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error
	})
}

// ClearConversations deletes all of a user's conversations and their
// messages, returning how many conversations were removed.
func (s *ChatStoreService) ClearConversations(ctx context.Context, ownerID string) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Conversation{}).Where("owner_id = ?", ownerID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("conversation_id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("owner_id = ?", ownerID).Delete(&models.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

// ========== Message Management ==========

// AppendMessage persists a message and refreshes the parent conversation's
// updated_at and title. The title is unconditionally re-derived from the
// appended text, whichever side sent it.
func (s *ChatStoreService) AppendMessage(ctx context.Context, conversationID, sender, text string) (*models.Message, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	now := time.Now()
	msg := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Text:           text,
		Sender:         sender,
		Timestamp:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, "id = ?", conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConversationNotFound
			}
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&conv).Updates(map[string]interface{}{
			"title":      DeriveTitle(text),
			"updated_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// GetMessages retrieves all messages for a conversation ordered by timestamp.
func (s *ChatStoreService) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteMessage deletes a single message by ID.
func (s *ChatStoreService) DeleteMessage(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Message{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}
