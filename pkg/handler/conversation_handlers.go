// Conversation HTTP handlers
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parlor/parlor/pkg/models"
	"github.com/parlor/parlor/pkg/service"
	"github.com/parlor/parlor/pkg/utils"
)

// ConversationHandler handles conversation CRUD. All routes are
// owner-scoped: callers only ever see and mutate their own conversations.
type ConversationHandler struct {
	store  *service.ChatStoreService
	logger *slog.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(store *service.ChatStoreService) *ConversationHandler {
	return &ConversationHandler{
		store:  store,
		logger: utils.GetLogger(),
	}
}

// RegisterRoutes registers conversation routes.
func (h *ConversationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.List)
	r.POST("", h.Create)
	// clear-all must be registered before /:id
	r.DELETE("/clear-all", h.ClearAll)
	r.DELETE("/:id", h.Delete)
}

// List returns the caller's conversations, most recently updated first.
// GET /api/conversations
func (h *ConversationHandler) List(c *gin.Context) {
	conversations, err := h.store.ListConversations(c.Request.Context(), CurrentUser(c))
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// Create creates a conversation. When a message is supplied its first 30
// characters become the title; otherwise the given title (default
// "New Chat") is used. Returns the new conversation plus the refreshed
// list.
// POST /api/conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	owner := CurrentUser(c)

	title := req.Title
	if req.Message != "" {
		title = service.DeriveTitle(req.Message)
	}

	conv, err := h.store.CreateConversation(c.Request.Context(), owner, title)
	if err != nil {
		h.logger.Error("failed to create conversation", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to create conversation"})
		return
	}

	conversations, err := h.store.ListConversations(c.Request.Context(), owner)
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}

	c.JSON(http.StatusCreated, models.CreateConversationResponse{
		Conversation:  conv,
		Conversations: conversations,
	})
}

// Delete removes one of the caller's conversations and all its messages,
// returning the refreshed list.
// DELETE /api/conversations/:id
func (h *ConversationHandler) Delete(c *gin.Context) {
	owner := CurrentUser(c)

	if err := h.store.DeleteConversation(c.Request.Context(), owner, c.Param("id")); err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		h.logger.Error("failed to delete conversation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete conversation"})
		return
	}

	conversations, err := h.store.ListConversations(c.Request.Context(), owner)
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}

	c.JSON(http.StatusOK, models.DeleteConversationResponse{
		Message:       "conversation deleted successfully",
		Conversations: conversations,
	})
}

// ClearAll bulk-deletes the caller's conversations.
// DELETE /api/conversations/clear-all
func (h *ConversationHandler) ClearAll(c *gin.Context) {
	deleted, err := h.store.ClearConversations(c.Request.Context(), CurrentUser(c))
	if err != nil {
		h.logger.Error("failed to clear conversations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear conversations"})
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no conversations found to delete"})
		return
	}

	c.JSON(http.StatusOK, models.ClearConversationsResponse{
		Message:      "all conversations cleared successfully",
		DeletedCount: deleted,
	})
}
