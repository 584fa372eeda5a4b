// Message HTTP handlers
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

// MessageHandler handles the synchronous message path. Unlike the socket
// path it returns both saved messages in one response and emits no room
// events, so REST-origin messages do not appear live to connected clients.
type MessageHandler struct {
	relay  *service.RelayService
	store  *service.ChatStoreService
	logger *slog.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(relay *service.RelayService, store *service.ChatStoreService) *MessageHandler {
	return &MessageHandler{
		relay:  relay,
		store:  store,
		logger: utils.GetLogger(),
	}
}

// RegisterRoutes registers message routes.
func (h *MessageHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/:conversationId", h.List)
	r.POST("", h.Create)
	r.DELETE("/:id", h.Delete)
}

// List returns a conversation's messages ordered by timestamp.
// GET /api/messages/:conversationId
func (h *MessageHandler) List(c *gin.Context) {
	messages, err := h.store.GetMessages(c.Request.Context(), c.Param("conversationId"))
	if err != nil {
		h.logger.Error("failed to get messages", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

// Create persists a user message and an immediate canned reply, creating
// the conversation first when no id is given.
// POST /api/messages
func (h *MessageHandler) Create(c *gin.Context) {
	var req models.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	resp, err := h.relay.CreateMessageSync(c.Request.Context(), CurrentUser(c), req.Text, req.ConversationID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyText) || errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed to create message", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to create message"})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Delete removes a single message.
// DELETE /api/messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	if err := h.store.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, service.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		h.logger.Error("failed to delete message", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "message deleted successfully"})
}
