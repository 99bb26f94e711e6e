package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/domain/chat"
	"jan-server/services/conversation-api/internal/interfaces/httpserver/requests"
	"jan-server/services/conversation-api/internal/interfaces/httpserver/responses"
	"jan-server/services/conversation-api/internal/utils/platformerrors"
)

// ChatHandler exposes the model-backed chat endpoint.
type ChatHandler struct {
	service ChatService
	log     zerolog.Logger
}

// NewChatHandler constructs the handler.
func NewChatHandler(service ChatService, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		log:     log.With().Str("handler", "chat").Logger(),
	}
}

// Send handles POST /v1/conversations/:conversation_id/chat
// @Summary Send a message through the model on a branch
// @Description Reconstructs the branch transcript, requests a completion, and appends the resulting turn.
// @Tags Chat
// @Accept json
// @Produce json
// @Param conversation_id path string true "Conversation ID"
// @Param request body requests.ChatRequest true "Message content"
// @Success 201 {object} responses.TurnResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Failure 502 {object} responses.ErrorResponse
// @Router /v1/conversations/{conversation_id}/chat [post]
func (h *ChatHandler) Send(c *gin.Context) {
	var req requests.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "2e3f4a5b-6c7d-48e9-f0a1-b2c3d4e5f6a7")
		return
	}

	turn, err := h.service.Send(c.Request.Context(), chat.SendParams{
		ConversationID: c.Param("conversation_id"),
		BranchID:       req.BranchID,
		Content:        req.Content,
	})
	if err != nil {
		responses.HandleError(c, err, "failed to send chat message")
		return
	}

	c.JSON(http.StatusCreated, responses.MapTurn(turn))
}
