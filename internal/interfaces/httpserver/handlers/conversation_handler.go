package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/domain/conversation"
	"jan-server/services/conversation-api/internal/interfaces/httpserver/requests"
	"jan-server/services/conversation-api/internal/interfaces/httpserver/responses"
	"jan-server/services/conversation-api/internal/utils/platformerrors"
)

// ConversationHandler exposes HTTP entrypoints for conversations and turns.
type ConversationHandler struct {
	service ConversationService
	log     zerolog.Logger
}

// NewConversationHandler constructs the handler.
func NewConversationHandler(service ConversationService, log zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		log:     log.With().Str("handler", "conversation").Logger(),
	}
}

// Create handles POST /v1/conversations
// @Summary Create a conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Param request body requests.CreateConversationRequest true "Conversation attributes"
// @Success 201 {object} responses.ConversationResponse
// @Failure 400 {object} responses.ErrorResponse
// @Router /v1/conversations [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	var req requests.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "8a9b0c1d-2e3f-44a5-b6c7-d8e9f0a1b2c3")
		return
	}

	conv, err := h.service.CreateConversation(c.Request.Context(), req.Name, req.Metadata)
	if err != nil {
		responses.HandleError(c, err, "failed to create conversation")
		return
	}

	c.JSON(http.StatusCreated, responses.MapConversation(conv))
}

// Get handles GET /v1/conversations/:conversation_id
// @Summary Get a conversation
// @Tags Conversations
// @Produce json
// @Param conversation_id path string true "Conversation ID"
// @Success 200 {object} responses.ConversationResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{conversation_id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.service.GetConversation(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get conversation")
		return
	}

	c.JSON(http.StatusOK, responses.MapConversation(conv))
}

// List handles GET /v1/conversations
// @Summary List conversations
// @Tags Conversations
// @Produce json
// @Param limit query int false "Maximum number of results" default(100)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} responses.ConversationListResponse
// @Router /v1/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	limit, offset := 0, 0
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}

	convs, err := h.service.ListConversations(c.Request.Context(), limit, offset)
	if err != nil {
		responses.HandleError(c, err, "failed to list conversations")
		return
	}

	data := make([]responses.ConversationResponse, 0, len(convs))
	for i := range convs {
		data = append(data, responses.MapConversation(&convs[i]))
	}
	c.JSON(http.StatusOK, responses.ConversationListResponse{Data: data})
}

// Delete handles DELETE /v1/conversations/:conversation_id
// @Summary Delete a conversation and everything under it
// @Tags Conversations
// @Param conversation_id path string true "Conversation ID"
// @Success 204
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{conversation_id} [delete]
func (h *ConversationHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteConversation(c.Request.Context(), c.Param("conversation_id")); err != nil {
		responses.HandleError(c, err, "failed to delete conversation")
		return
	}
	c.Status(http.StatusNoContent)
}

// History handles GET /v1/conversations/:conversation_id/history
// @Summary Flat chronological message history
// @Description Returns every message in creation order, ignoring the tree.
// @Tags Conversations
// @Produce json
// @Param conversation_id path string true "Conversation ID"
// @Success 200 {array} responses.MessageResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{conversation_id}/history [get]
func (h *ConversationHandler) History(c *gin.Context) {
	messages, err := h.service.GetHistory(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get history")
		return
	}
	c.JSON(http.StatusOK, responses.MapMessages(messages))
}

// AppendTurn handles POST /v1/conversations/:conversation_id/turns
// @Summary Append a user/assistant turn to a branch
// @Tags Conversations
// @Accept json
// @Produce json
// @Param conversation_id path string true "Conversation ID"
// @Param request body requests.AppendTurnRequest true "Turn content"
// @Success 201 {object} responses.TurnResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{conversation_id}/turns [post]
func (h *ConversationHandler) AppendTurn(c *gin.Context) {
	var req requests.AppendTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "9b0c1d2e-3f4a-45b6-c7d8-e9f0a1b2c3d4")
		return
	}

	turn, err := h.service.AppendTurn(c.Request.Context(), conversation.AppendTurnParams{
		ConversationID:     c.Param("conversation_id"),
		BranchID:           req.BranchID,
		ParentMessageID:    req.ParentMessageID,
		UserContent:        req.UserContent,
		AssistantContent:   req.AssistantContent,
		UserMessageID:      req.UserMessageID,
		AssistantMessageID: req.AssistantMessageID,
	})
	if err != nil {
		responses.HandleError(c, err, "failed to append turn")
		return
	}

	c.JSON(http.StatusCreated, responses.MapTurn(turn))
}

// Tree handles GET /v1/conversations/:conversation_id/tree
// @Summary Full branch forest for visualization
// @Tags Conversations
// @Produce json
// @Param conversation_id path string true "Conversation ID"
// @Success 200 {object} responses.ConversationTreeResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{conversation_id}/tree [get]
func (h *ConversationHandler) Tree(c *gin.Context) {
	treeView, err := h.service.GetConversationTree(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get conversation tree")
		return
	}
	c.JSON(http.StatusOK, responses.MapConversationTree(treeView))
}
