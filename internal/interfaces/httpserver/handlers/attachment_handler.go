package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/domain/conversation"
	"jan-server/services/conversation-api/internal/interfaces/httpserver/requests"
	"jan-server/services/conversation-api/internal/interfaces/httpserver/responses"
	"jan-server/services/conversation-api/internal/utils/platformerrors"
)

// AttachmentHandler exposes attachment byte upload and retrieval.
type AttachmentHandler struct {
	store         conversation.AttachmentStore
	conversations ConversationService
	log           zerolog.Logger
}

// NewAttachmentHandler constructs the handler.
func NewAttachmentHandler(store conversation.AttachmentStore, conversations ConversationService, log zerolog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		store:         store,
		conversations: conversations,
		log:           log.With().Str("handler", "attachment").Logger(),
	}
}

// Upload handles POST /v1/conversations/:conversation_id/attachments
// @Summary Upload attachment bytes
// @Description Stores the decoded payload outside the database and returns the opaque ref to embed in a turn.
// @Tags Attachments
// @Accept json
// @Produce json
// @Param conversation_id path string true "Conversation ID"
// @Param request body requests.UploadAttachmentRequest true "Base64 payload"
// @Success 201 {object} responses.AttachmentResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{conversation_id}/attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	var req requests.UploadAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "3f4a5b6c-7d8e-49f0-a1b2-c3d4e5f6a7b8")
		return
	}

	conversationID := c.Param("conversation_id")
	if _, err := h.conversations.GetConversation(c.Request.Context(), conversationID); err != nil {
		responses.HandleError(c, err, "failed to resolve conversation")
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "attachment data must be base64 encoded", "4a5b6c7d-8e9f-40a1-b2c3-d4e5f6a7b8c9")
		return
	}

	ref, err := h.store.Save(c.Request.Context(), conversationID, data, req.MimeType)
	if err != nil {
		responses.HandleError(c, err, "failed to save attachment")
		return
	}

	c.JSON(http.StatusCreated, responses.AttachmentResponse{Ref: ref, MimeType: req.MimeType, Size: len(data)})
}

// Download handles GET /v1/attachments/*ref
// @Summary Download attachment bytes by ref
// @Tags Attachments
// @Produce octet-stream
// @Param ref path string true "Attachment ref"
// @Success 200 {file} binary
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/attachments/{ref} [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	ref := strings.TrimPrefix(c.Param("ref"), "/")
	data, err := h.store.Load(c.Request.Context(), ref)
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeNotFound, "attachment not found", "5b6c7d8e-9f0a-41b2-c3d4-e5f6a7b8c9d0")
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// Delete handles DELETE /v1/attachments/*ref
// @Summary Delete attachment bytes by ref
// @Tags Attachments
// @Param ref path string true "Attachment ref"
// @Success 204
// @Router /v1/attachments/{ref} [delete]
func (h *AttachmentHandler) Delete(c *gin.Context) {
	ref := strings.TrimPrefix(c.Param("ref"), "/")
	if err := h.store.Remove(c.Request.Context(), ref); err != nil {
		responses.HandleError(c, err, "failed to delete attachment")
		return
	}
	c.Status(http.StatusNoContent)
}
