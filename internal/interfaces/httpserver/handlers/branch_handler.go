package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/interfaces/httpserver/requests"
	"jan-server/services/conversation-api/internal/interfaces/httpserver/responses"
	"jan-server/services/conversation-api/internal/utils/platformerrors"
)

// BranchHandler exposes HTTP entrypoints for branch management.
type BranchHandler struct {
	service ConversationService
	log     zerolog.Logger
}

// NewBranchHandler constructs the handler.
func NewBranchHandler(service ConversationService, log zerolog.Logger) *BranchHandler {
	return &BranchHandler{
		service: service,
		log:     log.With().Str("handler", "branch").Logger(),
	}
}

// Create handles POST /v1/conversations/:conversation_id/branches
// @Summary Fork a branch at an existing message
// @Tags Branches
// @Accept json
// @Produce json
// @Param conversation_id path string true "Conversation ID"
// @Param request body requests.CreateBranchRequest true "Fork point and name"
// @Success 201 {object} responses.BranchResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{conversation_id}/branches [post]
func (h *BranchHandler) Create(c *gin.Context) {
	var req requests.CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "0c1d2e3f-4a5b-46c7-d8e9-f0a1b2c3d4e5")
		return
	}

	branch, err := h.service.CreateBranchFromMessage(c.Request.Context(), c.Param("conversation_id"), req.MessageID, req.Name)
	if err != nil {
		responses.HandleError(c, err, "failed to create branch")
		return
	}

	c.JSON(http.StatusCreated, responses.MapBranch(branch))
}

// List handles GET /v1/conversations/:conversation_id/branches
// @Summary List branches with computed stats
// @Tags Branches
// @Produce json
// @Param conversation_id path string true "Conversation ID"
// @Success 200 {object} responses.BranchListResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{conversation_id}/branches [get]
func (h *BranchHandler) List(c *gin.Context) {
	branches, stats, err := h.service.ListBranches(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to list branches")
		return
	}

	data := make([]responses.BranchResponse, 0, len(branches))
	for i := range branches {
		data = append(data, responses.MapBranch(&branches[i]))
	}
	c.JSON(http.StatusOK, responses.BranchListResponse{Data: data, Stats: stats})
}

// Path handles GET /v1/branches/:branch_id/path
// @Summary Linear root-to-head transcript of a branch
// @Tags Branches
// @Produce json
// @Param branch_id path string true "Branch ID"
// @Param message_id query string false "Walk to this message instead of the branch head"
// @Success 200 {object} responses.BranchPathResponse
// @Failure 404 {object} responses.ErrorResponse
// @Failure 409 {object} responses.ErrorResponse
// @Router /v1/branches/{branch_id}/path [get]
func (h *BranchHandler) Path(c *gin.Context) {
	path, err := h.service.GetBranchPath(c.Request.Context(), c.Param("branch_id"), c.Query("message_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get branch path")
		return
	}
	c.JSON(http.StatusOK, responses.MapBranchPath(path))
}

// Divergence handles GET /v1/branches/:branch_id/divergence
// @Summary Last common ancestor of two branches
// @Tags Branches
// @Produce json
// @Param branch_id path string true "Branch ID"
// @Param other query string true "Branch to compare against"
// @Success 200 {object} responses.DivergenceResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/branches/{branch_id}/divergence [get]
func (h *BranchHandler) Divergence(c *gin.Context) {
	other := c.Query("other")
	if other == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "query parameter 'other' is required", "2f3a4b5c-6d7e-48f9-a0b1-c2d3e4f5a6b7")
		return
	}

	messageID, found, err := h.service.FindDivergencePoint(c.Request.Context(), c.Param("branch_id"), other)
	if err != nil {
		responses.HandleError(c, err, "failed to find divergence point")
		return
	}
	c.JSON(http.StatusOK, responses.DivergenceResponse{MessageID: messageID, Found: found})
}

// Rename handles PATCH /v1/branches/:branch_id
// @Summary Rename a branch
// @Tags Branches
// @Accept json
// @Produce json
// @Param branch_id path string true "Branch ID"
// @Param request body requests.RenameBranchRequest true "New name"
// @Success 200 {object} responses.BranchResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/branches/{branch_id} [patch]
func (h *BranchHandler) Rename(c *gin.Context) {
	var req requests.RenameBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "1d2e3f4a-5b6c-47d8-e9f0-a1b2c3d4e5f6")
		return
	}

	branch, err := h.service.RenameBranch(c.Request.Context(), c.Param("branch_id"), req.Name)
	if err != nil {
		responses.HandleError(c, err, "failed to rename branch")
		return
	}
	c.JSON(http.StatusOK, responses.MapBranch(branch))
}

// Delete handles DELETE /v1/branches/:branch_id
// @Summary Delete a branch and its exclusive messages
// @Tags Branches
// @Param branch_id path string true "Branch ID"
// @Success 204
// @Failure 400 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/branches/{branch_id} [delete]
func (h *BranchHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteBranch(c.Request.Context(), c.Param("branch_id")); err != nil {
		responses.HandleError(c, err, "failed to delete branch")
		return
	}
	c.Status(http.StatusNoContent)
}
