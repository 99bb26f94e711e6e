package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/interfaces/httpserver/responses"
)

// MaintenanceHandler exposes consistency check and repair endpoints.
type MaintenanceHandler struct {
	service ConversationService
	log     zerolog.Logger
}

// NewMaintenanceHandler constructs the handler.
func NewMaintenanceHandler(service ConversationService, log zerolog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		service: service,
		log:     log.With().Str("handler", "maintenance").Logger(),
	}
}

// Check handles POST /v1/conversations/:conversation_id/maintenance/check
// @Summary Check tree consistency
// @Description Inspects the conversation's rows and reports structural violations without mutating anything.
// @Tags Maintenance
// @Produce json
// @Param conversation_id path string true "Conversation ID"
// @Success 200 {object} responses.ConsistencyResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{conversation_id}/maintenance/check [post]
func (h *MaintenanceHandler) Check(c *gin.Context) {
	report, err := h.service.CheckConsistency(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to check consistency")
		return
	}
	c.JSON(http.StatusOK, responses.MapReport(report))
}

// Repair handles POST /v1/conversations/:conversation_id/maintenance/repair
// @Summary Repair the message tree
// @Description Re-attaches orphaned messages and dangling edges under the main branch head, bounded by the configured step budget. Idempotent once the tree is healthy.
// @Tags Maintenance
// @Produce json
// @Param conversation_id path string true "Conversation ID"
// @Success 200 {object} responses.RepairResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{conversation_id}/maintenance/repair [post]
func (h *MaintenanceHandler) Repair(c *gin.Context) {
	result, err := h.service.RepairTree(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to repair tree")
		return
	}
	c.JSON(http.StatusOK, responses.RepairResponse{
		MessagesAttached: result.MessagesAttached,
		EdgesReparented:  result.EdgesReparented,
		Truncated:        result.Truncated,
	})
}
