package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/conversation-api/internal/interfaces/httpserver/handlers"
)

func registerMaintenanceRoutes(router gin.IRoutes, handler *handlers.MaintenanceHandler) {
	router.POST("/conversations/:conversation_id/maintenance/check", handler.Check)
	router.POST("/conversations/:conversation_id/maintenance/repair", handler.Repair)
}
