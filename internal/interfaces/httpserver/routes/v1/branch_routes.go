package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/conversation-api/internal/interfaces/httpserver/handlers"
)

func registerBranchRoutes(router gin.IRoutes, handler *handlers.BranchHandler) {
	// Branch creation and listing nested under conversations
	router.POST("/conversations/:conversation_id/branches", handler.Create)
	router.GET("/conversations/:conversation_id/branches", handler.List)

	router.GET("/branches/:branch_id/path", handler.Path)
	router.GET("/branches/:branch_id/divergence", handler.Divergence)
	router.PATCH("/branches/:branch_id", handler.Rename)
	router.DELETE("/branches/:branch_id", handler.Delete)
}
