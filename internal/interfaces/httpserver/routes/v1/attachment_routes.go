package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/conversation-api/internal/interfaces/httpserver/handlers"
)

func registerAttachmentRoutes(router gin.IRoutes, handler *handlers.AttachmentHandler) {
	router.POST("/conversations/:conversation_id/attachments", handler.Upload)

	// Refs contain a slash, so a wildcard segment carries the full ref
	router.GET("/attachments/*ref", handler.Download)
	router.DELETE("/attachments/*ref", handler.Delete)
}
