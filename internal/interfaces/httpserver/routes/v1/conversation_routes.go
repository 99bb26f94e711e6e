package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/conversation-api/internal/interfaces/httpserver/handlers"
)

func registerConversationRoutes(router gin.IRoutes, handler *handlers.ConversationHandler) {
	router.POST("/conversations", handler.Create)
	router.GET("/conversations", handler.List)
	router.GET("/conversations/:conversation_id", handler.Get)
	router.DELETE("/conversations/:conversation_id", handler.Delete)
	router.GET("/conversations/:conversation_id/history", handler.History)
	router.POST("/conversations/:conversation_id/turns", handler.AppendTurn)
	router.GET("/conversations/:conversation_id/tree", handler.Tree)
}
