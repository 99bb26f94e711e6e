package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/conversation-api/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

// NewRoutes builds the v1 route registrar.
func NewRoutes(handlerProvider *handlers.Provider) *Routes {
	return &Routes{
		handlers: handlerProvider,
	}
}

// Register attaches all v1 routes under /v1 prefix.
func (r *Routes) Register(engine *gin.Engine) {
	group := engine.Group("/v1")
	registerConversationRoutes(group, r.handlers.Conversation)
	registerBranchRoutes(group, r.handlers.Branch)
	registerMaintenanceRoutes(group, r.handlers.Maintenance)

	// Chat routes (optional - only if an LLM provider is configured)
	if r.handlers.Chat != nil {
		registerChatRoutes(group, r.handlers.Chat)
	}

	// Attachment routes (optional - only if an attachment store is configured)
	if r.handlers.Attachment != nil {
		registerAttachmentRoutes(group, r.handlers.Attachment)
	}
}
