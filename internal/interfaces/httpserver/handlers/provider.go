package handlers

import (
	"context"

	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/domain/chat"
	"jan-server/services/conversation-api/internal/domain/conversation"
	"jan-server/services/conversation-api/internal/domain/tree"
)

// ConversationService captures the domain operations the handlers call.
type ConversationService interface {
	CreateConversation(ctx context.Context, name string, metadata map[string]string) (*conversation.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*conversation.Conversation, error)
	ListConversations(ctx context.Context, limit, offset int) ([]conversation.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	GetHistory(ctx context.Context, conversationID string) ([]conversation.Message, error)
	AppendTurn(ctx context.Context, params conversation.AppendTurnParams) (*conversation.Turn, error)
	CreateBranchFromMessage(ctx context.Context, conversationID, messageID, name string) (*conversation.Branch, error)
	ListBranches(ctx context.Context, conversationID string) ([]conversation.Branch, []conversation.BranchStats, error)
	GetBranchPath(ctx context.Context, branchID, messageID string) (*conversation.BranchPath, error)
	GetConversationTree(ctx context.Context, conversationID string) (*conversation.ConversationTree, error)
	RenameBranch(ctx context.Context, branchID, name string) (*conversation.Branch, error)
	DeleteBranch(ctx context.Context, branchID string) error
	FindDivergencePoint(ctx context.Context, branchA, branchB string) (string, bool, error)
	CheckConsistency(ctx context.Context, conversationID string) (tree.Report, error)
	RepairTree(ctx context.Context, conversationID string) (*conversation.RepairResult, error)
}

// ChatService captures the orchestrator operation the chat handler calls.
type ChatService interface {
	Send(ctx context.Context, params chat.SendParams) (*conversation.Turn, error)
}

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Conversation *ConversationHandler
	Branch       *BranchHandler
	Maintenance  *MaintenanceHandler
	Chat         *ChatHandler
	Attachment   *AttachmentHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(conversations ConversationService, chatService ChatService, store conversation.AttachmentStore, log zerolog.Logger) *Provider {
	p := &Provider{
		Conversation: NewConversationHandler(conversations, log),
		Branch:       NewBranchHandler(conversations, log),
		Maintenance:  NewMaintenanceHandler(conversations, log),
	}
	if chatService != nil {
		p.Chat = NewChatHandler(chatService, log)
	}
	if store != nil {
		p.Attachment = NewAttachmentHandler(store, conversations, log)
	}
	return p
}
