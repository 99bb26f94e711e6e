package webhook

import (
	"context"
	"time"
)

// Service handles webhook notifications for tree maintenance events.
type Service interface {
	// NotifyViolations sends a notification when a consistency sweep finds
	// violations in a conversation tree.
	NotifyViolations(ctx context.Context, conversationID string, violationCount int, truncated bool) error

	// NotifyRepaired sends a notification after a tree repair re-attaches
	// orphaned messages.
	NotifyRepaired(ctx context.Context, conversationID string, messagesAttached int, repairedAt time.Time) error
}

// Payload is the structure sent to the configured webhook URL.
type Payload struct {
	ConversationID   string  `json:"conversation_id"`
	Event            string  `json:"event"` // "tree.violations" or "tree.repaired"
	ViolationCount   int     `json:"violation_count,omitempty"`
	Truncated        bool    `json:"truncated,omitempty"`
	MessagesAttached int     `json:"messages_attached,omitempty"`
	RepairedAt       *string `json:"repaired_at,omitempty"`
}
