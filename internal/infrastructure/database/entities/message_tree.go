package entities

import (
	"time"

	"jan-server/services/conversation-api/internal/domain/conversation"
)

// MessageTree records the tree position of exactly one message: its parent
// and the branch the edge belongs to. The autoincrement row id doubles as
// the edge insertion order used for sibling and head tie-breaks.
type MessageTree struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	MessageID       string  `gorm:"type:varchar(50);uniqueIndex;not null"`
	ParentMessageID *string `gorm:"type:varchar(50);index"`
	BranchID        string  `gorm:"type:varchar(50);index;not null"`
	IsBranchPoint   bool    `gorm:"not null;default:false"`
}

// TableName specifies the table name for MessageTree.
func (MessageTree) TableName() string {
	return "message_tree"
}

// EtoD converts database entity to domain model
func (t *MessageTree) EtoD() *conversation.TreeEdge {
	return &conversation.TreeEdge{
		MessageID:       t.MessageID,
		ParentMessageID: t.ParentMessageID,
		BranchID:        t.BranchID,
		IsBranchPoint:   t.IsBranchPoint,
		Ord:             int64(t.ID),
	}
}

// NewSchemaMessageTree creates a database entity from domain model
func NewSchemaMessageTree(e *conversation.TreeEdge) *MessageTree {
	return &MessageTree{
		MessageID:       e.MessageID,
		ParentMessageID: e.ParentMessageID,
		BranchID:        e.BranchID,
		IsBranchPoint:   e.IsBranchPoint,
	}
}
