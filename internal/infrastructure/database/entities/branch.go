package entities

import (
	"time"

	"jan-server/services/conversation-api/internal/domain/conversation"
)

// Branch represents the database schema for conversation branches. Branch
// names are unique per conversation.
type Branch struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PublicID            string  `gorm:"type:varchar(50);uniqueIndex;not null"`
	ConversationID      string  `gorm:"type:varchar(50);uniqueIndex:idx_branch_conversation_name;not null"`
	Name                string  `gorm:"type:varchar(120);uniqueIndex:idx_branch_conversation_name;not null"`
	IsMain              bool    `gorm:"not null;default:false"`
	ForkedFromMessageID *string `gorm:"type:varchar(50)"`
}

// TableName specifies the table name for Branch.
func (Branch) TableName() string {
	return "branches"
}

// EtoD converts database entity to domain model
func (b *Branch) EtoD() *conversation.Branch {
	return &conversation.Branch{
		ID:                  b.ID,
		PublicID:            b.PublicID,
		ConversationID:      b.ConversationID,
		Name:                b.Name,
		IsMain:              b.IsMain,
		ForkedFromMessageID: b.ForkedFromMessageID,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}

// NewSchemaBranch creates a database entity from domain model
func NewSchemaBranch(b *conversation.Branch) *Branch {
	return &Branch{
		ID:                  b.ID,
		PublicID:            b.PublicID,
		ConversationID:      b.ConversationID,
		Name:                b.Name,
		IsMain:              b.IsMain,
		ForkedFromMessageID: b.ForkedFromMessageID,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}
