package conversation

import (
	"context"
)

// Repository handles conversation row persistence.
type Repository interface {
	Create(ctx context.Context, conv *Conversation) error
	GetByPublicID(ctx context.Context, publicID string) (*Conversation, error)
	Update(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, publicID string) error
	List(ctx context.Context, limit, offset int) ([]Conversation, error)
}

// MessageRepository handles message rows and their tree edges. Messages and
// edges are stored separately; a message row never encodes tree position.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, messageID string) (*Message, error)
	// GetMessages returns all messages for a conversation ordered by
	// creation time then row id.
	GetMessages(ctx context.Context, conversationID string) ([]Message, error)
	GetMessagesByIDs(ctx context.Context, messageIDs []string) ([]Message, error)
	DeleteMessages(ctx context.Context, messageIDs []string) error

	AddTreeEdge(ctx context.Context, edge *TreeEdge) error
	GetTreeEdge(ctx context.Context, messageID string) (*TreeEdge, error)
	// GetTreeEdges returns every edge whose branch belongs to the
	// conversation, ordered by insertion (Ord ascending).
	GetTreeEdges(ctx context.Context, conversationID string) ([]TreeEdge, error)
	GetBranchEdges(ctx context.Context, branchID string) ([]TreeEdge, error)
	MarkBranchPoint(ctx context.Context, messageID string) error
	// ReparentEdge moves a message under a new parent and branch. Used only
	// by tree repair.
	ReparentEdge(ctx context.Context, messageID string, newParentID *string, branchID string) error
	DeleteTreeEdges(ctx context.Context, messageIDs []string) error
}

// BranchRepository handles branch rows.
type BranchRepository interface {
	Create(ctx context.Context, branch *Branch) error
	GetByPublicID(ctx context.Context, branchID string) (*Branch, error)
	// GetMain returns the conversation's main branch, or a NotFound error
	// when none exists yet.
	GetMain(ctx context.Context, conversationID string) (*Branch, error)
	ListByConversation(ctx context.Context, conversationID string) ([]Branch, error)
	Update(ctx context.Context, branch *Branch) error
	Delete(ctx context.Context, branchID string) error
	DeleteByConversation(ctx context.Context, conversationID string) error
}

// Repos bundles the repositories participating in a transaction.
type Repos struct {
	Conversations Repository
	Messages      MessageRepository
	Branches      BranchRepository
}

// TxManager runs a function inside a single database transaction with
// transaction-bound repositories. The callback's error aborts the whole
// transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}

// AttachmentStore persists attachment bytes outside the database. Only the
// returned opaque ref is written inside DB transactions.
type AttachmentStore interface {
	Save(ctx context.Context, conversationID string, data []byte, mimeType string) (ref string, err error)
	Load(ctx context.Context, ref string) ([]byte, error)
	Remove(ctx context.Context, ref string) error
}
