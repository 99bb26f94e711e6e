package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ===============================================
// Conversation
// ===============================================

// Conversation is a top-level chat session containing one or more branches.
type Conversation struct {
	ID       uint              `json:"-"`
	PublicID string            `json:"id"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates a conversation with a fresh public ID.
func NewConversation(name string, metadata map[string]string) *Conversation {
	now := time.Now().UTC()
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &Conversation{
		PublicID:  NewConversationID(),
		Name:      name,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ===============================================
// Message
// ===============================================

// Role indicates who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one the tree accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single utterance. A message does not know its tree position;
// that relationship lives in TreeEdge, so "what was said" stays decoupled
// from "where it sits in the branch graph".
type Message struct {
	ID             uint         `json:"-"`
	PublicID       string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	Role           Role         `json:"role"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Attachment references stored attachment bytes by opaque storage ref.
type Attachment struct {
	StorageRef string `json:"storage_ref"`
	MimeType   string `json:"mime_type,omitempty"`
	Position   int    `json:"position"`
}

// ===============================================
// Branch
// ===============================================

// Branch is a named lineage of messages within a conversation. Exactly one
// branch per conversation has IsMain set.
type Branch struct {
	ID             uint   `json:"-"`
	PublicID       string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Name           string `json:"name"`
	IsMain         bool   `json:"is_main"`

	// ForkedFromMessageID records the fork point for branches created via
	// CreateBranchFromMessage. Nil for the main branch. It lets a branch
	// with no edges of its own resolve its head to the fork point.
	ForkedFromMessageID *string `json:"forked_from_message_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MainBranchName is the auto-generated name of the lazily created main branch.
const MainBranchName = "Main"

// ===============================================
// Tree edges
// ===============================================

// TreeEdge records where a single message sits in the branch forest: its
// parent (nil for a root) and the branch it was recorded under. One edge row
// exists per message.
type TreeEdge struct {
	MessageID       string  `json:"message_id"`
	ParentMessageID *string `json:"parent_message_id,omitempty"`
	BranchID        string  `json:"branch_id"`
	IsBranchPoint   bool    `json:"is_branch_point"`

	// Ord is the edge's insertion order within the store (monotonic). It is
	// the tie-breaker for sibling ordering and head selection.
	Ord int64 `json:"-"`
}

// ===============================================
// Derived views (computed, never stored)
// ===============================================

// BranchPath is the ordered root-to-head message sequence for one branch,
// used to reconstruct the linear transcript shown to the UI or an LLM.
type BranchPath struct {
	BranchID     string    `json:"branch_id"`
	Messages     []Message `json:"messages"`
	BranchPoints []string  `json:"branch_points,omitempty"`
}

// ConversationTree is the full forest for a conversation, enough to render a
// branch visualization.
type ConversationTree struct {
	ConversationID string     `json:"conversation_id"`
	Branches       []Branch   `json:"branches"`
	Edges          []TreeEdge `json:"edges"`
	Messages       []Message  `json:"messages"`
}

// BranchStats holds per-branch aggregate counts, recomputed on demand.
type BranchStats struct {
	BranchID     string `json:"branch_id"`
	Name         string `json:"name"`
	IsMain       bool   `json:"is_main"`
	MessageCount int    `json:"message_count"`
	Depth        int    `json:"depth"`
}

// Turn is the pair of messages produced by one chat exchange.
type Turn struct {
	UserMessage      Message `json:"user_message"`
	AssistantMessage Message `json:"assistant_message"`
}

// ===============================================
// Public ID factories
// ===============================================

// NewConversationID returns a fresh conversation public ID.
func NewConversationID() string {
	return fmt.Sprintf("conv_%s", uuid.NewString())
}

// NewMessageID returns a fresh message public ID.
func NewMessageID() string {
	return fmt.Sprintf("msg_%s", uuid.NewString())
}

// NewBranchID returns a fresh branch public ID.
func NewBranchID() string {
	return fmt.Sprintf("branch_%s", uuid.NewString())
}
