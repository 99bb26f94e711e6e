package responses

import (
	"jan-server/services/conversation-api/internal/domain/conversation"
	"jan-server/services/conversation-api/internal/domain/tree"
)

// ConversationResponse is the conversation payload returned to clients.
type ConversationResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt int64             `json:"created_at"`
	UpdatedAt int64             `json:"updated_at"`
}

// MapConversation maps the domain conversation to its payload.
func MapConversation(c *conversation.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        c.PublicID,
		Name:      c.Name,
		Metadata:  c.Metadata,
		CreatedAt: c.CreatedAt.Unix(),
		UpdatedAt: c.UpdatedAt.Unix(),
	}
}

// ConversationListResponse wraps a page of conversations.
type ConversationListResponse struct {
	Data []ConversationResponse `json:"data"`
}

// MessageResponse is the message payload returned to clients.
type MessageResponse struct {
	ID          string                    `json:"id"`
	Role        string                    `json:"role"`
	Content     string                    `json:"content"`
	Attachments []conversation.Attachment `json:"attachments,omitempty"`
	CreatedAt   int64                     `json:"created_at"`
}

// MapMessage maps a domain message to its payload.
func MapMessage(m conversation.Message) MessageResponse {
	return MessageResponse{
		ID:          m.PublicID,
		Role:        string(m.Role),
		Content:     m.Content,
		Attachments: m.Attachments,
		CreatedAt:   m.CreatedAt.Unix(),
	}
}

// MapMessages maps a message slice to payloads.
func MapMessages(msgs []conversation.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MapMessage(m))
	}
	return out
}

// BranchResponse is the branch payload returned to clients.
type BranchResponse struct {
	ID                  string  `json:"id"`
	ConversationID      string  `json:"conversation_id"`
	Name                string  `json:"name"`
	IsMain              bool    `json:"is_main"`
	ForkedFromMessageID *string `json:"forked_from_message_id,omitempty"`
	CreatedAt           int64   `json:"created_at"`
}

// MapBranch maps a domain branch to its payload.
func MapBranch(b *conversation.Branch) BranchResponse {
	return BranchResponse{
		ID:                  b.PublicID,
		ConversationID:      b.ConversationID,
		Name:                b.Name,
		IsMain:              b.IsMain,
		ForkedFromMessageID: b.ForkedFromMessageID,
		CreatedAt:           b.CreatedAt.Unix(),
	}
}

// BranchListResponse pairs branches with their computed stats.
type BranchListResponse struct {
	Data  []BranchResponse           `json:"data"`
	Stats []conversation.BranchStats `json:"stats"`
}

// TurnResponse is the appended turn payload.
type TurnResponse struct {
	UserMessage      MessageResponse `json:"user_message"`
	AssistantMessage MessageResponse `json:"assistant_message"`
}

// MapTurn maps a domain turn to its payload.
func MapTurn(t *conversation.Turn) TurnResponse {
	return TurnResponse{
		UserMessage:      MapMessage(t.UserMessage),
		AssistantMessage: MapMessage(t.AssistantMessage),
	}
}

// BranchPathResponse is the linear transcript of one branch.
type BranchPathResponse struct {
	BranchID     string            `json:"branch_id"`
	Messages     []MessageResponse `json:"messages"`
	BranchPoints []string          `json:"branch_points,omitempty"`
}

// MapBranchPath maps a domain branch path to its payload.
func MapBranchPath(p *conversation.BranchPath) BranchPathResponse {
	return BranchPathResponse{
		BranchID:     p.BranchID,
		Messages:     MapMessages(p.Messages),
		BranchPoints: p.BranchPoints,
	}
}

// TreeEdgeResponse is one edge of the conversation forest.
type TreeEdgeResponse struct {
	MessageID       string  `json:"message_id"`
	ParentMessageID *string `json:"parent_message_id,omitempty"`
	BranchID        string  `json:"branch_id"`
	IsBranchPoint   bool    `json:"is_branch_point"`
}

// ConversationTreeResponse is the full forest payload.
type ConversationTreeResponse struct {
	ConversationID string             `json:"conversation_id"`
	Branches       []BranchResponse   `json:"branches"`
	Edges          []TreeEdgeResponse `json:"edges"`
	Messages       []MessageResponse  `json:"messages"`
}

// MapConversationTree maps the domain forest to its payload.
func MapConversationTree(t *conversation.ConversationTree) ConversationTreeResponse {
	branches := make([]BranchResponse, 0, len(t.Branches))
	for i := range t.Branches {
		branches = append(branches, MapBranch(&t.Branches[i]))
	}
	edges := make([]TreeEdgeResponse, 0, len(t.Edges))
	for _, e := range t.Edges {
		edges = append(edges, TreeEdgeResponse{
			MessageID:       e.MessageID,
			ParentMessageID: e.ParentMessageID,
			BranchID:        e.BranchID,
			IsBranchPoint:   e.IsBranchPoint,
		})
	}
	return ConversationTreeResponse{
		ConversationID: t.ConversationID,
		Branches:       branches,
		Edges:          edges,
		Messages:       MapMessages(t.Messages),
	}
}

// ConsistencyResponse is the outcome of a consistency check.
type ConsistencyResponse struct {
	Healthy    bool             `json:"healthy"`
	Violations []tree.Violation `json:"violations"`
	Truncated  bool             `json:"truncated"`
}

// MapReport maps a consistency report to its payload.
func MapReport(r tree.Report) ConsistencyResponse {
	violations := r.Violations
	if violations == nil {
		violations = []tree.Violation{}
	}
	return ConsistencyResponse{
		Healthy:    r.Healthy(),
		Violations: violations,
		Truncated:  r.Truncated,
	}
}

// RepairResponse is the outcome of a repair run. Truncated signals the step
// budget was hit and another run is needed.
type RepairResponse struct {
	MessagesAttached int  `json:"messages_attached"`
	EdgesReparented  int  `json:"edges_reparented"`
	Truncated        bool `json:"truncated"`
}

// DivergenceResponse is the last common ancestor of two branches.
type DivergenceResponse struct {
	MessageID string `json:"message_id,omitempty"`
	Found     bool   `json:"found"`
}

// AttachmentResponse is the stored attachment ref payload.
type AttachmentResponse struct {
	Ref      string `json:"ref"`
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
}
