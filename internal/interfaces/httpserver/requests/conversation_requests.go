package requests

// CreateConversationRequest creates a new conversation.
type CreateConversationRequest struct {
	Name     string            `json:"name,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// AppendTurnRequest appends a user/assistant pair to a branch. BranchID
// empty targets the main branch; ParentMessageID empty chains at the branch
// head, otherwise the turn is pinned under that ancestor. Message IDs are
// optional client-supplied IDs for idempotent retries.
type AppendTurnRequest struct {
	BranchID           string `json:"branch_id,omitempty"`
	ParentMessageID    string `json:"parent_message_id,omitempty"`
	UserContent        string `json:"user_content" binding:"required"`
	AssistantContent   string `json:"assistant_content" binding:"required"`
	UserMessageID      string `json:"user_message_id,omitempty"`
	AssistantMessageID string `json:"assistant_message_id,omitempty"`
}

// CreateBranchRequest forks a branch at an existing message.
type CreateBranchRequest struct {
	MessageID string `json:"message_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
}

// RenameBranchRequest changes a branch display name.
type RenameBranchRequest struct {
	Name string `json:"name" binding:"required"`
}

// ChatRequest sends one user message through the model on a branch.
type ChatRequest struct {
	BranchID string `json:"branch_id,omitempty"`
	Content  string `json:"content" binding:"required"`
}

// UploadAttachmentRequest carries base64 encoded attachment bytes.
type UploadAttachmentRequest struct {
	Data     string `json:"data" binding:"required"`
	MimeType string `json:"mime_type" binding:"required"`
}
