// Package chat orchestrates one conversational exchange: reconstruct the
// active branch path, send it to the model, and append the resulting turn to
// the tree.
package chat

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/domain/conversation"
	"jan-server/services/conversation-api/internal/domain/llm"
	"jan-server/services/conversation-api/internal/utils/platformerrors"
)

// Options configures prompt construction.
type Options struct {
	Model         string
	SystemPrompt  string
	ContextLength int
}

// Orchestrator drives the path-to-prompt-to-turn cycle.
type Orchestrator struct {
	conversations *conversation.Service
	provider      llm.Provider
	opts          Options
	logger        zerolog.Logger
}

// NewOrchestrator builds a chat orchestrator.
func NewOrchestrator(conversations *conversation.Service, provider llm.Provider, opts Options, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		conversations: conversations,
		provider:      provider,
		opts:          opts,
		logger:        logger.With().Str("component", "chat-orchestrator").Logger(),
	}
}

// SendParams describes one user message to send. BranchID empty targets the
// main branch.
type SendParams struct {
	ConversationID string
	BranchID       string
	Content        string
	Attachments    []conversation.Attachment
}

// Send reconstructs the branch transcript, requests a completion, and
// appends the user/assistant pair atomically. The tree is only written after
// the model replies, so a provider failure leaves no half-turn behind.
func (o *Orchestrator) Send(ctx context.Context, params SendParams) (*conversation.Turn, error) {
	if strings.TrimSpace(params.Content) == "" {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation,
			"message content must not be empty",
			nil,
			"5e6f7a8b-9c0d-41e2-f3a4-b5c6d7e8f9a0",
		)
	}

	branchID := params.BranchID
	if branchID == "" {
		main, err := o.conversations.GetOrCreateMainBranch(ctx, params.ConversationID)
		if err != nil {
			return nil, err
		}
		branchID = main.PublicID
	}

	path, err := o.conversations.GetBranchPath(ctx, branchID, "")
	if err != nil {
		return nil, err
	}

	prompt := o.buildPrompt(path.Messages, params.Content)
	trimmed := llm.TrimMessagesToFitContext(prompt, o.opts.ContextLength)
	if trimmed.TrimmedCount > 0 {
		o.logger.Debug().
			Str("conversation_id", params.ConversationID).
			Int("trimmed", trimmed.TrimmedCount).
			Msg("prompt trimmed to fit context")
	}

	completion, err := o.provider.CreateChatCompletion(ctx, llm.ChatCompletionRequest{
		Model:    o.opts.Model,
		Messages: trimmed.Messages,
	})
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeExternal,
			"llm completion failed",
			err,
			"6f7a8b9c-0d1e-42f3-a4b5-c6d7e8f9a0b1",
		)
	}
	if len(completion.Choices) == 0 {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeExternal,
			"llm returned no choices",
			nil,
			"7a8b9c0d-1e2f-43a4-b5c6-d7e8f9a0b1c2",
		)
	}

	return o.conversations.AppendTurn(ctx, conversation.AppendTurnParams{
		ConversationID:   params.ConversationID,
		BranchID:         params.BranchID,
		UserContent:      params.Content,
		AssistantContent: completion.Choices[0].Message.Content,
		UserAttachments:  params.Attachments,
	})
}

func (o *Orchestrator) buildPrompt(history []conversation.Message, userContent string) []llm.ChatMessage {
	prompt := make([]llm.ChatMessage, 0, len(history)+2)
	if o.opts.SystemPrompt != "" {
		prompt = append(prompt, llm.ChatMessage{Role: "system", Content: o.opts.SystemPrompt})
	}
	for _, m := range history {
		prompt = append(prompt, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	prompt = append(prompt, llm.ChatMessage{Role: "user", Content: userContent})
	return prompt
}
