package llm

import "unicode/utf8"

const (
	// DefaultContextLength is used when the model context length is unknown.
	DefaultContextLength = 128000

	// TokenEstimateRatio estimates ~4 characters per token.
	TokenEstimateRatio = 4

	// MinMessagesToKeep ensures the system prompt and the latest user
	// message always survive trimming.
	MinMessagesToKeep = 2

	// SafetyMarginRatio reserves space for the response and overhead.
	SafetyMarginRatio = 0.80
)

// EstimateTokenCount provides a rough token estimate for a piece of content.
func EstimateTokenCount(content string) int {
	return utf8.RuneCountInString(content) / TokenEstimateRatio
}

// EstimateMessagesTokenCount estimates total tokens across all messages,
// with a flat overhead per message for role and structure.
func EstimateMessagesTokenCount(messages []ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += 10
		total += EstimateTokenCount(msg.Content)
	}
	return total
}

// TrimMessagesResult contains the result of trimming messages.
type TrimMessagesResult struct {
	Messages        []ChatMessage
	TrimmedCount    int
	EstimatedTokens int
}

// TrimMessagesToFitContext removes the oldest assistant messages until the
// prompt fits the context limit. System prompts and user messages are never
// removed; long shared prefixes from deep branch paths shrink from the
// assistant side first.
func TrimMessagesToFitContext(messages []ChatMessage, contextLength int) TrimMessagesResult {
	if contextLength <= 0 {
		contextLength = DefaultContextLength
	}
	maxTokens := int(float64(contextLength) * SafetyMarginRatio)

	currentTokens := EstimateMessagesTokenCount(messages)
	if currentTokens <= maxTokens {
		return TrimMessagesResult{
			Messages:        messages,
			TrimmedCount:    0,
			EstimatedTokens: currentTokens,
		}
	}

	result := make([]ChatMessage, len(messages))
	copy(result, messages)
	trimmedCount := 0

	for currentTokens > maxTokens && len(result) > MinMessagesToKeep {
		removedIdx := -1
		for i := 1; i < len(result); i++ {
			if result[i].Role == "assistant" {
				removedIdx = i
				break
			}
		}
		if removedIdx == -1 {
			break
		}

		result = append(result[:removedIdx], result[removedIdx+1:]...)
		trimmedCount++
		currentTokens = EstimateMessagesTokenCount(result)
	}

	return TrimMessagesResult{
		Messages:        result,
		TrimmedCount:    trimmedCount,
		EstimatedTokens: currentTokens,
	}
}
