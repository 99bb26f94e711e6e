package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/domain/retry"
)

// HTTPService implements webhook notifications via HTTP POST. An empty URL
// disables delivery; notifications then succeed without sending anything.
type HTTPService struct {
	httpClient *http.Client
	url        string
	log        zerolog.Logger
	policy     retry.Policy
}

// NewHTTPService creates a new HTTP-based webhook service.
func NewHTTPService(url string, log zerolog.Logger) *HTTPService {
	return &HTTPService{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		url:    url,
		log:    log.With().Str("component", "webhook").Logger(),
		policy: retry.ConservativePolicy(),
	}
}

// NotifyViolations sends a notification when a sweep finds violations.
func (s *HTTPService) NotifyViolations(ctx context.Context, conversationID string, violationCount int, truncated bool) error {
	if s.url == "" {
		s.log.Debug().Str("conversation_id", conversationID).Msg("no webhook URL configured, skipping notification")
		return nil
	}

	payload := Payload{
		ConversationID: conversationID,
		Event:          "tree.violations",
		ViolationCount: violationCount,
		Truncated:      truncated,
	}
	return s.send(ctx, payload)
}

// NotifyRepaired sends a notification after a repair run.
func (s *HTTPService) NotifyRepaired(ctx context.Context, conversationID string, messagesAttached int, repairedAt time.Time) error {
	if s.url == "" {
		s.log.Debug().Str("conversation_id", conversationID).Msg("no webhook URL configured, skipping notification")
		return nil
	}

	formatted := repairedAt.Format(time.RFC3339)
	payload := Payload{
		ConversationID:   conversationID,
		Event:            "tree.repaired",
		MessagesAttached: messagesAttached,
		RepairedAt:       &formatted,
	}
	return s.send(ctx, payload)
}

func (s *HTTPService) send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	executor := retry.NewExecutor(s.policy)
	err = executor.Execute(ctx, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create webhook request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "jan-conversation-api/1.0")
		req.Header.Set("X-Jan-Event", payload.Event)
		req.Header.Set("X-Jan-Conversation-ID", payload.ConversationID)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Str("url", s.url).Int("attempt", attempt).Msg("webhook delivery failed")
			return fmt.Errorf("send webhook: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Info().
				Str("url", s.url).
				Int("status", resp.StatusCode).
				Str("conversation_id", payload.ConversationID).
				Msg("webhook delivered successfully")
			return nil
		}

		s.log.Warn().Int("status", resp.StatusCode).Str("url", s.url).Int("attempt", attempt).Msg("webhook delivery failed")
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	})
	return err
}
