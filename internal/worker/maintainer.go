package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/domain/conversation"
	"jan-server/services/conversation-api/internal/domain/tree"
	"jan-server/services/conversation-api/internal/infrastructure/observability"
	"jan-server/services/conversation-api/internal/webhook"
)

// MaintenanceService captures the domain operations the sweeper calls.
type MaintenanceService interface {
	ListConversations(ctx context.Context, limit, offset int) ([]conversation.Conversation, error)
	CheckConsistency(ctx context.Context, conversationID string) (tree.Report, error)
	RepairTree(ctx context.Context, conversationID string) (*conversation.RepairResult, error)
}

// SweepResult summarizes one full pass over the stored conversations.
type SweepResult struct {
	Checked    int
	Unhealthy  int
	Repaired   int
	Reattached int
	Errors     int
}

// Maintainer walks every conversation, checks tree consistency, and
// optionally repairs what it finds.
type Maintainer struct {
	service   MaintenanceService
	notifier  webhook.Service
	repair    bool
	batchSize int
	log       zerolog.Logger
}

// NewMaintainer creates the consistency sweeper. When repair is false the
// sweep only reports; nothing is mutated. A nil notifier disables webhook
// notifications.
func NewMaintainer(service MaintenanceService, notifier webhook.Service, repair bool, batchSize int, log zerolog.Logger) *Maintainer {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Maintainer{
		service:   service,
		notifier:  notifier,
		repair:    repair,
		batchSize: batchSize,
		log:       log.With().Str("component", "maintainer").Logger(),
	}
}

// SweepAll pages through all conversations and checks each one.
func (m *Maintainer) SweepAll(ctx context.Context) (SweepResult, error) {
	ctx, span := observability.StartMaintenanceSpan(ctx, "sweep")
	defer span.End()

	var result SweepResult
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		convs, err := m.service.ListConversations(ctx, m.batchSize, offset)
		if err != nil {
			observability.RecordError(span, err)
			return result, err
		}
		if len(convs) == 0 {
			return result, nil
		}

		for i := range convs {
			m.sweepOne(ctx, convs[i].PublicID, &result)
		}

		if len(convs) < m.batchSize {
			return result, nil
		}
		offset += m.batchSize
	}
}

func (m *Maintainer) sweepOne(ctx context.Context, conversationID string, result *SweepResult) {
	report, err := m.service.CheckConsistency(ctx, conversationID)
	if err != nil {
		result.Errors++
		m.log.Error().Err(err).Str("conversation_id", conversationID).Msg("consistency check failed")
		return
	}
	result.Checked++

	if report.Healthy() {
		return
	}
	result.Unhealthy++
	m.log.Warn().
		Str("conversation_id", conversationID).
		Int("violations", len(report.Violations)).
		Bool("truncated", report.Truncated).
		Msg("conversation tree has consistency violations")

	if m.notifier != nil {
		if err := m.notifier.NotifyViolations(ctx, conversationID, len(report.Violations), report.Truncated); err != nil {
			m.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("violation notification failed")
		}
	}

	if !m.repair {
		return
	}

	repaired, err := m.service.RepairTree(ctx, conversationID)
	if err != nil {
		result.Errors++
		m.log.Error().Err(err).Str("conversation_id", conversationID).Msg("tree repair failed")
		return
	}
	result.Repaired++
	result.Reattached += repaired.MessagesAttached + repaired.EdgesReparented
	m.log.Info().
		Str("conversation_id", conversationID).
		Int("messages_attached", repaired.MessagesAttached).
		Int("edges_reparented", repaired.EdgesReparented).
		Bool("truncated", repaired.Truncated).
		Msg("conversation tree repaired")

	if m.notifier != nil {
		if err := m.notifier.NotifyRepaired(ctx, conversationID, repaired.MessagesAttached, time.Now()); err != nil {
			m.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("repair notification failed")
		}
	}
}
