package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "jan-server/conversation-api"
)

// GetTracer returns the tracer for the conversation-api service.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// TurnAttributes returns common attributes for turn spans.
func TurnAttributes(conversationID, branchID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("conversation.id", conversationID),
		attribute.String("branch.id", branchID),
	}
}

// BranchAttributes returns common attributes for branch spans.
func BranchAttributes(conversationID, branchID, forkPoint string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("conversation.id", conversationID),
		attribute.String("branch.id", branchID),
		attribute.String("branch.fork_point", forkPoint),
	}
}

// StartTurnSpan starts a new span for appending a turn.
func StartTurnSpan(ctx context.Context, conversationID, branchID string) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "turn.append",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(TurnAttributes(conversationID, branchID)...),
	)
	return ctx, span
}

// StartBranchSpan starts a new span for branch operations.
func StartBranchSpan(ctx context.Context, operation, conversationID, branchID string) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "branch."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("branch.id", branchID),
		),
	)
	return ctx, span
}

// StartPathSpan starts a new span for a branch path reconstruction.
func StartPathSpan(ctx context.Context, branchID, targetMessageID string) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "tree.path",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("branch.id", branchID),
			attribute.String("tree.target_message_id", targetMessageID),
		),
	)
	return ctx, span
}

// StartMaintenanceSpan starts a new span for a consistency check, repair, or
// sweep. conversationID may be empty for sweeps that cover many conversations.
func StartMaintenanceSpan(ctx context.Context, operation string, conversationID ...string) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}
	if len(conversationID) > 0 && conversationID[0] != "" {
		opts = append(opts, trace.WithAttributes(attribute.String("conversation.id", conversationID[0])))
	}
	return GetTracer().Start(ctx, "maintenance."+operation, opts...)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddViolationsEvent adds a consistency-check outcome event to a span.
func AddViolationsEvent(span trace.Span, violations int, truncated bool) {
	span.AddEvent("consistency.checked",
		trace.WithAttributes(
			attribute.Int("consistency.violations", violations),
			attribute.Bool("consistency.truncated", truncated),
		),
	)
}
