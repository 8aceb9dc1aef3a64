package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so a pipeline step logs the message, thread and
// author it is working on without threading them through every call.
type LogFields struct {
	MessageID       *string // Discord message ID being enriched
	ThreadID        *string // Discord thread ID, when the message is threaded
	AuthorID        *string // Discord author ID
	StreamMessageID *string // Redis stream entry ID
	RunID           *int64  // Pipeline run ID
	AnalysisID      *int64  // Stored analysis an alert task refers to
	Attempt         *int    // Delivery attempt of the enrichment task
	Component       string  // Component name (OTel semantic convention style, e.g., "relay.pipeline.analyze")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.ThreadID != nil {
		result.ThreadID = next.ThreadID
	}
	if next.AuthorID != nil {
		result.AuthorID = next.AuthorID
	}
	if next.StreamMessageID != nil {
		result.StreamMessageID = next.StreamMessageID
	}
	if next.RunID != nil {
		result.RunID = next.RunID
	}
	if next.AnalysisID != nil {
		result.AnalysisID = next.AnalysisID
	}
	if next.Attempt != nil {
		result.Attempt = next.Attempt
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
// Used for logging message content previews.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
