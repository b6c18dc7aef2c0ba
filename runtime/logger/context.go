package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields.
// Values stored under these keys are added to every log record by ContextHandler.
const (
	// ContextKeyConversationID identifies the conversation.
	ContextKeyConversationID contextKey = "conversation_id"

	// ContextKeyTurnID identifies the current inbound turn.
	ContextKeyTurnID contextKey = "turn_id"

	// ContextKeyDialogID identifies the dialog on top of the stack.
	ContextKeyDialogID contextKey = "dialog_id"

	// ContextKeyStep identifies the waterfall step being executed.
	ContextKeyStep contextKey = "step"

	// ContextKeyRequestID identifies the inbound HTTP request.
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyEnvironment identifies the deployment environment.
	ContextKeyEnvironment contextKey = "environment"
)

// allContextKeys lists all context keys that should be extracted for logging.
var allContextKeys = []contextKey{
	ContextKeyConversationID,
	ContextKeyTurnID,
	ContextKeyDialogID,
	ContextKeyStep,
	ContextKeyRequestID,
	ContextKeyEnvironment,
}

// WithConversationID returns a new context with the conversation ID set.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyConversationID, id)
}

// WithTurnID returns a new context with the turn ID set.
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, ContextKeyTurnID, turnID)
}

// WithDialogID returns a new context with the active dialog ID set.
func WithDialogID(ctx context.Context, dialogID string) context.Context {
	return context.WithValue(ctx, ContextKeyDialogID, dialogID)
}

// WithStep returns a new context with the waterfall step name set.
func WithStep(ctx context.Context, step string) context.Context {
	return context.WithValue(ctx, ContextKeyStep, step)
}

// WithRequestID returns a new context with the request ID set.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithEnvironment returns a new context with the environment set.
func WithEnvironment(ctx context.Context, environment string) context.Context {
	return context.WithValue(ctx, ContextKeyEnvironment, environment)
}

// LoggingFields holds all standard logging context fields.
type LoggingFields struct {
	ConversationID string
	TurnID         string
	DialogID       string
	Step           string
	RequestID      string
	Environment    string
}

// WithLoggingContext returns a new context with every non-empty field set.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	if fields.ConversationID != "" {
		ctx = WithConversationID(ctx, fields.ConversationID)
	}
	if fields.TurnID != "" {
		ctx = WithTurnID(ctx, fields.TurnID)
	}
	if fields.DialogID != "" {
		ctx = WithDialogID(ctx, fields.DialogID)
	}
	if fields.Step != "" {
		ctx = WithStep(ctx, fields.Step)
	}
	if fields.RequestID != "" {
		ctx = WithRequestID(ctx, fields.RequestID)
	}
	if fields.Environment != "" {
		ctx = WithEnvironment(ctx, fields.Environment)
	}
	return ctx
}

// ExtractLoggingFields extracts all logging fields from a context.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	str := func(k contextKey) string {
		s, _ := ctx.Value(k).(string)
		return s
	}
	return LoggingFields{
		ConversationID: str(ContextKeyConversationID),
		TurnID:         str(ContextKeyTurnID),
		DialogID:       str(ContextKeyDialogID),
		Step:           str(ContextKeyStep),
		RequestID:      str(ContextKeyRequestID),
		Environment:    str(ContextKeyEnvironment),
	}
}
