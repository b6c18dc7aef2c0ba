package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jagmitg/botservice/runtime/events"
)

// turnSpan tracks the root span of an in-flight turn.
type turnSpan struct {
	span trace.Span
	ctx  context.Context //nolint:containedctx // needed to parent child spans
}

// OTelEventListener converts dialog runtime events into OTel spans.
// StartTurn opens the root span and the turn.completed or turn.failed event
// closes it. The owner of the turn must call EndTurn when the turn returns so
// a span whose closing event never arrived does not stay open.
type OTelEventListener struct {
	tracer trace.Tracer

	mu    sync.Mutex
	turns map[string]*turnSpan // turnID -> root span + ctx
}

// NewOTelEventListener creates a listener that creates OTel spans from runtime events.
func NewOTelEventListener(tracer trace.Tracer) *OTelEventListener {
	return &OTelEventListener{
		tracer: tracer,
		turns:  make(map[string]*turnSpan),
	}
}

// StartTurn creates the root span for a turn, parented under any span in
// parentCtx, and returns a context carrying it.
func (l *OTelEventListener) StartTurn(parentCtx context.Context, conversationID, turnID string) context.Context {
	ctx, span := l.tracer.Start(parentCtx, "botservice.turn",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("turn.id", turnID),
		),
	)
	l.mu.Lock()
	l.turns[turnID] = &turnSpan{span: span, ctx: ctx}
	l.mu.Unlock()
	return ctx
}

// EndTurn ends the root span of turnID if no closing event has ended it yet.
func (l *OTelEventListener) EndTurn(turnID string) {
	ts, ok := l.takeTurn(turnID)
	if !ok {
		return
	}
	ts.span.SetStatus(codes.Error, "turn not completed")
	ts.span.End()
}

// InFlight returns the number of turns whose root span is still open.
func (l *OTelEventListener) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// Close ends every open turn span. Used at shutdown after the bus has drained.
func (l *OTelEventListener) Close() {
	l.mu.Lock()
	open := l.turns
	l.turns = make(map[string]*turnSpan)
	l.mu.Unlock()

	for _, ts := range open {
		ts.span.SetStatus(codes.Error, "turn not completed")
		ts.span.End()
	}
}

// OnEvent handles a single runtime event. It can be passed to
// EventBus.SubscribeAll.
func (l *OTelEventListener) OnEvent(evt *events.Event) {
	//nolint:exhaustive // Only handling span-producing events
	switch evt.Type {
	case events.EventTurnCompleted:
		l.completeTurn(evt)
	case events.EventTurnFailed:
		l.failTurn(evt)
	case events.EventIntentRecognized:
		l.recognizeSpan(evt)
	case events.EventDialogStarted, events.EventDialogEnded:
		if data, ok := asPtr[events.DialogEventData](evt.Data); ok {
			l.addEvent(evt.TurnID, string(evt.Type),
				attribute.String("dialog.id", data.DialogID),
				attribute.Int("dialog.depth", data.Depth),
			)
		}
	case events.EventPromptRetried:
		if data, ok := asPtr[events.PromptRetriedData](evt.Data); ok {
			l.addEvent(evt.TurnID, string(evt.Type),
				attribute.String("prompt.id", data.PromptID),
				attribute.Int("prompt.attempt", data.Attempt),
			)
		}
	case events.EventStateLoaded, events.EventStateSaved:
		if data, ok := asPtr[events.StateEventData](evt.Data); ok {
			l.addEvent(evt.TurnID, string(evt.Type),
				attribute.Bool("state.found", data.Found),
				attribute.Bool("state.deleted", data.Deleted),
				attribute.Int("dialog.stack_depth", data.StackDepth),
			)
		}
	case events.EventProfileSaved:
		if data, ok := asPtr[events.ProfileSavedData](evt.Data); ok {
			l.addEvent(evt.TurnID, string(evt.Type),
				attribute.Bool("profile.has_age", data.HasAge),
				attribute.Bool("profile.created", data.Created),
			)
		}
	}
}

// asPtr extracts event data as a pointer, handling both value and pointer types.
func asPtr[T any](data any) (*T, bool) {
	if p, ok := data.(*T); ok {
		return p, true
	}
	if v, ok := data.(T); ok {
		return &v, true
	}
	return nil, false
}

func (l *OTelEventListener) turnCtx(turnID string) context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ts, ok := l.turns[turnID]; ok {
		return ts.ctx
	}
	return context.Background()
}

func (l *OTelEventListener) takeTurn(turnID string) (*turnSpan, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts, ok := l.turns[turnID]
	if ok {
		delete(l.turns, turnID)
	}
	return ts, ok
}

func (l *OTelEventListener) addEvent(turnID, name string, attrs ...attribute.KeyValue) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ts, ok := l.turns[turnID]; ok {
		ts.span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

func (l *OTelEventListener) completeTurn(evt *events.Event) {
	data, ok := asPtr[events.TurnCompletedData](evt.Data)
	if !ok {
		return
	}
	ts, ok := l.takeTurn(evt.TurnID)
	if !ok {
		return
	}
	ts.span.SetAttributes(
		attribute.String("turn.status", data.Status),
		attribute.Int("turn.activities", data.Activities),
		attribute.Int("turn.transitions", data.Transitions),
		attribute.Int("dialog.stack_depth", data.StackDepth),
		attribute.StringSlice("dialog.active", data.ActiveDialogs),
		attribute.Int64("turn.duration_ms", data.Duration.Milliseconds()),
	)
	ts.span.SetStatus(codes.Ok, "")
	ts.span.End()
}

func (l *OTelEventListener) failTurn(evt *events.Event) {
	data, ok := asPtr[events.TurnFailedData](evt.Data)
	if !ok {
		return
	}
	ts, ok := l.takeTurn(evt.TurnID)
	if !ok {
		return
	}
	msg := "turn failed"
	if data.Error != nil {
		msg = data.Error.Error()
		ts.span.RecordError(data.Error)
	}
	ts.span.SetAttributes(attribute.Int64("turn.duration_ms", data.Duration.Milliseconds()))
	ts.span.SetStatus(codes.Error, msg)
	ts.span.End()
}

// recognizeSpan records a routing decision as a short child span of the turn.
func (l *OTelEventListener) recognizeSpan(evt *events.Event) {
	data, ok := asPtr[events.IntentRecognizedData](evt.Data)
	if !ok {
		return
	}
	_, span := l.tracer.Start(l.turnCtx(evt.TurnID), "botservice.nlu.route",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(evt.Timestamp),
		trace.WithAttributes(
			attribute.String("routing.table", data.Table),
			attribute.String("routing.branch", data.Branch),
			attribute.String("nlu.intent", data.Intent),
			attribute.Float64("nlu.score", data.Score),
			attribute.Bool("nlu.configured", data.Configured),
		),
	)
	if data.Error != nil {
		span.RecordError(data.Error)
		span.SetStatus(codes.Error, data.Error.Error())
	}
	span.End(trace.WithTimestamp(evt.Timestamp))
}
