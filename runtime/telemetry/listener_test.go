package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jagmitg/botservice/runtime/events"
)

func newTestListener(t *testing.T) (*OTelEventListener, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOTelEventListener(Tracer(tp)), rec
}

func evt(typ events.EventType, turnID string, data events.EventData) *events.Event {
	return &events.Event{
		Type:           typ,
		Timestamp:      time.Now(),
		ConversationID: "conv-1",
		TurnID:         turnID,
		Data:           data,
	}
}

func TestListener_CompletedTurn(t *testing.T) {
	l, rec := newTestListener(t)

	l.StartTurn(context.Background(), "conv-1", "turn-1")
	l.OnEvent(evt(events.EventStateLoaded, "turn-1", events.StateEventData{Found: false}))
	l.OnEvent(evt(events.EventDialogStarted, "turn-1", events.DialogEventData{DialogID: "MainDialog", Depth: 1}))
	l.OnEvent(evt(events.EventIntentRecognized, "turn-1", events.IntentRecognizedData{
		Table: "main", Branch: "intent", Intent: "MakeAPayment", Score: 0.9, Configured: true,
	}))
	l.OnEvent(evt(events.EventDialogStarted, "turn-1", events.DialogEventData{DialogID: "paymentDialog", Depth: 2}))
	l.OnEvent(evt(events.EventTurnCompleted, "turn-1", events.TurnCompletedData{
		Status: "waiting", Activities: 1, Transitions: 3, StackDepth: 2,
	}))

	spans := rec.Ended()
	require.Len(t, spans, 2)

	route := spans[0]
	assert.Equal(t, "botservice.nlu.route", route.Name())

	turn := spans[1]
	assert.Equal(t, "botservice.turn", turn.Name())
	assert.Equal(t, codes.Ok, turn.Status().Code)
	assert.Equal(t, turn.SpanContext().SpanID(), route.Parent().SpanID())
	assert.Len(t, turn.Events(), 3)
	assert.Equal(t, 0, l.InFlight())
}

func TestListener_FailedTurn(t *testing.T) {
	l, rec := newTestListener(t)

	l.StartTurn(context.Background(), "conv-1", "turn-2")
	l.OnEvent(evt(events.EventTurnFailed, "turn-2", events.TurnFailedData{Error: errors.New("store down")}))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "store down", spans[0].Status().Description)
}

func TestListener_RecognizerErrorMarksRouteSpan(t *testing.T) {
	l, rec := newTestListener(t)

	l.OnEvent(evt(events.EventIntentRecognized, "unknown-turn", events.IntentRecognizedData{
		Table: "payment", Branch: "default", Intent: "None", Error: errors.New("timeout"),
	}))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.False(t, spans[0].Parent().IsValid())
}

func TestListener_IgnoresUnknownTurnAndBadPayload(t *testing.T) {
	l, rec := newTestListener(t)

	l.OnEvent(evt(events.EventTurnCompleted, "missing", events.TurnCompletedData{}))
	l.OnEvent(evt(events.EventDialogStarted, "missing", events.DialogEventData{DialogID: "x"}))
	l.StartTurn(context.Background(), "conv-1", "turn-3")
	l.OnEvent(evt(events.EventTurnCompleted, "turn-3", events.TurnStartedData{}))

	assert.Empty(t, rec.Ended())
	assert.Equal(t, 1, l.InFlight())
}

func TestListener_CloseEndsOpenTurns(t *testing.T) {
	l, rec := newTestListener(t)

	l.StartTurn(context.Background(), "conv-1", "a")
	l.StartTurn(context.Background(), "conv-2", "b")
	l.Close()

	assert.Len(t, rec.Ended(), 2)
	assert.Equal(t, 0, l.InFlight())
}

func TestListener_ViaEventBus(t *testing.T) {
	l, rec := newTestListener(t)
	bus := events.NewEventBus()
	defer bus.Close()
	bus.SubscribeAll(l.OnEvent)

	l.StartTurn(context.Background(), "conv-1", "turn-4")
	em := events.NewEmitter(bus, "conv-1", "turn-4")
	em.TurnStarted("user", "hi")
	em.PromptRetried(context.Background(), "numberPrompt", 1)
	em.TurnCompleted(events.TurnCompletedData{Status: "waiting"})
	bus.Flush()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Len(t, spans[0].Events(), 1)
}

func TestListener_EndTurn(t *testing.T) {
	l, rec := newTestListener(t)

	l.StartTurn(context.Background(), "conv-1", "dropped")
	l.EndTurn("dropped")

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, 0, l.InFlight())

	l.StartTurn(context.Background(), "conv-1", "done")
	l.OnEvent(evt(events.EventTurnCompleted, "done", events.TurnCompletedData{Status: "waiting"}))
	l.EndTurn("done")

	spans = rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}
