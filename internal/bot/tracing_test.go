package bot

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jagmitg/botservice/runtime/events"
	"github.com/jagmitg/botservice/runtime/telemetry"
	"github.com/jagmitg/botservice/runtime/types"
)

func newSpanListener(t *testing.T) (*telemetry.OTelEventListener, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return telemetry.NewOTelEventListener(telemetry.Tracer(tp)), rec
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	return names
}

func TestOnTurn_Tracing(t *testing.T) {
	spans, rec := newSpanListener(t)
	bus := events.NewEventBus()
	defer bus.Close()

	h := newHarness(t, configuredRecognizer(), WithEventBus(bus), WithTracing(spans))
	h.say("hi")
	_, err := h.bot.OnTurn(context.Background(), types.Turn{ConversationID: h.conv, Text: "make a payment"})
	require.NoError(t, err)

	ended := rec.Ended()
	assert.ElementsMatch(t, []string{"botservice.turn", "botservice.nlu.route", "botservice.turn"}, spanNames(ended))
	for _, s := range ended {
		assert.Equal(t, codes.Ok, s.Status().Code, s.Name())
	}
	assert.Zero(t, spans.InFlight())
}

func TestOnTurn_TracingWithoutBus(t *testing.T) {
	spans, rec := newSpanListener(t)

	h := newHarness(t, configuredRecognizer(), WithTracing(spans))
	h.say("hi")

	require.Len(t, rec.Ended(), 1)
	assert.Zero(t, spans.InFlight())
}

func TestOnTurn_TracingSurvivesFullBus(t *testing.T) {
	spans, rec := newSpanListener(t)

	release := make(chan struct{})
	bus := events.NewEventBus(events.WithQueueSize(1))
	defer bus.Close()
	defer close(release)
	bus.SubscribeAll(func(*events.Event) { <-release })

	h := newHarness(t, configuredRecognizer(), WithEventBus(bus), WithTracing(spans))
	const turns = 50
	for i := 0; i < turns; i++ {
		h.conv = fmt.Sprintf("conv-%d", i)
		h.say("hi")
	}

	assert.Positive(t, bus.Dropped())
	assert.Zero(t, spans.InFlight())
	assert.Len(t, rec.Ended(), turns)
}

func TestOnTurn_FailedTurnEndsSpan(t *testing.T) {
	spans, rec := newSpanListener(t)

	h := newHarness(t, &phraseRecognizer{}, WithTracing(spans), WithMaxTransitions(2))
	_, err := h.bot.OnTurn(context.Background(), types.Turn{ConversationID: h.conv, Text: "x"})
	require.Error(t, err)

	var turnSpans []sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if s.Name() == "botservice.turn" {
			turnSpans = append(turnSpans, s)
		}
	}
	require.Len(t, turnSpans, 1)
	assert.Equal(t, codes.Error, turnSpans[0].Status().Code)
	assert.Zero(t, spans.InFlight())
}
