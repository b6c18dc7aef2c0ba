package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEmitterPublishesSharedContext(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	defer bus.Close()
	emitter := NewEmitter(bus, "conv-1", "turn-1")

	var got *Event
	bus.Subscribe(EventDialogStarted, func(e *Event) { got = e })

	emitter.DialogStarted(context.Background(), "paymentDialog", 2)
	bus.Flush()

	if got == nil {
		t.Fatal("event not delivered")
	}
	if got.ConversationID != "conv-1" || got.TurnID != "turn-1" {
		t.Fatalf("unexpected context: %+v", got)
	}
	data, ok := got.Data.(DialogEventData)
	if !ok {
		t.Fatalf("unexpected data type: %T", got.Data)
	}
	if data.DialogID != "paymentDialog" || data.Depth != 2 {
		t.Fatalf("unexpected data: %+v", data)
	}
	if got.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}

func TestEmitterPublishesVariousEvents(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	defer bus.Close()
	emitter := NewEmitter(bus, "conv-2", "turn-2")

	var seen []EventType
	bus.SubscribeAll(func(e *Event) { seen = append(seen, e.Type) })

	ctx := context.Background()
	emitter.TurnStarted("user-1", "hello")
	emitter.StateLoaded(false, 0)
	emitter.DialogStarted(ctx, "MainDialog", 1)
	emitter.IntentRecognized(IntentRecognizedData{Table: "main", Branch: "default", Intent: "None"})
	emitter.PromptRetried(ctx, "numberPrompt", 1)
	emitter.DialogEnded(ctx, "MainDialog", 1)
	emitter.ProfileSaved("user-1", true, true)
	emitter.StateSaved(1, false)
	emitter.TurnCompleted(TurnCompletedData{Status: "waiting", Duration: time.Millisecond})
	emitter.TurnFailed(errors.New("boom"), time.Millisecond)
	bus.Flush()

	want := []EventType{
		EventTurnStarted, EventStateLoaded, EventDialogStarted, EventIntentRecognized,
		EventPromptRetried, EventDialogEnded, EventProfileSaved, EventStateSaved,
		EventTurnCompleted, EventTurnFailed,
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestEmitterWithoutBus(t *testing.T) {
	t.Parallel()

	var nilEmitter *Emitter
	nilEmitter.TurnStarted("u", "t")
	NewEmitter(nil, "c", "t").TurnFailed(errors.New("boom"), 0)
}

func TestEmitterContextRoundTrip(t *testing.T) {
	t.Parallel()

	if EmitterFromContext(context.Background()) != nil {
		t.Fatal("expected nil emitter in empty context")
	}
	EmitterFromContext(context.Background()).TurnStarted("u", "hi")

	e := NewEmitter(nil, "conv", "turn")
	ctx := ContextWithEmitter(context.Background(), e)
	if EmitterFromContext(ctx) != e {
		t.Fatal("emitter not returned from context")
	}
}

func TestEmitterDirectListenersSeeDroppedEvents(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	bus := NewEventBus(WithQueueSize(1))
	defer bus.Close()
	defer close(release)
	bus.SubscribeAll(func(*Event) { <-release })

	var direct []EventType
	emitter := NewEmitter(bus, "conv-1", "turn-1", func(e *Event) { direct = append(direct, e.Type) })
	for i := 0; i < 5; i++ {
		emitter.PromptRetried(context.Background(), "agePrompt", i+1)
	}
	emitter.TurnCompleted(TurnCompletedData{Status: "waiting"})

	if len(direct) != 6 {
		t.Fatalf("direct listener saw %d events, want 6", len(direct))
	}
	if direct[5] != EventTurnCompleted {
		t.Fatalf("last event = %s", direct[5])
	}
	if bus.Dropped() == 0 {
		t.Fatal("expected the bus to drop events")
	}
}
