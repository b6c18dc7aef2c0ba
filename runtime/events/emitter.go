package events

import (
	"context"
	"time"
)

// Emitter publishes events for one turn of one conversation. Its dialog
// methods match the dialog package's Observer interface.
type Emitter struct {
	bus            *EventBus
	direct         []Listener
	conversationID string
	turnID         string
}

// NewEmitter creates an emitter bound to a conversation and turn. Direct
// listeners are called inline on the emitting goroutine before the event is
// queued on bus, so they never miss an event when the bus drops one.
// A nil bus with no direct listeners yields an emitter that publishes nothing.
func NewEmitter(bus *EventBus, conversationID, turnID string, direct ...Listener) *Emitter {
	return &Emitter{
		bus:            bus,
		direct:         direct,
		conversationID: conversationID,
		turnID:         turnID,
	}
}

func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || (e.bus == nil && len(e.direct) == 0) {
		return
	}
	event := &Event{
		Type:           eventType,
		Timestamp:      time.Now(),
		ConversationID: e.conversationID,
		TurnID:         e.turnID,
		Data:           data,
	}
	for _, l := range e.direct {
		safeInvoke(l, event)
	}
	if e.bus != nil {
		e.bus.Publish(event)
	}
}

// TurnStarted emits the turn.started event.
func (e *Emitter) TurnStarted(userID, text string) {
	e.emit(EventTurnStarted, TurnStartedData{UserID: userID, Text: text})
}

// TurnCompleted emits the turn.completed event.
func (e *Emitter) TurnCompleted(data TurnCompletedData) {
	e.emit(EventTurnCompleted, data)
}

// TurnFailed emits the turn.failed event.
func (e *Emitter) TurnFailed(err error, duration time.Duration) {
	e.emit(EventTurnFailed, TurnFailedData{Error: err, Duration: duration})
}

// DialogStarted emits the dialog.started event.
func (e *Emitter) DialogStarted(_ context.Context, dialogID string, depth int) {
	e.emit(EventDialogStarted, DialogEventData{DialogID: dialogID, Depth: depth})
}

// DialogEnded emits the dialog.ended event.
func (e *Emitter) DialogEnded(_ context.Context, dialogID string, depth int) {
	e.emit(EventDialogEnded, DialogEventData{DialogID: dialogID, Depth: depth})
}

// PromptRetried emits the prompt.retried event.
func (e *Emitter) PromptRetried(_ context.Context, promptID string, attempt int) {
	e.emit(EventPromptRetried, PromptRetriedData{PromptID: promptID, Attempt: attempt})
}

// IntentRecognized emits the intent.recognized event.
func (e *Emitter) IntentRecognized(data IntentRecognizedData) {
	e.emit(EventIntentRecognized, data)
}

// StateLoaded emits the state.loaded event.
func (e *Emitter) StateLoaded(found bool, depth int) {
	e.emit(EventStateLoaded, StateEventData{Found: found, StackDepth: depth})
}

// StateSaved emits the state.saved event. deleted is set when the conversation
// finished and its state was removed instead of written.
func (e *Emitter) StateSaved(depth int, deleted bool) {
	e.emit(EventStateSaved, StateEventData{Found: true, StackDepth: depth, Deleted: deleted})
}

// ProfileSaved emits the profile.saved event.
func (e *Emitter) ProfileSaved(key string, hasAge, created bool) {
	e.emit(EventProfileSaved, ProfileSavedData{Key: key, HasAge: hasAge, Created: created})
}

type emitterKey struct{}

// ContextWithEmitter returns ctx carrying e. Long-lived dialogs use it to
// publish events for the turn they are running in.
func ContextWithEmitter(ctx context.Context, e *Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, e)
}

// EmitterFromContext returns the turn's emitter. The result may be nil,
// which is safe to call.
func EmitterFromContext(ctx context.Context) *Emitter {
	e, _ := ctx.Value(emitterKey{}).(*Emitter)
	return e
}
