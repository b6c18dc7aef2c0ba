package events

import "time"

// EventType identifies the type of event emitted by the bot runtime.
type EventType string

const (
	// EventTurnStarted marks the start of an inbound turn.
	EventTurnStarted EventType = "turn.started"
	// EventTurnCompleted marks a turn that finished without error.
	EventTurnCompleted EventType = "turn.completed"
	// EventTurnFailed marks a turn that returned an error.
	EventTurnFailed EventType = "turn.failed"

	// EventDialogStarted marks a dialog pushed onto the stack.
	EventDialogStarted EventType = "dialog.started"
	// EventDialogEnded marks a dialog popped from the stack.
	EventDialogEnded EventType = "dialog.ended"

	// EventIntentRecognized marks a routing decision.
	EventIntentRecognized EventType = "intent.recognized"
	// EventPromptRetried marks a prompt that rejected an answer.
	EventPromptRetried EventType = "prompt.retried"

	// EventStateLoaded marks dialog state load.
	EventStateLoaded EventType = "state.loaded"
	// EventStateSaved marks dialog state save.
	EventStateSaved EventType = "state.saved"
	// EventProfileSaved marks a user profile write.
	EventProfileSaved EventType = "profile.saved"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event represents a runtime event delivered to listeners.
type Event struct {
	Type           EventType
	Timestamp      time.Time
	ConversationID string
	TurnID         string
	Data           EventData
}

// baseEventData provides a shared marker implementation for all event payloads.
type baseEventData struct{}

func (baseEventData) eventData() {}

// TurnStartedData contains data for turn start events.
type TurnStartedData struct {
	baseEventData
	UserID string
	Text   string
}

// TurnCompletedData contains data for turn completion events.
type TurnCompletedData struct {
	baseEventData
	Status        string
	Activities    int
	Transitions   int
	StackDepth    int
	Duration      time.Duration
	ActiveDialogs []string
}

// TurnFailedData contains data for turn failure events.
type TurnFailedData struct {
	baseEventData
	Error    error
	Duration time.Duration
}

// DialogEventData contains data for dialog start and end events.
type DialogEventData struct {
	baseEventData
	DialogID string
	Depth    int
}

// IntentRecognizedData contains data for routing decisions.
type IntentRecognizedData struct {
	baseEventData
	Table      string
	Branch     string
	Intent     string
	Score      float64
	Configured bool
	Error      error
}

// PromptRetriedData contains data for prompt retry events.
type PromptRetriedData struct {
	baseEventData
	PromptID string
	Attempt  int
}

// StateEventData contains data for state load and save events.
type StateEventData struct {
	baseEventData
	Found      bool
	StackDepth int
	Deleted    bool
}

// ProfileSavedData contains data for profile writes.
type ProfileSavedData struct {
	baseEventData
	Key     string
	HasAge  bool
	Created bool
}
