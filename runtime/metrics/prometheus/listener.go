package prometheus

import (
	"github.com/jagmitg/botservice/runtime/events"
)

// Label values written by the listener.
const (
	statusError = "error"

	dialogStarted = "started"
	dialogEnded   = "ended"

	opLoadHit  = "load_hit"
	opLoadMiss = "load_miss"
	opSave     = "save"
	opDelete   = "delete"
)

// MetricsListener records dialog runtime events as Prometheus metrics.
// It implements the events.Listener signature and should be registered
// with an EventBus using SubscribeAll.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
func (l *MetricsListener) Handle(event *events.Event) {
	switch event.Type {
	case events.EventTurnStarted:
		RecordTurnStart()
	case events.EventTurnCompleted:
		if data, ok := event.Data.(events.TurnCompletedData); ok {
			RecordTurnEnd(data.Status, data.Duration.Seconds())
		}
	case events.EventTurnFailed:
		if data, ok := event.Data.(events.TurnFailedData); ok {
			RecordTurnEnd(statusError, data.Duration.Seconds())
		}
	case events.EventIntentRecognized:
		l.handleIntent(event)
	case events.EventDialogStarted:
		if data, ok := event.Data.(events.DialogEventData); ok {
			RecordDialog(data.DialogID, dialogStarted)
		}
	case events.EventDialogEnded:
		if data, ok := event.Data.(events.DialogEventData); ok {
			RecordDialog(data.DialogID, dialogEnded)
		}
	case events.EventPromptRetried:
		if data, ok := event.Data.(events.PromptRetriedData); ok {
			RecordPromptRetry(data.PromptID)
		}
	case events.EventStateLoaded, events.EventStateSaved:
		l.handleState(event)
	case events.EventProfileSaved:
		if data, ok := event.Data.(events.ProfileSavedData); ok {
			RecordProfileSaved(data.HasAge)
		}
	default:
		// Ignore events that don't have metrics
	}
}

func (l *MetricsListener) handleIntent(event *events.Event) {
	data, ok := event.Data.(events.IntentRecognizedData)
	if !ok {
		return
	}
	RecordIntent(data.Table, data.Branch, data.Intent)
	if data.Error != nil {
		RecordRecognizerError(data.Table)
	}
}

func (l *MetricsListener) handleState(event *events.Event) {
	data, ok := event.Data.(events.StateEventData)
	if !ok {
		return
	}
	switch {
	case event.Type == events.EventStateLoaded && data.Found:
		RecordStateOperation(opLoadHit)
	case event.Type == events.EventStateLoaded:
		RecordStateOperation(opLoadMiss)
	case data.Deleted:
		RecordStateOperation(opDelete)
	default:
		RecordStateOperation(opSave)
	}
}

// Listener returns an events.Listener function that can be registered with an EventBus.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}
