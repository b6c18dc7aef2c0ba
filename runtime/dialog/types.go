// Package dialog runs stacks of waterfall dialogs and input prompts.
//
// A conversation's dialog state is an explicit stack of Frames. The frame on top
// of the stack is the only active dialog; a parent frame is suspended while its
// child runs and resumes at the step after the one that began the child. State is
// plain data and survives a JSON round trip, so hosts persist it between turns.
package dialog

import (
	"encoding/json"
	"errors"
	"maps"
	"math"
	"slices"
	"strconv"
	"time"
)

var (
	// ErrUnknownDialog is returned when a dialog id is not registered in the Set.
	ErrUnknownDialog = errors.New("unknown dialog")
	// ErrDuplicateDialog is returned when two dialogs share an id.
	ErrDuplicateDialog = errors.New("dialog id already registered")
	// ErrTurnChainExceeded is returned when one turn performs more dialog
	// transitions than the context allows.
	ErrTurnChainExceeded = errors.New("turn exceeded the maximum number of dialog transitions")
	// ErrNoActiveDialog is returned when an operation needs an active frame.
	ErrNoActiveDialog = errors.New("no active dialog")
)

// Status describes where a turn left the dialog stack.
type Status string

// Status values.
const (
	StatusEmpty     Status = "empty"
	StatusWaiting   Status = "waiting"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
)

// TurnResult is returned by every dialog operation.
type TurnResult struct {
	Status Status
	Result any
}

// Waiting is the result of a dialog that suspended for user input.
func Waiting() TurnResult {
	return TurnResult{Status: StatusWaiting}
}

// Frame is the state of one running dialog.
type Frame struct {
	DialogID  string          `json:"dialogId"`
	StepIndex int             `json:"stepIndex"`
	Values    map[string]any  `json:"values,omitempty"`
	Options   json.RawMessage `json:"options,omitempty"`
	State     map[string]any  `json:"state,omitempty"`
	StartedAt time.Time       `json:"startedAt"`
}

// DecodeOptions unmarshals the options the frame was begun with into v.
// A frame begun without options leaves v untouched.
func (f *Frame) DecodeOptions(v any) error {
	if len(f.Options) == 0 || string(f.Options) == "null" {
		return nil
	}
	return json.Unmarshal(f.Options, v)
}

func (f *Frame) clone() Frame {
	c := *f
	c.Values = maps.Clone(f.Values)
	c.State = maps.Clone(f.State)
	c.Options = slices.Clone(f.Options)
	return c
}

// State is the per-conversation dialog stack.
type State struct {
	Stack     []Frame   `json:"stack"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Active returns the frame on top of the stack, or nil.
func (s *State) Active() *Frame {
	if s == nil || len(s.Stack) == 0 {
		return nil
	}
	return &s.Stack[len(s.Stack)-1]
}

// Depth returns the number of frames on the stack.
func (s *State) Depth() int {
	if s == nil {
		return 0
	}
	return len(s.Stack)
}

// IsEmpty reports whether no dialog is running.
func (s *State) IsEmpty() bool {
	return s.Depth() == 0
}

// DialogIDs returns the ids on the stack, bottom first.
func (s *State) DialogIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.Stack))
	for i := range s.Stack {
		ids[i] = s.Stack[i].DialogID
	}
	return ids
}

// Clone returns a copy that shares no maps or slices with s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := &State{UpdatedAt: s.UpdatedAt}
	if s.Stack != nil {
		c.Stack = make([]Frame, len(s.Stack))
		for i := range s.Stack {
			c.Stack[i] = s.Stack[i].clone()
		}
	}
	return c
}

// ValueString returns m[key] as a string, or "" when absent or not a string.
func ValueString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// ValueInt returns m[key] as an int. Values decoded from JSON arrive as float64
// and are accepted when they hold a whole number.
func ValueInt(m map[string]any, key string) (int, bool) {
	return AsInt(m[key])
}

// AsInt converts a numeric result to int. Whole float64 values are accepted.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := strconv.Atoi(string(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func encodeOptions(options any) (json.RawMessage, error) {
	switch o := options.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return slices.Clone(o), nil
	default:
		return json.Marshal(options)
	}
}
