package dialog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jagmitg/botservice/runtime/logger"
	"github.com/jagmitg/botservice/runtime/types"
)

// DefaultMaxTransitions bounds the dialog transitions one turn may perform.
const DefaultMaxTransitions = 64

// Observer receives dialog lifecycle notifications.
type Observer interface {
	DialogStarted(ctx context.Context, dialogID string, depth int)
	DialogEnded(ctx context.Context, dialogID string, depth int)
	PromptRetried(ctx context.Context, dialogID string, attempt int)
}

// Context drives the dialog stack of one conversation for one turn.
// It is not safe for concurrent use; hosts serialise turns per conversation.
type Context struct {
	set            *Set
	state          *State
	turn           types.Turn
	observer       Observer
	maxTransitions int
	transitions    int
	now            func() time.Time
	outbox         []types.Activity
}

// Option configures a Context.
type Option func(*Context)

// WithObserver registers an Observer for lifecycle notifications.
func WithObserver(o Observer) Option {
	return func(dc *Context) { dc.observer = o }
}

// WithMaxTransitions overrides DefaultMaxTransitions.
func WithMaxTransitions(n int) Option {
	return func(dc *Context) {
		if n > 0 {
			dc.maxTransitions = n
		}
	}
}

// WithClock sets the time source used for frame timestamps.
func WithClock(now func() time.Time) Option {
	return func(dc *Context) { dc.now = now }
}

// NewContext creates a turn context over state. A nil state starts empty.
func NewContext(set *Set, state *State, turn types.Turn, opts ...Option) *Context {
	if state == nil {
		state = &State{}
	}
	dc := &Context{
		set:            set,
		state:          state,
		turn:           turn,
		maxTransitions: DefaultMaxTransitions,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(dc)
	}
	return dc
}

// Turn returns the inbound turn being processed.
func (dc *Context) Turn() types.Turn { return dc.turn }

// State returns the dialog stack. Callers persist it after the turn.
func (dc *Context) State() *State { return dc.state }

// Active returns the top frame, or nil when no dialog is running.
func (dc *Context) Active() *Frame { return dc.state.Active() }

// Send queues outbound activities for the turn.
func (dc *Context) Send(activities ...types.Activity) {
	dc.outbox = append(dc.outbox, activities...)
}

// SendText queues a plain text message that does not expect a reply.
func (dc *Context) SendText(text string) {
	dc.Send(types.Text(text, types.InputHintIgnoring))
}

// Activities returns everything sent so far this turn.
func (dc *Context) Activities() []types.Activity {
	out := make([]types.Activity, len(dc.outbox))
	copy(out, dc.outbox)
	return out
}

// Transitions returns how many transitions this turn has performed.
func (dc *Context) Transitions() int { return dc.transitions }

func (dc *Context) tick() error {
	dc.transitions++
	if dc.transitions > dc.maxTransitions {
		return fmt.Errorf("%w (%d)", ErrTurnChainExceeded, dc.maxTransitions)
	}
	return nil
}

func (dc *Context) find(id string) (Dialog, error) {
	if dc.set != nil {
		if d, ok := dc.set.Find(id); ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDialog, id)
}

// Begin pushes the dialog id with options and runs its first step.
func (dc *Context) Begin(ctx context.Context, id string, options any) (TurnResult, error) {
	if err := dc.tick(); err != nil {
		return TurnResult{}, err
	}
	d, err := dc.find(id)
	if err != nil {
		return TurnResult{}, err
	}
	raw, err := encodeOptions(options)
	if err != nil {
		return TurnResult{}, fmt.Errorf("encode options for dialog %q: %w", id, err)
	}

	dc.state.Stack = append(dc.state.Stack, Frame{
		DialogID:  id,
		Values:    map[string]any{},
		State:     map[string]any{},
		Options:   raw,
		StartedAt: dc.now(),
	})
	dc.state.UpdatedAt = dc.now()
	depth := dc.state.Depth()
	logger.DialogTransition(ctx, "begin", id, depth)
	if dc.observer != nil {
		dc.observer.DialogStarted(ctx, id, depth)
	}
	return d.Begin(logger.WithDialogID(ctx, id), dc)
}

// Continue hands the current turn to the active dialog.
// It returns StatusEmpty when nothing is running.
func (dc *Context) Continue(ctx context.Context) (TurnResult, error) {
	f := dc.Active()
	if f == nil {
		return TurnResult{Status: StatusEmpty}, nil
	}
	if err := dc.tick(); err != nil {
		return TurnResult{}, err
	}
	d, err := dc.find(f.DialogID)
	if err != nil {
		return TurnResult{}, err
	}
	logger.DialogTransition(ctx, "continue", f.DialogID, dc.state.Depth())
	return d.Continue(logger.WithDialogID(ctx, f.DialogID), dc)
}

// End pops the active dialog and resumes its parent with result.
// Ending the last dialog completes the turn with result.
func (dc *Context) End(ctx context.Context, result any) (TurnResult, error) {
	if dc.Active() == nil {
		return TurnResult{}, ErrNoActiveDialog
	}
	if err := dc.tick(); err != nil {
		return TurnResult{}, err
	}
	dc.pop(ctx)

	parent := dc.Active()
	if parent == nil {
		return TurnResult{Status: StatusComplete, Result: result}, nil
	}
	d, err := dc.find(parent.DialogID)
	if err != nil {
		return TurnResult{}, err
	}
	logger.DialogTransition(ctx, "resume", parent.DialogID, dc.state.Depth())
	return d.Resume(logger.WithDialogID(ctx, parent.DialogID), dc, result)
}

// Replace pops the active dialog without resuming its parent and begins id in
// its place.
func (dc *Context) Replace(ctx context.Context, id string, options any) (TurnResult, error) {
	if dc.Active() != nil {
		dc.pop(ctx)
	}
	return dc.Begin(ctx, id, options)
}

// Cancel pops every frame.
func (dc *Context) Cancel(ctx context.Context) TurnResult {
	for dc.Active() != nil {
		dc.pop(ctx)
	}
	return TurnResult{Status: StatusCancelled}
}

// Run continues the active dialog, or begins rootID when the stack is empty.
// A stack that references unknown dialogs or holds a corrupt frame is discarded
// and rootID begins fresh.
func (dc *Context) Run(ctx context.Context, rootID string, options any) (TurnResult, error) {
	if bad, reason := dc.corruptFrame(); bad != "" {
		logger.WarnContext(ctx, "discarding dialog stack",
			"dialog_id", bad, "reason", reason, "depth", dc.state.Depth())
		dc.state.Stack = nil
	}

	res, err := dc.Continue(ctx)
	if err != nil {
		return res, err
	}
	if res.Status == StatusEmpty {
		return dc.Begin(ctx, rootID, options)
	}
	return res, nil
}

func (dc *Context) corruptFrame() (string, string) {
	for i := range dc.state.Stack {
		f := &dc.state.Stack[i]
		if _, err := dc.find(f.DialogID); err != nil {
			return f.DialogID, "unknown dialog"
		}
		if f.StepIndex < 0 {
			return f.DialogID, "negative step index"
		}
	}
	return "", ""
}

func (dc *Context) pop(ctx context.Context) {
	f := dc.state.Stack[len(dc.state.Stack)-1]
	depth := len(dc.state.Stack)
	dc.state.Stack = dc.state.Stack[:depth-1]
	dc.state.UpdatedAt = dc.now()
	logger.DialogTransition(ctx, "end", f.DialogID, depth)
	if dc.observer != nil {
		dc.observer.DialogEnded(ctx, f.DialogID, depth)
	}
}

// IsChainExceeded reports whether err came from the per-turn transition limit.
func IsChainExceeded(err error) bool {
	return errors.Is(err, ErrTurnChainExceeded)
}
