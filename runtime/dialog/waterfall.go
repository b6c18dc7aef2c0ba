package dialog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jagmitg/botservice/runtime/logger"
	"github.com/jagmitg/botservice/runtime/types"
)

// StepFunc is one step of a Waterfall.
type StepFunc func(ctx context.Context, sc *StepContext) (TurnResult, error)

// Step is a named waterfall step.
type Step struct {
	Name string
	Run  StepFunc
}

// Waterfall runs an ordered list of steps, one per turn unless a step chains
// to the next with StepContext.Next. Running past the last step ends the
// dialog with the last result.
type Waterfall struct {
	id    string
	steps []Step
}

// NewWaterfall creates a waterfall dialog.
func NewWaterfall(id string, steps ...Step) *Waterfall {
	return &Waterfall{id: id, steps: steps}
}

// ID implements Dialog.
func (w *Waterfall) ID() string { return w.id }

// StepNames returns the step names in order.
func (w *Waterfall) StepNames() []string {
	names := make([]string, len(w.steps))
	for i, s := range w.steps {
		names[i] = s.Name
	}
	return names
}

// Begin implements Dialog.
func (w *Waterfall) Begin(ctx context.Context, dc *Context) (TurnResult, error) {
	return w.runStep(ctx, dc, 0, nil)
}

// Continue implements Dialog. A waterfall only receives turns directly when a
// step suspended without a prompt; the utterance becomes the step result.
func (w *Waterfall) Continue(ctx context.Context, dc *Context) (TurnResult, error) {
	return w.Resume(ctx, dc, dc.Turn().Text)
}

// Resume implements Dialog.
func (w *Waterfall) Resume(ctx context.Context, dc *Context, result any) (TurnResult, error) {
	f := dc.Active()
	if f == nil || f.DialogID != w.id {
		return TurnResult{}, fmt.Errorf("%w: resume %q", ErrNoActiveDialog, w.id)
	}
	return w.runStep(ctx, dc, f.StepIndex+1, result)
}

func (w *Waterfall) runStep(ctx context.Context, dc *Context, index int, result any) (TurnResult, error) {
	if index >= len(w.steps) {
		return dc.End(ctx, result)
	}
	f := dc.Active()
	if f == nil || f.DialogID != w.id {
		return TurnResult{}, fmt.Errorf("%w: step %d of %q", ErrNoActiveDialog, index, w.id)
	}
	if err := dc.tick(); err != nil {
		return TurnResult{}, err
	}
	if f.Values == nil {
		f.Values = map[string]any{}
	}
	f.StepIndex = index

	step := w.steps[index]
	ctx = logger.WithStep(ctx, step.Name)
	logger.DialogTransition(ctx, "step", w.id, dc.state.Depth(), "index", index)

	sc := &StepContext{
		dc:        dc,
		waterfall: w,
		Index:     index,
		Name:      step.Name,
		Result:    result,
		Values:    f.Values,
		frame:     f,
	}
	return step.Run(ctx, sc)
}

var errStepAlreadyAdvanced = errors.New("step already advanced")

// StepContext is passed to each waterfall step.
type StepContext struct {
	dc        *Context
	waterfall *Waterfall
	frame     *Frame
	advanced  bool

	// Index and Name identify the running step.
	Index int
	Name  string
	// Result is the previous step's result, or nil for the first step.
	Result any
	// Values persist across the steps of one waterfall run.
	Values map[string]any
}

// Context returns the turn's dialog context.
func (sc *StepContext) Context() *Context { return sc.dc }

// Turn returns the inbound turn.
func (sc *StepContext) Turn() types.Turn { return sc.dc.Turn() }

// Send queues outbound activities.
func (sc *StepContext) Send(activities ...types.Activity) { sc.dc.Send(activities...) }

// SendText queues a plain text message.
func (sc *StepContext) SendText(text string) { sc.dc.SendText(text) }

// Options decodes the waterfall's begin options into v.
func (sc *StepContext) Options(v any) error { return sc.frame.DecodeOptions(v) }

// Next runs the following step in the same turn with result.
func (sc *StepContext) Next(ctx context.Context, result any) (TurnResult, error) {
	if err := sc.advance(); err != nil {
		return TurnResult{}, err
	}
	return sc.waterfall.runStep(ctx, sc.dc, sc.Index+1, result)
}

// Prompt begins the prompt dialog promptID and suspends until it ends.
func (sc *StepContext) Prompt(ctx context.Context, promptID string, opts PromptOptions) (TurnResult, error) {
	if err := sc.advance(); err != nil {
		return TurnResult{}, err
	}
	return sc.dc.Begin(ctx, promptID, opts)
}

// BeginDialog begins a child dialog.
func (sc *StepContext) BeginDialog(ctx context.Context, id string, options any) (TurnResult, error) {
	if err := sc.advance(); err != nil {
		return TurnResult{}, err
	}
	return sc.dc.Begin(ctx, id, options)
}

// EndDialog ends the waterfall with result.
func (sc *StepContext) EndDialog(ctx context.Context, result any) (TurnResult, error) {
	if err := sc.advance(); err != nil {
		return TurnResult{}, err
	}
	return sc.dc.End(ctx, result)
}

// ReplaceDialog ends the waterfall and begins id in its place.
func (sc *StepContext) ReplaceDialog(ctx context.Context, id string, options any) (TurnResult, error) {
	if err := sc.advance(); err != nil {
		return TurnResult{}, err
	}
	return sc.dc.Replace(ctx, id, options)
}

// advance enforces a single transition per step.
func (sc *StepContext) advance() error {
	if sc.advanced {
		return fmt.Errorf("%w: %s/%s", errStepAlreadyAdvanced, sc.waterfall.id, sc.Name)
	}
	sc.advanced = true
	return nil
}
