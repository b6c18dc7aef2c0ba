package dialog

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/jagmitg/botservice/runtime/types"
)

const attemptsKey = "attempts"

// PromptOptions is the persisted configuration of one prompt run.
type PromptOptions struct {
	Prompt      string   `json:"prompt"`
	RetryPrompt string   `json:"retryPrompt,omitempty"`
	Choices     []string `json:"choices,omitempty"`
}

// Recognized is what a prompt extracted from a turn.
type Recognized struct {
	Succeeded bool
	Value     any
}

// PromptValidatorContext is passed to a Validator.
type PromptValidatorContext struct {
	Recognized Recognized
	// Attempt counts answers received by this prompt run, starting at 1.
	Attempt int
	Options PromptOptions
	Turn    types.Turn
}

// Validator decides whether a recognized answer is acceptable.
// Without a validator, any successful recognition is accepted.
type Validator func(ctx context.Context, pc PromptValidatorContext) bool

type recognizeFunc func(turn types.Turn, opts PromptOptions) Recognized

// Prompt is a dialog that asks one question and ends with the answer.
// Rejected answers re-prompt with no limit on attempts.
type Prompt struct {
	id             string
	kind           string
	recognize      recognizeFunc
	validator      Validator
	defaultChoices []string
}

// PromptOption configures a Prompt.
type PromptOption func(*Prompt)

// WithValidator attaches a Validator.
func WithValidator(v Validator) PromptOption {
	return func(p *Prompt) { p.validator = v }
}

// IntegerOnly restricts a number prompt to whole numbers.
func IntegerOnly() PromptOption {
	return func(p *Prompt) { p.recognize = recognizeInteger }
}

// NewTextPrompt accepts any non-blank utterance.
func NewTextPrompt(id string, opts ...PromptOption) *Prompt {
	return newPrompt(id, "text", recognizeText, opts)
}

// NewConfirmPrompt accepts yes/no answers, as words, choice labels, or a
// structured boolean value. Choices default to Yes and No.
func NewConfirmPrompt(id string, opts ...PromptOption) *Prompt {
	p := newPrompt(id, "confirm", recognizeConfirm, opts)
	p.defaultChoices = []string{"Yes", "No"}
	return p
}

// NewNumberPrompt accepts a number.
func NewNumberPrompt(id string, opts ...PromptOption) *Prompt {
	return newPrompt(id, "number", recognizeNumber, opts)
}

func newPrompt(id, kind string, rec recognizeFunc, opts []PromptOption) *Prompt {
	p := &Prompt{id: id, kind: kind, recognize: rec}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID implements Dialog.
func (p *Prompt) ID() string { return p.id }

// Kind returns "text", "confirm" or "number".
func (p *Prompt) Kind() string { return p.kind }

// Begin implements Dialog.
func (p *Prompt) Begin(ctx context.Context, dc *Context) (TurnResult, error) {
	f := dc.Active()
	opts, err := p.options(f)
	if err != nil {
		return TurnResult{}, err
	}
	f.State[attemptsKey] = 0
	dc.Send(p.activity(opts.Prompt, opts))
	return Waiting(), nil
}

// Continue implements Dialog.
func (p *Prompt) Continue(ctx context.Context, dc *Context) (TurnResult, error) {
	f := dc.Active()
	opts, err := p.options(f)
	if err != nil {
		return TurnResult{}, err
	}
	if f.State == nil {
		f.State = map[string]any{}
	}
	attempt, _ := ValueInt(f.State, attemptsKey)
	attempt++
	f.State[attemptsKey] = attempt

	rec := p.recognize(dc.Turn(), opts)
	valid := rec.Succeeded
	if p.validator != nil {
		valid = p.validator(ctx, PromptValidatorContext{
			Recognized: rec,
			Attempt:    attempt,
			Options:    opts,
			Turn:       dc.Turn(),
		})
	}
	if valid {
		return dc.End(ctx, rec.Value)
	}

	if dc.observer != nil {
		dc.observer.PromptRetried(ctx, p.id, attempt)
	}
	text := opts.RetryPrompt
	if text == "" {
		text = opts.Prompt
	}
	dc.Send(p.activity(text, opts))
	return Waiting(), nil
}

// Resume implements Dialog. Prompts never have children, so resuming simply
// asks again.
func (p *Prompt) Resume(ctx context.Context, dc *Context, _ any) (TurnResult, error) {
	opts, err := p.options(dc.Active())
	if err != nil {
		return TurnResult{}, err
	}
	dc.Send(p.activity(opts.Prompt, opts))
	return Waiting(), nil
}

func (p *Prompt) options(f *Frame) (PromptOptions, error) {
	var opts PromptOptions
	if f == nil {
		return opts, ErrNoActiveDialog
	}
	if err := f.DecodeOptions(&opts); err != nil {
		return opts, err
	}
	if len(opts.Choices) == 0 {
		opts.Choices = p.defaultChoices
	}
	return opts, nil
}

func (p *Prompt) activity(text string, opts PromptOptions) types.Activity {
	if len(opts.Choices) > 0 {
		return types.SuggestedActions(opts.Choices, text, types.InputHintExpecting)
	}
	return types.Text(text, types.InputHintExpecting)
}

func recognizeText(turn types.Turn, _ PromptOptions) Recognized {
	text := strings.TrimSpace(turn.Text)
	if text == "" {
		if s, ok := turn.Value.(string); ok {
			text = strings.TrimSpace(s)
		}
	}
	return Recognized{Succeeded: text != "", Value: text}
}

var (
	yesWords = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "yup": true,
		"sure": true, "ok": true, "okay": true, "true": true, "correct": true,
	}
	noWords = map[string]bool{
		"no": true, "n": true, "nope": true, "nah": true, "false": true,
		"no thanks": true, "not really": true,
	}
)

func recognizeConfirm(turn types.Turn, opts PromptOptions) Recognized {
	if b, ok := turn.Value.(bool); ok {
		return Recognized{Succeeded: true, Value: b}
	}
	text := strings.ToLower(strings.TrimSpace(turn.Text))
	text = strings.TrimRight(text, ".!?")
	if len(opts.Choices) >= 2 {
		switch {
		case strings.EqualFold(text, opts.Choices[0]):
			return Recognized{Succeeded: true, Value: true}
		case strings.EqualFold(text, opts.Choices[1]):
			return Recognized{Succeeded: true, Value: false}
		}
	}
	switch {
	case yesWords[text]:
		return Recognized{Succeeded: true, Value: true}
	case noWords[text]:
		return Recognized{Succeeded: true, Value: false}
	}
	return Recognized{}
}

func recognizeNumber(turn types.Turn, _ PromptOptions) Recognized {
	if v, ok := numericValue(turn.Value); ok {
		return Recognized{Succeeded: true, Value: v}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(turn.Text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Recognized{}
	}
	return Recognized{Succeeded: true, Value: f}
}

func recognizeInteger(turn types.Turn, _ PromptOptions) Recognized {
	if v, ok := AsInt(turn.Value); ok {
		return Recognized{Succeeded: true, Value: v}
	}
	i, err := strconv.Atoi(strings.TrimSpace(turn.Text))
	if err != nil {
		return Recognized{}
	}
	return Recognized{Succeeded: true, Value: i}
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
