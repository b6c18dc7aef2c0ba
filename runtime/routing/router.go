package routing

import (
	"context"
	"encoding/json"
	"fmt"

	pkgerrors "github.com/jagmitg/botservice/pkg/errors"
	"github.com/jagmitg/botservice/runtime/dialog"
	"github.com/jagmitg/botservice/runtime/logger"
	"github.com/jagmitg/botservice/runtime/nlu"
	"github.com/jagmitg/botservice/runtime/template"
	"github.com/jagmitg/botservice/runtime/types"
)

// CardSource resolves named card templates.
type CardSource interface {
	Card(name string) (json.RawMessage, bool)
}

// IntentListener observes every routing decision.
type IntentListener func(ctx context.Context, sel Selection, recognizeErr error)

// Router recognizes the current utterance and executes the selected action.
type Router struct {
	recognizer nlu.Recognizer
	cards      CardSource
	renderer   *template.Renderer
	listeners  []IntentListener
}

// Option configures a Router.
type Option func(*Router)

// WithIntentListener registers a listener for routing decisions.
func WithIntentListener(l IntentListener) Option {
	return func(r *Router) { r.listeners = append(r.listeners, l) }
}

// NewRouter creates a Router. Both the recognizer and the card source are required.
func NewRouter(recognizer nlu.Recognizer, cards CardSource, opts ...Option) (*Router, error) {
	if recognizer == nil {
		return nil, pkgerrors.MissingDependency("routing", "NewRouter", "recognizer")
	}
	if cards == nil {
		return nil, pkgerrors.MissingDependency("routing", "NewRouter", "cards")
	}
	r := &Router{
		recognizer: recognizer,
		cards:      cards,
		renderer:   &template.Renderer{Lenient: true},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// IsConfigured reports whether the underlying recognizer is usable.
func (r *Router) IsConfigured() bool { return r.recognizer.IsConfigured() }

// Route recognizes the turn's text, selects from table and executes the action.
func (r *Router) Route(ctx context.Context, sc *dialog.StepContext, table *BranchTable) (dialog.TurnResult, error) {
	res, err := r.Recognize(ctx, sc.Turn().Text)
	sel := table.Select(res)
	for _, l := range r.listeners {
		l(ctx, sel, err)
	}
	logger.DebugContext(ctx, "branch selected",
		"table", sel.Table, "branch", sel.Branch, "intent", sel.Intent.Label, "action", sel.Action.Kind)
	return r.Execute(ctx, sc, table, sel)
}

// Recognize calls the recognizer. An unconfigured recognizer is never called.
// Recognizer failures are logged and reported as the None intent; the error is
// returned for observers only.
func (r *Router) Recognize(ctx context.Context, text string) (nlu.RecognizedIntent, error) {
	if !r.recognizer.IsConfigured() {
		return nlu.Unrecognized(text, false), nil
	}
	res, err := r.recognizer.Recognize(ctx, text)
	if err != nil {
		logger.WarnContext(ctx, "intent recognition failed, treating as None",
			"recognizer", r.recognizer.Name(), "error", err)
		return nlu.Unrecognized(text, true), err
	}
	logger.IntentRecognized(ctx, r.recognizer.Name(), res.Label, res.Score)
	return res, nil
}

// Execute performs sel's action from a waterfall step.
func (r *Router) Execute(
	ctx context.Context, sc *dialog.StepContext, table *BranchTable, sel Selection,
) (dialog.TurnResult, error) {
	a := sel.Action
	switch a.Kind {
	case KindBeginChild:
		return sc.BeginDialog(ctx, a.Target, nil)

	case KindPrompt:
		if err := r.sendCard(sc, a.Card); err != nil {
			return dialog.TurnResult{}, err
		}
		return sc.Prompt(ctx, a.Target, dialog.PromptOptions{
			Prompt:  r.render(a.Message, sel),
			Choices: a.Choices,
		})

	case KindSendMessage:
		if err := r.sendCard(sc, a.Card); err != nil {
			return dialog.TurnResult{}, err
		}
		if a.Message != "" {
			sc.SendText(r.render(a.Message, sel))
		}
		if a.ThenDefault && sel.Branch != BranchDefault {
			next := sel
			next.Branch, next.Action = BranchDefault, table.Default
			return r.Execute(ctx, sc, table, next)
		}
		return sc.Next(ctx, nil)

	case KindContinue:
		return sc.Next(ctx, nil)

	default:
		return dialog.TurnResult{}, fmt.Errorf("table %q: unknown action kind %q", table.Name, a.Kind)
	}
}

func (r *Router) sendCard(sc *dialog.StepContext, name string) error {
	if name == "" {
		return nil
	}
	content, ok := r.cards.Card(name)
	if !ok {
		return fmt.Errorf("card %q not found", name)
	}
	sc.Send(types.Card(name, content))
	return nil
}

func (r *Router) render(message string, sel Selection) string {
	out, err := r.renderer.Render(message, map[string]string{"intent": sel.Intent.Label})
	if err != nil {
		return message
	}
	return out
}
