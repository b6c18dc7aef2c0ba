package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/jagmitg/botservice/pkg/errors"
	"github.com/jagmitg/botservice/runtime/dialog"
	"github.com/jagmitg/botservice/runtime/nlu"
	"github.com/jagmitg/botservice/runtime/types"
)

type fakeRecognizer struct {
	configured bool
	label      string
	err        error
	calls      int
}

func (f *fakeRecognizer) Name() string       { return "fake" }
func (f *fakeRecognizer) IsConfigured() bool { return f.configured }

func (f *fakeRecognizer) Recognize(_ context.Context, text string) (nlu.RecognizedIntent, error) {
	f.calls++
	if f.err != nil {
		return nlu.Unrecognized(text, true), f.err
	}
	return nlu.NewResult(text, map[string]float64{f.label: 0.9}, 0), nil
}

type cardMap map[string]json.RawMessage

func (c cardMap) Card(name string) (json.RawMessage, bool) {
	raw, ok := c[name]
	return raw, ok
}

func paymentTable() *BranchTable {
	return &BranchTable{
		Name: "payment",
		Branches: map[string]Action{
			"CashPayment":  {Kind: KindPrompt, Card: "payByCash", Target: "confirm", Message: "Was this helpful?"},
			"SSPPayment":   {Kind: KindPrompt, Target: "text", Message: "debit card here"},
			"MakeAPayment": {Kind: KindBeginChild, Target: "child"},
			"Nothing":      {Kind: KindContinue},
		},
		Default:      Action{Kind: KindSendMessage, Message: "Sorry (intent was {{intent}})"},
		Unconfigured: Action{Kind: KindSendMessage, Message: "NLU is off", ThenDefault: true},
	}
}

// runFlow begins a waterfall that routes the turn's text through table.
func runFlow(t *testing.T, router *Router, table *BranchTable, text string) ([]types.Activity, *dialog.State) {
	t.Helper()
	set, err := dialog.NewSet(
		dialog.NewTextPrompt("text"),
		dialog.NewConfirmPrompt("confirm"),
		dialog.NewWaterfall("child", dialog.Step{Name: "hello", Run: func(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
			sc.SendText("in child")
			return sc.Prompt(ctx, "text", dialog.PromptOptions{Prompt: "child prompt"})
		}}),
		dialog.NewWaterfall("flow",
			dialog.Step{Name: "act", Run: func(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
				return router.Route(ctx, sc, table)
			}},
			dialog.Step{Name: "final", Run: func(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
				sc.SendText(fmt.Sprintf("final:%v", sc.Result))
				return sc.EndDialog(ctx, nil)
			}},
		),
	)
	require.NoError(t, err)

	dc := dialog.NewContext(set, nil, types.Turn{ConversationID: "c1", Text: text})
	_, err = dc.Run(context.Background(), "flow", nil)
	require.NoError(t, err)
	return dc.Activities(), dc.State()
}

func newTestRouter(t *testing.T, rec nlu.Recognizer, opts ...Option) *Router {
	t.Helper()
	r, err := NewRouter(rec, cardMap{"payByCash": json.RawMessage(`{"type":"AdaptiveCard"}`)}, opts...)
	require.NoError(t, err)
	return r
}

func TestSelect_UnknownIntentTakesDefault(t *testing.T) {
	table := paymentTable()
	for _, label := range []string{"BookFlight", "cashpayment", "CASHPAYMENT", nlu.None, ""} {
		sel := table.Select(nlu.RecognizedIntent{Label: label, IsConfigured: true})
		assert.Equal(t, BranchDefault, sel.Branch, label)
		assert.Equal(t, table.Default, sel.Action, label)
	}
}

func TestSelect_Branches(t *testing.T) {
	table := paymentTable()

	sel := table.Select(nlu.RecognizedIntent{Label: "CashPayment", IsConfigured: true})
	assert.Equal(t, BranchIntent, sel.Branch)
	assert.Equal(t, "payByCash", sel.Action.Card)
	assert.Equal(t, "payment", sel.Table)

	sel = table.Select(nlu.RecognizedIntent{Label: "CashPayment", IsConfigured: false})
	assert.Equal(t, BranchUnconfigured, sel.Branch)
}

func TestRouter_CashPaymentSendsCardThenConfirm(t *testing.T) {
	rec := &fakeRecognizer{configured: true, label: "CashPayment"}
	acts, state := runFlow(t, newTestRouter(t, rec), paymentTable(), "pay with cash")

	require.Len(t, acts, 2)
	assert.True(t, acts[0].HasCard("payByCash"))
	assert.Equal(t, "Was this helpful?", acts[1].Text)
	assert.Equal(t, []string{"Yes", "No"}, acts[1].SuggestedActions)
	assert.Equal(t, []string{"flow", "confirm"}, state.DialogIDs())
	assert.Equal(t, 1, rec.calls)
}

func TestRouter_BeginChild(t *testing.T) {
	rec := &fakeRecognizer{configured: true, label: "MakeAPayment"}
	acts, state := runFlow(t, newTestRouter(t, rec), paymentTable(), "pay")

	assert.Equal(t, "in child", acts[0].Text)
	assert.Equal(t, []string{"flow", "child", "text"}, state.DialogIDs())
}

func TestRouter_DefaultMessageContinues(t *testing.T) {
	rec := &fakeRecognizer{configured: true, label: "BookFlight"}
	acts, state := runFlow(t, newTestRouter(t, rec), paymentTable(), "book a flight")

	require.Len(t, acts, 2)
	assert.Equal(t, "Sorry (intent was BookFlight)", acts[0].Text)
	assert.Equal(t, types.InputHintIgnoring, acts[0].InputHint)
	assert.Equal(t, "final:<nil>", acts[1].Text)
	assert.True(t, state.IsEmpty())
}

func TestRouter_ContinueIsSilent(t *testing.T) {
	rec := &fakeRecognizer{configured: true, label: "Nothing"}
	acts, _ := runFlow(t, newTestRouter(t, rec), paymentTable(), "x")

	require.Len(t, acts, 1)
	assert.Equal(t, "final:<nil>", acts[0].Text)
}

func TestRouter_UnconfiguredSkipsRecognizer(t *testing.T) {
	rec := &fakeRecognizer{configured: false}
	var seen []Selection
	router := newTestRouter(t, rec, WithIntentListener(func(_ context.Context, sel Selection, _ error) {
		seen = append(seen, sel)
	}))

	acts, _ := runFlow(t, router, paymentTable(), "book a flight")
	assert.Zero(t, rec.calls)
	require.Len(t, acts, 3)
	assert.Equal(t, "NLU is off", acts[0].Text)
	assert.Equal(t, "Sorry (intent was None)", acts[1].Text)
	require.Len(t, seen, 1)
	assert.Equal(t, BranchUnconfigured, seen[0].Branch)
	assert.False(t, router.IsConfigured())
}

func TestRouter_RecognizerErrorIsNone(t *testing.T) {
	boom := errors.New("luis down")
	rec := &fakeRecognizer{configured: true, err: boom}
	var gotErr error
	router := newTestRouter(t, rec, WithIntentListener(func(_ context.Context, _ Selection, err error) {
		gotErr = err
	}))

	acts, _ := runFlow(t, router, paymentTable(), "cash")
	assert.Equal(t, "Sorry (intent was None)", acts[0].Text)
	assert.ErrorIs(t, gotErr, boom)
}

func TestRouter_MissingCard(t *testing.T) {
	r, err := NewRouter(&fakeRecognizer{configured: true, label: "CashPayment"}, cardMap{})
	require.NoError(t, err)

	set, err := dialog.NewSet(
		dialog.NewConfirmPrompt("confirm"),
		dialog.NewWaterfall("flow", dialog.Step{Name: "act", Run: func(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
			return r.Route(ctx, sc, paymentTable())
		}}),
	)
	require.NoError(t, err)
	_, err = dialog.NewContext(set, nil, types.Turn{Text: "cash"}).Run(context.Background(), "flow", nil)
	assert.ErrorContains(t, err, `card "payByCash" not found`)
}

func TestNewRouter_MissingDependencies(t *testing.T) {
	_, err := NewRouter(nil, cardMap{})
	assert.ErrorIs(t, err, pkgerrors.ErrMissingDependency)

	_, err = NewRouter(&fakeRecognizer{}, nil)
	assert.ErrorIs(t, err, pkgerrors.ErrMissingDependency)
}
