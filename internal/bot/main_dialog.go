package bot

import (
	"context"

	"github.com/jagmitg/botservice/runtime/dialog"
	"github.com/jagmitg/botservice/runtime/routing"
)

// MainOptions are the begin options of the main dialog.
type MainOptions struct {
	RestartMsg string `json:"restartMsg,omitempty"`
}

type mainDialog struct {
	router  *routing.Router
	table   *routing.BranchTable
	content Content
}

// newMainDialog builds the root waterfall: intro, act, final.
func newMainDialog(router *routing.Router, content Content) *dialog.Waterfall {
	m := &mainDialog{router: router, table: MainTable(content), content: content}
	return dialog.NewWaterfall(MainDialogID,
		dialog.Step{Name: "intro", Run: m.intro},
		dialog.Step{Name: "act", Run: m.act},
		dialog.Step{Name: "final", Run: m.final},
	)
}

func (m *mainDialog) intro(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
	if !m.router.IsConfigured() {
		sc.SendText(m.content.LUISNote)
		return sc.Next(ctx, nil)
	}

	var opts MainOptions
	if err := sc.Options(&opts); err != nil {
		return dialog.TurnResult{}, err
	}
	text := m.content.Intro
	if opts.RestartMsg != "" {
		text = opts.RestartMsg
	}
	return sc.Prompt(ctx, TextPromptID, dialog.PromptOptions{
		Prompt:  text,
		Choices: m.content.IntroActions,
	})
}

func (m *mainDialog) act(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
	return m.router.Route(ctx, sc, m.table)
}

// final loops back to the intro so the conversation never drops to a cold start.
func (m *mainDialog) final(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
	return sc.ReplaceDialog(ctx, MainDialogID, MainOptions{RestartMsg: m.content.Restart})
}
