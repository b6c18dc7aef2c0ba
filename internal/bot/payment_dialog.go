package bot

import (
	"context"

	"github.com/jagmitg/botservice/runtime/dialog"
	"github.com/jagmitg/botservice/runtime/routing"
)

type paymentDialog struct {
	router  *routing.Router
	table   *routing.BranchTable
	content Content
}

func newPaymentDialog(router *routing.Router, content Content) *dialog.Waterfall {
	p := &paymentDialog{router: router, table: PaymentTable(content), content: content}
	return dialog.NewWaterfall(PaymentDialogID,
		dialog.Step{Name: "payment", Run: p.payment},
		dialog.Step{Name: "act", Run: p.act},
		dialog.Step{Name: "final", Run: p.final},
	)
}

func (p *paymentDialog) payment(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
	return sc.Prompt(ctx, TextPromptID, dialog.PromptOptions{
		Prompt:  p.content.PaymentPrompt,
		Choices: p.content.PaymentActions,
	})
}

func (p *paymentDialog) act(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
	return p.router.Route(ctx, sc, p.table)
}

// final handles the "was this helpful?" answer. Any other result (an SSP
// reply, or nothing after the fallback) ends the dialog.
func (p *paymentDialog) final(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
	helpful, ok := sc.Result.(bool)
	switch {
	case !ok:
		return sc.EndDialog(ctx, nil)
	case helpful:
		sc.SendText(p.content.Glad)
		return sc.EndDialog(ctx, true)
	default:
		sc.SendText(p.content.escalation())
		return sc.Prompt(ctx, TextPromptID, dialog.PromptOptions{Prompt: p.content.AnythingElse})
	}
}
