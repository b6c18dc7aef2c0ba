package bot

import (
	"github.com/jagmitg/botservice/runtime/nlu"
	"github.com/jagmitg/botservice/runtime/routing"
)

// Dialog and prompt ids.
const (
	MainDialogID    = "MainDialog"
	PaymentDialogID = "paymentDialog"
	RenewDialogID   = "renewDialog"

	TextPromptID    = "textPrompt"
	ConfirmPromptID = "confirmPrompt"
	AgePromptID     = "agePrompt"
)

// MainTable routes the answer to the intro.
func MainTable(c Content) *routing.BranchTable {
	return &routing.BranchTable{
		Name: "main",
		Branches: map[string]routing.Action{
			nlu.IntentMakeAPayment:     {Kind: routing.KindBeginChild, Target: PaymentDialogID},
			nlu.IntentRenewMyTvLicense: {Kind: routing.KindBeginChild, Target: RenewDialogID},
		},
		Default:      routing.Action{Kind: routing.KindSendMessage, Message: c.Fallback},
		Unconfigured: routing.Action{Kind: routing.KindBeginChild, Target: PaymentDialogID},
	}
}

// PaymentTable routes the answer to the payment options prompt.
func PaymentTable(c Content) *routing.BranchTable {
	confirmWithCard := func(card string) routing.Action {
		return routing.Action{
			Kind:    routing.KindPrompt,
			Target:  ConfirmPromptID,
			Card:    card,
			Message: c.Helpful,
		}
	}
	return &routing.BranchTable{
		Name: "payment",
		Branches: map[string]routing.Action{
			nlu.IntentCashPayment:      confirmWithCard(CardPayByCash),
			nlu.IntentDebitCardPayment: confirmWithCard(CardDirectDebitPayment),
			nlu.IntentCantUsePayPoint:  confirmWithCard(CardCantUsePayPoint),
			nlu.IntentSSPPayment: {
				Kind:    routing.KindPrompt,
				Target:  TextPromptID,
				Message: c.SSPReply,
			},
		},
		Default: routing.Action{Kind: routing.KindSendMessage, Message: c.Fallback},
		Unconfigured: routing.Action{
			Kind:        routing.KindSendMessage,
			Message:     c.PaymentNoNLU,
			ThenDefault: true,
		},
	}
}

// ValidateTables checks both tables against the known intents and the
// dialog ids registered in the bot.
func ValidateTables(c Content, dialogIDs []string) *routing.ValidationResult {
	known := nlu.KnownIntents()
	main, payment := MainTable(c), PaymentTable(c)

	result := routing.Validate(main, known, dialogIDs)
	result.Merge(routing.Validate(payment, known, dialogIDs))
	result.Merge(routing.Coverage(known, main, payment))
	return result
}
