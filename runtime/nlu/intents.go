package nlu

// Intent labels the bot's LUIS application publishes. Labels are matched exactly.
const (
	IntentMakeAPayment     = "MakeAPayment"
	IntentRenewMyTvLicense = "RenewMyTvLicense"
	IntentCashPayment      = "CashPayment"
	IntentDebitCardPayment = "DebitCardPayment"
	IntentSSPPayment       = "SSPPayment"
	IntentCantUsePayPoint  = "CantUsePayPoint"
)

// KnownIntents lists every intent label the dialogs can branch on.
func KnownIntents() []string {
	return []string{
		IntentMakeAPayment,
		IntentRenewMyTvLicense,
		IntentCashPayment,
		IntentDebitCardPayment,
		IntentSSPPayment,
		IntentCantUsePayPoint,
	}
}
