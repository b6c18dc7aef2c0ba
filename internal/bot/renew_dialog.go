package bot

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/jagmitg/botservice/pkg/errors"
	"github.com/jagmitg/botservice/runtime/dialog"
	"github.com/jagmitg/botservice/runtime/events"
	"github.com/jagmitg/botservice/runtime/logger"
	"github.com/jagmitg/botservice/runtime/statestore"
)

// RenewOptions are the begin options of the renew dialog.
type RenewOptions struct {
	Transport string `json:"transport,omitempty"`
}

// Waterfall value keys.
const (
	valueTransport = "transport"
	valueName      = "name"
)

// Age bounds, exclusive.
const (
	minAge = 0
	maxAge = 150
)

type renewDialog struct {
	profiles statestore.ProfileStore
	content  Content
}

func newRenewDialog(profiles statestore.ProfileStore, content Content) (*dialog.Waterfall, error) {
	if profiles == nil {
		return nil, pkgerrors.MissingDependency("bot", "newRenewDialog", "profiles")
	}
	r := &renewDialog{profiles: profiles, content: content}
	return dialog.NewWaterfall(RenewDialogID,
		dialog.Step{Name: "name", Run: r.name},
		dialog.Step{Name: "nameConfirm", Run: r.nameConfirm},
		dialog.Step{Name: "age", Run: r.age},
		dialog.Step{Name: "summary", Run: r.summary},
	), nil
}

// ValidAge accepts whole numbers strictly between 0 and 150.
func ValidAge(_ context.Context, pc dialog.PromptValidatorContext) bool {
	if !pc.Recognized.Succeeded {
		return false
	}
	age, ok := dialog.AsInt(pc.Recognized.Value)
	return ok && age > minAge && age < maxAge
}

func (r *renewDialog) name(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
	var opts RenewOptions
	if err := sc.Options(&opts); err != nil {
		return dialog.TurnResult{}, err
	}
	if opts.Transport != "" {
		sc.Values[valueTransport] = opts.Transport
	}
	return sc.Prompt(ctx, TextPromptID, dialog.PromptOptions{Prompt: r.content.NamePrompt})
}

func (r *renewDialog) nameConfirm(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
	name, _ := sc.Result.(string)
	sc.Values[valueName] = name
	sc.SendText(r.content.nameThanks(name))
	return sc.Prompt(ctx, ConfirmPromptID, dialog.PromptOptions{
		Prompt:  r.content.AgeQuestion,
		Choices: r.content.AgeChoices,
	})
}

func (r *renewDialog) age(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
	if give, _ := sc.Result.(bool); give {
		return sc.Prompt(ctx, AgePromptID, dialog.PromptOptions{
			Prompt:      r.content.AgePrompt,
			RetryPrompt: r.content.AgeRetry,
		})
	}
	return sc.Next(ctx, statestore.DeclinedAge)
}

func (r *renewDialog) summary(ctx context.Context, sc *dialog.StepContext) (dialog.TurnResult, error) {
	age, ok := dialog.AsInt(sc.Result)
	if !ok || age == 0 {
		sc.SendText(r.content.NotKept)
		return sc.EndDialog(ctx, nil)
	}

	name := dialog.ValueString(sc.Values, valueName)
	turn := sc.Turn()
	key := turn.ProfileKey()
	created := false
	profile, err := r.profiles.UpdateProfile(ctx, key, func(p statestore.UserProfile) (statestore.UserProfile, error) {
		created = p.UpdatedAt.IsZero()
		p.Name = name
		p.Age = age
		return p, nil
	})
	if err != nil {
		return dialog.TurnResult{}, fmt.Errorf("save profile: %w", err)
	}
	logger.DebugContext(ctx, "profile saved", "created", created, "has_age", profile.HasAge())
	events.EmitterFromContext(ctx).ProfileSaved(key, profile.HasAge(), created)

	sc.SendText(summaryText(dialog.ValueString(sc.Values, valueTransport), profile))
	return sc.EndDialog(ctx, profile)
}

func summaryText(transport string, p statestore.UserProfile) string {
	var b strings.Builder
	if transport != "" {
		fmt.Fprintf(&b, "I have your mode of transport as %s and your name as %s", transport, p.Name)
	} else {
		fmt.Fprintf(&b, "I have your name as %s", p.Name)
	}
	if p.Age != statestore.DeclinedAge {
		fmt.Fprintf(&b, " and your age as %d", p.Age)
	}
	b.WriteString(".")
	return b.String()
}
