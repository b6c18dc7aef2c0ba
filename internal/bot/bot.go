// Package bot assembles the SIPPI dialogs and runs one conversation turn at a time.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jagmitg/botservice/pkg/config"
	pkgerrors "github.com/jagmitg/botservice/pkg/errors"
	"github.com/jagmitg/botservice/runtime/dialog"
	"github.com/jagmitg/botservice/runtime/events"
	"github.com/jagmitg/botservice/runtime/logger"
	"github.com/jagmitg/botservice/runtime/nlu"
	"github.com/jagmitg/botservice/runtime/routing"
	"github.com/jagmitg/botservice/runtime/statestore"
	"github.com/jagmitg/botservice/runtime/telemetry"
	"github.com/jagmitg/botservice/runtime/types"
)

// Bot runs turns against the main dialog.
type Bot struct {
	set      *dialog.Set
	router   *routing.Router
	store    statestore.Store
	profiles statestore.ProfileStore
	content  Content
	cards    routing.CardSource

	bus            *events.EventBus
	spans          *telemetry.OTelEventListener
	maxTransitions int
	now            func() time.Time

	locks *keyedMutex
}

// Option configures a Bot.
type Option func(*Bot)

// WithContent replaces the default texts.
func WithContent(c Content) Option {
	return func(b *Bot) { b.content = c }
}

// WithCards replaces the embedded card templates.
func WithCards(cards routing.CardSource) Option {
	return func(b *Bot) { b.cards = cards }
}

// WithEventBus publishes turn and dialog events to bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(b *Bot) { b.bus = bus }
}

// WithTracing opens a root span per turn. The listener receives the turn's
// events directly and the span is ended before OnTurn returns; it must not
// also be subscribed to the event bus.
func WithTracing(l *telemetry.OTelEventListener) Option {
	return func(b *Bot) { b.spans = l }
}

// WithMaxTransitions overrides the per-turn transition limit.
func WithMaxTransitions(n int) Option {
	return func(b *Bot) { b.maxTransitions = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// New builds the bot. The recognizer and both stores are required; an
// unconfigured recognizer is allowed and puts the dialogs on their degraded path.
func New(
	recognizer nlu.Recognizer, store statestore.Store, profiles statestore.ProfileStore, opts ...Option,
) (*Bot, error) {
	if recognizer == nil {
		return nil, pkgerrors.MissingDependency("bot", "New", "recognizer")
	}
	if store == nil {
		return nil, pkgerrors.MissingDependency("bot", "New", "store")
	}
	b := &Bot{
		store:          store,
		profiles:       profiles,
		content:        DefaultContent(config.DefaultEscalationPhone, config.DefaultEscalationHours),
		maxTransitions: dialog.DefaultMaxTransitions,
		now:            time.Now,
		locks:          newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.content.Validate(); err != nil {
		return nil, pkgerrors.New("bot", "New", err)
	}
	if b.cards == nil {
		cards, err := LoadCards()
		if err != nil {
			return nil, pkgerrors.New("bot", "New", err)
		}
		b.cards = cards
	}

	router, err := routing.NewRouter(recognizer, b.cards, routing.WithIntentListener(publishIntent))
	if err != nil {
		return nil, err
	}
	b.router = router

	renew, err := newRenewDialog(profiles, b.content)
	if err != nil {
		return nil, err
	}
	set, err := dialog.NewSet(
		newMainDialog(router, b.content),
		newPaymentDialog(router, b.content),
		renew,
		dialog.NewTextPrompt(TextPromptID),
		dialog.NewConfirmPrompt(ConfirmPromptID),
		dialog.NewNumberPrompt(AgePromptID, dialog.IntegerOnly(), dialog.WithValidator(ValidAge)),
	)
	if err != nil {
		return nil, pkgerrors.New("bot", "New", err)
	}
	b.set = set

	if result := ValidateTables(b.content, set.IDs()); result.HasErrors() {
		return nil, pkgerrors.New("bot", "New", fmt.Errorf("invalid branch tables: %v", result.Errors))
	}
	return b, nil
}

func publishIntent(ctx context.Context, sel routing.Selection, recognizeErr error) {
	events.EmitterFromContext(ctx).IntentRecognized(events.IntentRecognizedData{
		Table:      sel.Table,
		Branch:     sel.Branch,
		Intent:     sel.Intent.Label,
		Score:      sel.Intent.Score,
		Configured: sel.Intent.IsConfigured,
		Error:      recognizeErr,
	})
}

// DialogIDs lists the registered dialogs and prompts.
func (b *Bot) DialogIDs() []string { return b.set.IDs() }

// IsConfigured reports whether intent recognition is available.
func (b *Bot) IsConfigured() bool { return b.router.IsConfigured() }

// OnTurn processes one inbound turn and returns the replies. Turns of the same
// conversation run one at a time; different conversations run in parallel.
// Within a process a keyed mutex orders turns. When the store also implements
// statestore.Locker (the redis store does) the conversation is locked in the
// store as well, so replicas sharing it do not interleave turns.
func (b *Bot) OnTurn(ctx context.Context, turn types.Turn) ([]types.Activity, error) {
	if err := turn.Validate(); err != nil {
		return nil, pkgerrors.New("bot", "OnTurn", err).WithStatusCode(http.StatusBadRequest)
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}

	unlock := b.locks.Lock(turn.ConversationID)
	defer unlock()
	if locker, ok := b.store.(statestore.Locker); ok {
		release, err := locker.LockConversation(ctx, turn.ConversationID)
		if err != nil {
			return nil, pkgerrors.New("bot", "OnTurn", err).WithStatusCode(lockStatus(err))
		}
		defer release()
	}

	start := b.now()
	var direct []events.Listener
	if b.spans != nil {
		ctx = b.spans.StartTurn(ctx, turn.ConversationID, turn.ID)
		defer b.spans.EndTurn(turn.ID)
		direct = append(direct, b.spans.OnEvent)
	}
	ctx = logger.WithConversationID(ctx, turn.ConversationID)
	ctx = logger.WithTurnID(ctx, turn.ID)
	em := events.NewEmitter(b.bus, turn.ConversationID, turn.ID, direct...)
	ctx = events.ContextWithEmitter(ctx, em)
	em.TurnStarted(turn.UserID, turn.Text)

	activities, result, state, err := b.runTurn(ctx, em, turn)
	elapsed := b.now().Sub(start)
	if err != nil {
		logger.ErrorContext(ctx, "turn failed", "error", err, "duration_ms", elapsed.Milliseconds())
		em.TurnFailed(err, elapsed)
		return nil, err
	}

	em.TurnCompleted(events.TurnCompletedData{
		Status:        string(result.Status),
		Activities:    len(activities),
		Transitions:   result.transitions,
		StackDepth:    state.Depth(),
		Duration:      elapsed,
		ActiveDialogs: state.DialogIDs(),
	})
	logger.DebugContext(ctx, "turn completed",
		"status", result.Status, "activities", len(activities), "depth", state.Depth())
	return activities, nil
}

func lockStatus(err error) int {
	if errors.Is(err, statestore.ErrLockTimeout) {
		return http.StatusConflict
	}
	return http.StatusServiceUnavailable
}

type turnOutcome struct {
	dialog.TurnResult
	transitions int
}

func (b *Bot) runTurn(
	ctx context.Context, em *events.Emitter, turn types.Turn,
) ([]types.Activity, turnOutcome, *dialog.State, error) {
	conv, found, err := b.load(ctx, turn)
	if err != nil {
		return nil, turnOutcome{}, nil, err
	}
	em.StateLoaded(found, conv.Dialogs.Depth())

	dc := dialog.NewContext(b.set, conv.Dialogs, turn,
		dialog.WithObserver(em),
		dialog.WithMaxTransitions(b.maxTransitions),
		dialog.WithClock(b.now),
	)
	res, err := dc.Run(ctx, MainDialogID, nil)
	if err != nil {
		return nil, turnOutcome{}, nil, fmt.Errorf("run dialogs: %w", err)
	}
	out := turnOutcome{TurnResult: res, transitions: dc.Transitions()}

	state := dc.State()
	if state.IsEmpty() {
		if err := b.store.Delete(ctx, conv.ID); err != nil && !errors.Is(err, statestore.ErrNotFound) {
			return nil, out, nil, fmt.Errorf("delete state: %w", err)
		}
		em.StateSaved(0, true)
		return dc.Activities(), out, state, nil
	}

	conv.Dialogs = state
	conv.TurnCount++
	conv.LastAccessedAt = b.now()
	if err := b.store.Save(ctx, conv); err != nil {
		return nil, out, nil, fmt.Errorf("save state: %w", err)
	}
	em.StateSaved(state.Depth(), false)
	return dc.Activities(), out, state, nil
}

func (b *Bot) load(ctx context.Context, turn types.Turn) (*statestore.ConversationState, bool, error) {
	conv, err := b.store.Load(ctx, turn.ConversationID)
	switch {
	case errors.Is(err, statestore.ErrNotFound):
		return &statestore.ConversationState{
			ID:      turn.ConversationID,
			UserID:  turn.UserID,
			Dialogs: &dialog.State{},
		}, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("load state: %w", err)
	}
	if conv.Dialogs == nil {
		conv.Dialogs = &dialog.State{}
	}
	return conv, true, nil
}
