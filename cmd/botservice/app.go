package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jagmitg/botservice/internal/bot"
	"github.com/jagmitg/botservice/pkg/config"
	"github.com/jagmitg/botservice/runtime/events"
	"github.com/jagmitg/botservice/runtime/logger"
	botmetrics "github.com/jagmitg/botservice/runtime/metrics/prometheus"
	"github.com/jagmitg/botservice/runtime/nlu"
	"github.com/jagmitg/botservice/runtime/statestore"
	"github.com/jagmitg/botservice/runtime/telemetry"
	"github.com/jagmitg/botservice/runtime/version"
)

// stateStore is what both store backends provide.
type stateStore interface {
	statestore.Store
	statestore.ProfileStore
}

// app holds everything a command needs to run turns.
type app struct {
	cfg        *config.BotConfig
	recognizer nlu.Recognizer
	store      stateStore
	redis      *redis.Client
	bus        *events.EventBus
	spans      *telemetry.OTelEventListener
	tracer     *sdktrace.TracerProvider
	bot        *bot.Bot
}

// newApp wires the recognizer, stores, event listeners and the bot from cfg.
func newApp(ctx context.Context, cfg *config.BotConfig) (*app, error) {
	a := &app{cfg: cfg, bus: events.NewEventBus()}
	a.bus.SubscribeAll(botmetrics.NewMetricsListener().Listener())

	a.recognizer = newRecognizer(cfg.NLU)

	store, client, err := newStateStore(ctx, cfg.StateStore)
	if err != nil {
		a.bus.Close()
		return nil, err
	}
	a.store, a.redis = store, client

	opts := []bot.Option{
		bot.WithEventBus(a.bus),
		bot.WithContent(bot.DefaultContent(cfg.Content.EscalationPhone, cfg.Content.EscalationHours)),
	}
	if cfg.Telemetry.Enabled {
		telemetry.SetupPropagation()
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry.Endpoint,
			telemetry.WithServiceName(cfg.Telemetry.ServiceName),
			telemetry.WithServiceVersion(version.Get().Version),
			telemetry.WithResourceAttributes(attribute.String("botservice.config", cfg.Name)),
			telemetry.WithHeaders(cfg.Telemetry.Headers),
			telemetry.WithSampleRatio(cfg.Telemetry.Ratio()),
		)
		if err != nil {
			_ = a.close(ctx)
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		a.tracer = tp
		a.spans = telemetry.NewOTelEventListener(telemetry.Tracer(tp))
		opts = append(opts, bot.WithTracing(a.spans))
	}

	b, err := bot.New(a.recognizer, a.store, a.store, opts...)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	a.bot = b

	logger.InfoContext(ctx, "bot ready",
		"nlu", a.recognizer.Name(),
		"nlu_configured", a.recognizer.IsConfigured(),
		"state_store", cfg.StateStore.Type,
		"tracing", cfg.Telemetry.Enabled)
	return a, nil
}

func newRecognizer(cfg config.NLUConfig) nlu.Recognizer {
	switch cfg.Type {
	case config.NLUTypeLUIS:
		return nlu.NewLUISRecognizer(nlu.LUISConfig{
			AppID:    cfg.LUIS.AppID,
			APIKey:   cfg.LUIS.APIKey,
			Host:     cfg.LUIS.Host,
			Slot:     cfg.LUIS.Slot,
			MinScore: cfg.MinScore,
			Timeout:  cfg.LUIS.Timeout.Std(),
		})
	case config.NLUTypeKeyword:
		rules := make([]nlu.KeywordRule, 0, len(cfg.Keywords))
		for _, r := range cfg.Keywords {
			rules = append(rules, nlu.KeywordRule{Intent: r.Intent, Phrases: r.Phrases})
		}
		return nlu.NewKeywordRecognizer(rules, cfg.MinScore)
	default:
		return nlu.Unconfigured{}
	}
}

func newStateStore(ctx context.Context, cfg config.StateStoreConfig) (stateStore, *redis.Client, error) {
	if cfg.Type != config.StoreTypeRedis {
		return statestore.NewMemoryStore(), nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})
	store := statestore.NewRedisStore(client,
		statestore.WithTTL(cfg.Redis.TTL.Std()),
		statestore.WithProfileTTL(cfg.Redis.ProfileTTL.Std()),
		statestore.WithPrefix(cfg.Redis.Prefix),
	)
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("stateStore: redis %s: %w", cfg.Redis.Addr, err)
	}
	return store, client, nil
}

// healthCheck reports whether the state store is reachable.
func (a *app) healthCheck(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Ping(ctx).Err()
}

// close drains the event bus, ends open spans and releases connections.
func (a *app) close(ctx context.Context) error {
	a.bus.Close()
	if a.spans != nil {
		a.spans.Close()
	}
	var errs []error
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
