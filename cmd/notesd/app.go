package main

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"

	"github.com/studyforge/notesd/internal/auth"
	"github.com/studyforge/notesd/internal/config"
	"github.com/studyforge/notesd/internal/continuation"
	"github.com/studyforge/notesd/internal/events"
	"github.com/studyforge/notesd/internal/generation"
	"github.com/studyforge/notesd/internal/logging"
	"github.com/studyforge/notesd/internal/secrets"
	"github.com/studyforge/notesd/internal/store"
)

// initLogger builds the logger for cfg. output overrides the destination so
// commands that print results keep stdout clean. A non-nil otelProvider also
// ships every entry through the OTEL log bridge.
func initLogger(cfg *config.Config, output string, otelProvider log.LoggerProvider) (*logging.Logger, error) {
	lcfg, err := logging.ConfigFrom(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	if output != "" {
		lcfg.Output = output
	}
	return logging.NewLogger(lcfg, otelProvider)
}

// newEngine wires the completion client into a continuation engine. A
// missing credential is not fatal: the engine then answers every run with a
// configuration error.
func newEngine(cfg *config.Config, scrubber secrets.Scrubber, logger *zap.Logger) (*continuation.Engine, error) {
	client, err := generation.New(generation.Settings{
		Provider:  cfg.Generation.Provider,
		BaseURL:   cfg.Generation.BaseURL,
		Model:     cfg.Generation.Model,
		APIKey:    cfg.Generation.APIKey.Value(),
		Timeout:   cfg.Generation.Timeout,
		RateLimit: cfg.Generation.RateLimit,
		Burst:     cfg.Generation.Burst,
	})
	switch {
	case errors.Is(err, generation.ErrNotConfigured):
		logger.Warn("completion service not configured, continuation requests will fail",
			zap.String("provider", cfg.Generation.Provider))
		client = nil
	case err != nil:
		return nil, fmt.Errorf("completion client: %w", err)
	}

	return continuation.New(client, continuation.Config{
		MaxAttempts:    cfg.Continuation.MaxAttempts,
		TailWindow:     cfg.Continuation.TailWindow,
		MaxNotesChars:  cfg.Continuation.MaxNotesChars,
		MaxSourceChars: cfg.Continuation.MaxSourceChars,
		MaxTitleChars:  cfg.Continuation.MaxTitleChars,
	},
		continuation.WithScrubber(scrubber),
		continuation.WithLogger(logger),
	), nil
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreDriverMemory:
		return store.NewMemory(), nil
	case config.StoreDriverSQLite:
		st, err := store.NewSQLite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// openPublisher connects to NATS when a URL is configured; events are
// discarded otherwise.
func openPublisher(cfg config.EventsConfig, logger *zap.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		logger.Info("event publishing disabled")
		return events.Noop{}, nil
	}
	pub, err := events.Connect(cfg.NATSURL, cfg.Subject)
	if err != nil {
		return nil, err
	}
	logger.Info("publishing continuation events", zap.String("subject", cfg.Subject))
	return pub, nil
}

func newVerifier(cfg config.AuthConfig, logger *zap.Logger) (auth.Verifier, error) {
	switch cfg.Mode {
	case config.AuthModeRemote:
		return auth.NewRemoteVerifier(cfg.UserEndpoint, cfg.APIKey.Value()), nil
	case config.AuthModeStatic:
		if len(cfg.Tokens) == 0 {
			logger.Warn("no static tokens configured, every authenticated request will be rejected")
		}
		v, err := auth.NewStaticVerifier(cfg.Tokens)
		if err != nil {
			return nil, fmt.Errorf("auth tokens: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}
