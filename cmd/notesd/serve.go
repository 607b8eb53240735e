package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/studyforge/notesd/internal/config"
	httpserver "github.com/studyforge/notesd/internal/http"
	"github.com/studyforge/notesd/internal/notes"
	"github.com/studyforge/notesd/internal/secrets"
	"github.com/studyforge/notesd/internal/telemetry"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the notes continuation HTTP API until interrupted.

SIGINT or SIGTERM starts a graceful shutdown bounded by server.shutdown_timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

// runServe wires every dependency, serves until ctx is done and shuts down
// in reverse order.
func runServe(ctx context.Context, cfg *config.Config) error {
	// Telemetry starts with a local-only logger; everything after it also
	// logs through the OTEL bridge when telemetry is enabled.
	bootstrap, err := initLogger(cfg, "", nil)
	if err != nil {
		return err
	}
	defer func() { _ = bootstrap.Sync() }()

	tel, err := telemetry.New(ctx, telemetry.ConfigFrom(cfg.Telemetry, version), bootstrap.Underlying())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			bootstrap.Underlying().Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	logger, err := initLogger(cfg, "", tel.LoggerProvider())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zl := logger.Underlying()

	zl.Info("starting notesd",
		zap.String("version", version),
		zap.String("commit", gitCommit),
		zap.String("build_date", buildDate),
	)

	scrubber, err := secrets.New(nil)
	if err != nil {
		return fmt.Errorf("secret scrubber: %w", err)
	}

	engine, err := newEngine(cfg, scrubber, zl)
	if err != nil {
		return err
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			zl.Warn("closing store", zap.Error(err))
		}
	}()

	pub, err := openPublisher(cfg.Events, zl)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			zl.Warn("closing event publisher", zap.Error(err))
		}
	}()

	verifier, err := newVerifier(cfg.Auth, zl)
	if err != nil {
		return err
	}

	svc, err := notes.NewService(st, engine, pub, zl, notes.WithTracerProvider(tel.TracerProvider()))
	if err != nil {
		return err
	}

	srv, err := httpserver.NewServer(httpserver.Deps{
		Engine:        engine,
		Verifier:      verifier,
		Notes:         svc,
		Scrubber:      scrubber,
		MeterProvider: tel.MeterProvider(),
		Version:       version,
	}, zl, &httpserver.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		CoverageThreshold: cfg.Coverage.WarnThreshold,
	})
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		zl.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	zl.Info("notesd stopped")
	return nil
}
