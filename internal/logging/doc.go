// Package logging provides structured logging for notesd.
//
// Logger wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - automatic context fields (trace_id, request.id, owner.id, document.id)
//   - encoder-level secret redaction
//   - level-aware sampling (errors never sampled)
//   - an optional OTEL log bridge (otelzap) fed by the telemetry logger provider
//
// Create a logger from config:
//
//	cfg, err := logging.ConfigFrom(appCfg.Logging)
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithRequestID(ctx, id)
//	ctx = logging.WithOwnerID(ctx, owner)
//	logger.Info(ctx, "continuation finished", zap.Int("attempts", n))
//
// Packages that only need a *zap.Logger take logger.Underlying() and add
// context fields with ContextFields(ctx).
//
// Tests use TestLogger:
//
//	tl := logging.NewTestLogger()
//	tl.AssertLogged(t, zapcore.InfoLevel, "continuation finished")
//	tl.AssertNoSecrets(t)
package logging
