package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// instrumentationName scopes records sent through the OTEL bridge.
const instrumentationName = "github.com/studyforge/notesd"

// newCore builds the local output core and, when otelProvider is set, tees
// it with an OTEL bridge core at the same minimum level. Sampling wraps both.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
	}
	out := zapcore.Lock(os.Stdout)
	if cfg.Output == "stderr" {
		out = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(encoder, out, cfg.Level)
	if otelProvider != nil {
		bridge := otelzap.NewCore(instrumentationName, otelzap.WithLoggerProvider(otelProvider))
		core = zapcore.NewTee(core, &levelFilterCore{Core: bridge, min: cfg.Level, max: zapcore.FatalLevel})
	}
	return newSampledCore(core, cfg.Sampling), nil
}
