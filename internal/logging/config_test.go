package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyforge/notesd/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())
}

func TestConfigFrom(t *testing.T) {
	cfg, err := ConfigFrom(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)

	_, err = ConfigFrom(config.LoggingConfig{Level: "shouting"})
	assert.Error(t, err)

	_, err = ConfigFrom(config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad output", mutate: func(c *Config) { c.Output = "file" }},
		{name: "zero tick", mutate: func(c *Config) { c.Sampling.Tick = 0 }},
		{name: "bad pattern", mutate: func(c *Config) { c.Redaction.Patterns = []string{"("} }},
		{name: "empty field value", mutate: func(c *Config) { c.Fields = map[string]string{"k": ""} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
