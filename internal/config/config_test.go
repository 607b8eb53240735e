package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notesd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "gateway", cfg.Generation.Provider)
	assert.Equal(t, 90*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 5, cfg.Continuation.MaxAttempts)
	assert.Equal(t, 2000, cfg.Continuation.TailWindow)
	assert.Equal(t, 200000, cfg.Continuation.MaxNotesChars)
	assert.Equal(t, 100000, cfg.Continuation.MaxSourceChars)
	assert.Equal(t, 500, cfg.Continuation.MaxTitleChars)
	assert.Equal(t, 60, cfg.Coverage.WarnThreshold)
	assert.Equal(t, AuthModeStatic, cfg.Auth.Mode)
	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "notes.continued", cfg.Events.Subject)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Generation.APIKey.IsSet())
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.Equal(t, 15*time.Second, cfg.Telemetry.ExportInterval)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9191
  shutdown_timeout: 3s
generation:
  provider: openai
  model: gpt-test
  api_key: sk-from-file
continuation:
  max_attempts: 3
  tail_window: 500
auth:
  tokens:
    - alice:tok-a
store:
  driver: memory
`, 0o600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "openai", cfg.Generation.Provider)
	assert.Equal(t, "sk-from-file", cfg.Generation.APIKey.Value())
	assert.Equal(t, 3, cfg.Continuation.MaxAttempts)
	assert.Equal(t, 500, cfg.Continuation.TailWindow)
	assert.Equal(t, 200000, cfg.Continuation.MaxNotesChars)
	assert.Equal(t, []string{"alice:tok-a"}, cfg.Auth.Tokens)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  http_port: 9191\ngeneration:\n  api_key: from-file\n", 0o600)
	t.Setenv("NOTESD_SERVER_HTTP_PORT", "7070")
	t.Setenv("NOTESD_GENERATION_API_KEY", "from-env")
	t.Setenv("NOTESD_CONTINUATION_MAX_ATTEMPTS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Generation.APIKey.Value())
	assert.Equal(t, 2, cfg.Continuation.MaxAttempts)
}

func TestLoad_RejectsInsecurePermissions(t *testing.T) {
	path := writeConfig(t, "server:\n  http_port: 9191\n", 0o644)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, "continuation:\n  max_attempts: 50\n", 0o600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempts")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"NOTESD_SERVER_HTTP_PORT":         "server.http_port",
		"NOTESD_GENERATION_API_KEY":       "generation.api_key",
		"NOTESD_COVERAGE_WARN_THRESHOLD":  "coverage.warn_threshold",
		"NOTESD_CONTINUATION_TAIL_WINDOW": "continuation.tail_window",
		"NOTESD_TELEMETRY_SAMPLE_RATE":    "telemetry.sample_rate",
		"NOTESD_VERBOSE":                  "verbose",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "invalid server port"},
		{name: "unknown provider", mutate: func(c *Config) { c.Generation.Provider = "pigeon" }, wantErr: "unknown generation provider"},
		{name: "zero tail window", mutate: func(c *Config) { c.Continuation.TailWindow = -1 }, wantErr: "tail_window"},
		{name: "threshold above 100", mutate: func(c *Config) { c.Coverage.WarnThreshold = 101 }, wantErr: "warn_threshold"},
		{name: "bad token pair", mutate: func(c *Config) { c.Auth.Tokens = []string{"no-colon"} }, wantErr: "owner:token"},
		{name: "remote without endpoint", mutate: func(c *Config) { c.Auth.Mode = AuthModeRemote }, wantErr: "user_endpoint"},
		{name: "unknown auth mode", mutate: func(c *Config) { c.Auth.Mode = "none" }, wantErr: "unknown auth mode"},
		{name: "unknown store", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: "unknown store driver"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging format"},
		{name: "bad telemetry protocol", mutate: func(c *Config) { c.Telemetry.Protocol = "udp" }, wantErr: "telemetry protocol"},
		{name: "sample rate above 1", mutate: func(c *Config) { c.Telemetry.SampleRate = 1.5 }, wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_NeverSerialized(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "sk-live-123", s.Value())

	js, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(js))

	y, err := yaml.Marshal(map[string]Secret{"key": s})
	require.NoError(t, err)
	assert.NotContains(t, string(y), "sk-live-123")

	assert.Equal(t, "", Secret("").String())
}
