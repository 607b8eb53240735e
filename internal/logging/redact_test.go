package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyforge/notesd/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// encodedLogger writes JSON through the redacting encoder into a buffer.
func encodedLogger(t *testing.T) (*zap.Logger, *bytes.Buffer) {
	t.Helper()
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)
	var buf bytes.Buffer
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.DebugLevel)), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestRedactingEncoder_FieldNames(t *testing.T) {
	logger, buf := encodedLogger(t)

	logger.Info("login", zap.String("Authorization", "Bearer abc"), zap.String("user", "alice"))

	line := decodeLine(t, buf)
	assert.Equal(t, "[REDACTED]", line["Authorization"])
	assert.Equal(t, "alice", line["user"])
}

func TestRedactingEncoder_ValuePatterns(t *testing.T) {
	logger, buf := encodedLogger(t)

	logger.Info("upstream", zap.String("detail", "invalid key sk-abcdefghijklmnopqrstuv"))

	line := decodeLine(t, buf)
	assert.Equal(t, "[REDACTED:pattern]", line["detail"])
}

func TestRedactingEncoder_ChildFields(t *testing.T) {
	logger, buf := encodedLogger(t)

	logger.With(zap.String("token", "t-123")).Info("child")

	line := decodeLine(t, buf)
	assert.Equal(t, "[REDACTED]", line["token"])
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: false})
	require.NoError(t, err)
	var buf bytes.Buffer
	zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.InfoLevel)).Info("m", zap.String("token", "t-1"))

	assert.Equal(t, "t-1", decodeLine(t, &buf)["token"])
}

func TestSecretAndRedactedString(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "creds",
		Secret("api_key", config.Secret("sk-1234")),
		RedactedString("header", "Bearer xyz"),
	)

	tl.AssertField(t, "creds", "api_key", "[REDACTED:7]")
	tl.AssertField(t, "creds", "header", "[REDACTED:10]")
	tl.AssertNoSecrets(t)
}
