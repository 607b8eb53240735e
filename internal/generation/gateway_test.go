package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = &Schema{
	Name:             "continue_notes",
	Description:      "Return the continuation of the notes",
	Field:            "continuation",
	FieldDescription: "markdown that continues the notes",
}

func toolCallResponse(args string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []any{
						map[string]any{
							"type": "function",
							"function": map[string]any{
								"name":      "continue_notes",
								"arguments": args,
							},
						},
					},
				},
			},
		},
	}
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GatewayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewGatewayClient(Settings{
		BaseURL: srv.URL + "/v1/",
		Model:   "test-model",
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestGatewayClient_Complete(t *testing.T) {
	var captured chatRequest
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toolCallResponse(`{"continuation":"more text\n\nEND_OF_NOTES"}`))
	})

	resp, err := client.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "system rules"},
			{Role: RoleUser, Content: "payload"},
		},
		Schema: testSchema,
	})
	require.NoError(t, err)

	got, err := resp.Field("continuation")
	require.NoError(t, err)
	assert.Equal(t, "more text\n\nEND_OF_NOTES", got)

	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "continue_notes", captured.Tools[0].Function.Name)
	assert.Equal(t, []any{"continuation"}, captured.Tools[0].Function.Parameters["required"])
	assert.NotNil(t, captured.ToolChoice)
}

func TestGatewayClient_StatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		kind     Kind
		sentinel error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, kind: KindRateLimited, sentinel: ErrRateLimited},
		{name: "payment required", status: http.StatusPaymentRequired, kind: KindQuotaExceeded, sentinel: ErrQuotaExceeded},
		{name: "server error", status: http.StatusInternalServerError, kind: KindUnclassified, sentinel: ErrUnclassified},
		{name: "bad request", status: http.StatusBadRequest, kind: KindUnclassified, sentinel: ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"upstream says no"}}`, tt.status)
			})

			_, err := client.Complete(context.Background(), Request{Schema: testSchema})
			require.Error(t, err)

			var gwErr *GatewayError
			require.True(t, errors.As(err, &gwErr))
			assert.Equal(t, tt.kind, gwErr.Kind)
			assert.Equal(t, tt.status, gwErr.StatusCode)
			assert.Contains(t, gwErr.Message, "upstream says no")
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestGatewayClient_MalformedOutput(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{name: "no choices", body: map[string]any{"choices": []any{}}},
		{name: "arguments not json", body: toolCallResponse(`not json`)},
		{name: "missing field", body: toolCallResponse(`{"other":"x"}`)},
		{name: "field not a string", body: toolCallResponse(`{"continuation":42}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(tt.body)
			})

			_, err := client.Complete(context.Background(), Request{Schema: testSchema})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedOutput)

			var gwErr *GatewayError
			assert.False(t, errors.As(err, &gwErr), "malformed output is not a gateway error")
		})
	}
}

func TestGatewayClient_FreeTextWithoutSchema(t *testing.T) {
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, req.Tools)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "plain answer"}}},
		})
	})

	resp, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "plain answer", resp.Raw)
	assert.Nil(t, resp.Fields)
}

func TestGatewayClient_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	// Registered after the server, so it runs before srv.Close.
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, Request{Schema: testSchema})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGatewayClient_RateLimiterHonoursContext(t *testing.T) {
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(toolCallResponse(`{"continuation":"x"}`))
	})
	client.limiter = newTestLimiter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, Request{Schema: testSchema})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGatewayClient_RateLimiterDeadlineIsCancellation(t *testing.T) {
	var calls atomic.Int32
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(toolCallResponse(`{"continuation":"x"}`))
	})
	client.limiter = newTestLimiter()

	// The next token is far beyond the deadline, so Wait fails at once while
	// the context itself is still live.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	_, err := client.Complete(ctx, Request{Schema: testSchema})
	require.Error(t, err)
	assert.NoError(t, ctx.Err())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, isContextError(err))

	var gwErr *GatewayError
	assert.False(t, errors.As(err, &gwErr))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestGatewayClient_BoundsResponseBody(t *testing.T) {
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		// A valid answer that only starts after the read limit.
		_, _ = w.Write([]byte(strings.Repeat(" ", maxResponseBody)))
		_ = json.NewEncoder(w).Encode(toolCallResponse(`{"continuation":"x"}`))
	})

	_, err := client.Complete(context.Background(), Request{Schema: testSchema})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestNewGatewayClient_RequiresKey(t *testing.T) {
	_, err := NewGatewayClient(Settings{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
