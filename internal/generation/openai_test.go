package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOpenAIClient(Settings{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "gpt-test"})
	require.NoError(t, err)
	return client
}

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-test",
		"choices": []any{
			map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	var body map[string]any
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion(`{"continuation":"tail"}`))
	})

	resp, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleSystem, Content: "rules"}, {Role: RoleUser, Content: "data"}},
		Schema:   testSchema,
	})
	require.NoError(t, err)

	got, err := resp.Field("continuation")
	require.NoError(t, err)
	assert.Equal(t, "tail", got)

	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok, "response_format should be sent")
	assert.Equal(t, "json_schema", format["type"])
}

func TestOpenAIClient_StatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{status: http.StatusTooManyRequests, sentinel: ErrRateLimited},
		{status: http.StatusPaymentRequired, sentinel: ErrQuotaExceeded},
		{status: http.StatusInternalServerError, sentinel: ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
			})

			_, err := client.Complete(context.Background(), Request{Schema: testSchema})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var gwErr *GatewayError
			require.True(t, errors.As(err, &gwErr))
			assert.Equal(t, tt.status, gwErr.StatusCode)
		})
	}
}

func TestOpenAIClient_MalformedContent(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion("I cannot comply"))
	})

	_, err := client.Complete(context.Background(), Request{Schema: testSchema})
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestNew_Providers(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  error
		wantType any
	}{
		{name: "gateway default", settings: Settings{APIKey: "k"}, wantType: &GatewayClient{}},
		{name: "gateway without key", settings: Settings{Provider: ProviderGateway}, wantErr: ErrNotConfigured},
		{name: "openai", settings: Settings{Provider: ProviderOpenAI, APIKey: "k"}, wantType: &OpenAIClient{}},
		{name: "openai without key", settings: Settings{Provider: ProviderOpenAI}, wantErr: ErrNotConfigured},
		{name: "ollama needs no key", settings: Settings{Provider: ProviderOllama}, wantType: &OllamaClient{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.settings)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, client)
		})
	}

	_, err := New(Settings{Provider: "carrier-pigeon", APIKey: "k"})
	assert.Error(t, err)
}
