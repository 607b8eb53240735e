package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// maxResponseBody bounds how much of a gateway response is read.
const maxResponseBody = 4 << 20

// GatewayClient talks to an OpenAI-compatible chat-completions gateway. A
// schema is enforced by forcing a single function tool call whose arguments
// carry the field.
type GatewayClient struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []chatTool    `json:"tools,omitempty"`
	ToolChoice any           `json:"tool_choice,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// NewGatewayClient creates a gateway client.
func NewGatewayClient(s Settings) (*GatewayClient, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("%w: gateway api key missing", ErrNotConfigured)
	}
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = defaultGatewayBaseURL
	}
	model := s.Model
	if model == "" {
		model = defaultGatewayModel
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &GatewayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     s.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
	if s.RateLimit > 0 {
		burst := s.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(s.RateLimit), burst)
	}
	return c, nil
}

// Complete sends one chat-completions request. Hard failures come back as
// *GatewayError; an answer that lacks the requested field wraps
// ErrMalformedOutput. Context errors are returned unwrapped by kind.
func (c *GatewayClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// Wait refuses up front when the reservation would outlive the
			// deadline; the run is out of time either way.
			return nil, fmt.Errorf("rate limiter: %v: %w", err, context.DeadlineExceeded)
		}
	}

	body := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	if req.Schema != nil {
		body.Tools = []chatTool{{
			Type: "function",
			Function: chatFunction{
				Name:        req.Schema.Name,
				Description: req.Schema.Description,
				Parameters:  jsonSchema(req.Schema),
			},
		}}
		body.ToolChoice = map[string]any{
			"type":     "function",
			"function": map[string]string{"name": req.Schema.Name},
		}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &GatewayError{Kind: KindUnclassified, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &GatewayError{Kind: KindUnclassified, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedOutput)
	}
	msg := parsed.Choices[0].Message

	if req.Schema == nil {
		return &Response{Raw: msg.Content}, nil
	}

	raw := msg.Content
	for _, call := range msg.ToolCalls {
		if call.Function.Name == req.Schema.Name {
			raw = call.Function.Arguments
			break
		}
	}
	fields, err := decodeFields(raw, req.Schema)
	if err != nil {
		return nil, err
	}
	return &Response{Fields: fields, Raw: raw}, nil
}

// isContextError reports whether err came from context cancellation.
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
