// Package generation is the boundary to the external text-completion service.
//
// The rest of notesd treats the model as an opaque capability: it sends
// role-tagged messages, optionally constrained to a single structured string
// field, and gets back either that field or a classified error. Swapping the
// provider never changes how callers drive it.
package generation

import (
	"context"
	"fmt"
	"time"
)

// Role tags a message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one role-tagged prompt message.
type Message struct {
	Role    Role
	Content string
}

// Schema constrains the output to a single required string field.
type Schema struct {
	// Name identifies the output shape to the provider (tool or schema name).
	Name        string
	Description string
	// Field is the one string property the output must contain.
	Field            string
	FieldDescription string
}

// Request is a single completion call.
type Request struct {
	Messages []Message
	// Schema is optional; without it the provider returns free text in Raw.
	Schema *Schema
}

// Response is what the provider produced.
type Response struct {
	Fields map[string]string
	Raw    string
}

// Field returns the named structured field.
func (r *Response) Field(name string) (string, error) {
	if r == nil || r.Fields == nil {
		return "", fmt.Errorf("%w: no structured output", ErrMalformedOutput)
	}
	v, ok := r.Fields[name]
	if !ok {
		return "", fmt.Errorf("%w: missing field %q", ErrMalformedOutput, name)
	}
	return v, nil
}

// Client issues completion requests.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Providers.
const (
	ProviderGateway = "gateway"
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
)

const (
	defaultGatewayBaseURL = "https://api.openai.com/v1"
	defaultGatewayModel   = "gpt-4o-mini"
	defaultOllamaBaseURL  = "http://localhost:11434"
	defaultOllamaModel    = "llama3.1"
	defaultTimeout        = 90 * time.Second
)

// Settings configures a provider.
type Settings struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration
	// RateLimit is the client-side request rate per second; 0 disables it.
	RateLimit float64
	Burst     int
}

// New builds the client for settings.Provider. It returns ErrNotConfigured
// when a provider that needs a credential has none.
func New(s Settings) (Client, error) {
	if s.Timeout <= 0 {
		s.Timeout = defaultTimeout
	}
	switch s.Provider {
	case "", ProviderGateway:
		if s.APIKey == "" {
			return nil, fmt.Errorf("%w: gateway api key missing", ErrNotConfigured)
		}
		return NewGatewayClient(s)
	case ProviderOpenAI:
		if s.APIKey == "" {
			return nil, fmt.Errorf("%w: openai api key missing", ErrNotConfigured)
		}
		return NewOpenAIClient(s)
	case ProviderOllama:
		return NewOllamaClient(s)
	default:
		return nil, fmt.Errorf("generation provider %q not supported", s.Provider)
	}
}
