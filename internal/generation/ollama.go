package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaClient runs completions against a local Ollama server through
// langchaingo. Ollama has no tool calling here, so a schema becomes an output
// contract appended to the prompt; answers that break it are malformed.
type OllamaClient struct {
	llm llms.Model
}

// NewOllamaClient creates a langchaingo-backed client. No credential is needed.
func NewOllamaClient(s Settings) (*OllamaClient, error) {
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	model := s.Model
	if model == "" {
		model = defaultOllamaModel
	}
	llm, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &OllamaClient{llm: llm}, nil
}

func (o *OllamaClient) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := flattenPrompt(req)

	out, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt, llms.WithTemperature(0.3))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &GatewayError{Kind: KindUnclassified, Message: truncate(err.Error(), maxErrorBody), Err: err}
	}

	if req.Schema == nil {
		return &Response{Raw: out}, nil
	}
	fields, err := decodeFields(out, req.Schema)
	if err != nil {
		return nil, err
	}
	return &Response{Fields: fields, Raw: out}, nil
}

// flattenPrompt renders role-tagged messages into one prompt, appending the
// output contract when a schema is present.
func flattenPrompt(req Request) string {
	var sb strings.Builder
	for _, m := range req.Messages {
		sb.WriteString(strings.ToUpper(string(m.Role)))
		sb.WriteString(":\n")
		sb.WriteString(m.Content)
		sb.WriteString("\n\n")
	}
	if req.Schema != nil {
		fmt.Fprintf(&sb, "Respond with a JSON object containing exactly one string property %q", req.Schema.Field)
		if req.Schema.FieldDescription != "" {
			fmt.Fprintf(&sb, " (%s)", req.Schema.FieldDescription)
		}
		sb.WriteString(" and nothing else.\n")
	}
	return sb.String()
}
