package generation

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client with the official openai-go SDK. Schemas are
// sent as a strict json_schema response format.
type OpenAIClient struct {
	model  string
	client openai.Client
}

// NewOpenAIClient creates an SDK-backed client. SDK retries are disabled:
// rate limits and quota errors must reach the caller on the first failure.
func NewOpenAIClient(s Settings) (*OpenAIClient, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key missing", ErrNotConfigured)
	}
	model := s.Model
	if model == "" {
		model = defaultGatewayModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithMaxRetries(0),
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	if s.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(s.Timeout))
	}
	return &OpenAIClient{model: model, client: openai.NewClient(opts...)}, nil
}

func (o *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Schema.Name,
					Description: openai.String(req.Schema.Description),
					Schema:      jsonSchema(req.Schema),
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedOutput)
	}
	content := resp.Choices[0].Message.Content

	if req.Schema == nil {
		return &Response{Raw: content}, nil
	}
	fields, err := decodeFields(content, req.Schema)
	if err != nil {
		return nil, err
	}
	return &Response{Fields: fields, Raw: content}, nil
}

func classifyOpenAIError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && isContextError(err) {
		return ctxErr
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &GatewayError{
			Kind:       KindForStatus(apiErr.StatusCode),
			StatusCode: apiErr.StatusCode,
			Message:    truncate(apiErr.Message, maxErrorBody),
			Err:        err,
		}
	}
	return &GatewayError{Kind: KindUnclassified, Message: "request failed", Err: err}
}
