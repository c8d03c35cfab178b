package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rememberme/rememberme/internal/apperr"
)

// OpenAI calls the Chat Completions API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI client. An empty baseURL uses the public API.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Complete sends a prompt as a single user message.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (*Response, error) {
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, providerError("openai", apiErr.StatusCode, apiErr.Message)
		}
		return nil, transportError(ctx, "openai", err)
	}
	if len(completion.Choices) == 0 {
		return nil, apperr.Unavailable("openai returned no choices", nil)
	}

	return &Response{
		Content:    completion.Choices[0].Message.Content,
		Provider:   "openai",
		TokensUsed: int(completion.Usage.TotalTokens),
	}, nil
}
