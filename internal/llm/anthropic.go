package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicAPI     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// Anthropic calls the Messages API.
type Anthropic struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{
		apiKey:   apiKey,
		model:    model,
		endpoint: anthropicAPI,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	System      string        `json:"system"`
	Messages    []chatMessage `json:"messages"`
}

type anthropicReply struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends the prompt as a single user turn. Text blocks in the
// reply are joined.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (*Response, error) {
	header := http.Header{}
	header.Set("x-api-key", a.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	var reply anthropicReply
	err := postJSON(ctx, a.client, "anthropic", a.endpoint, header, anthropicRequest{
		Model:       a.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      systemPrompt,
		Messages:    userTurn(prompt),
	}, &reply)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range reply.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &Response{
		Content:    text.String(),
		Provider:   "anthropic",
		TokensUsed: reply.Usage.InputTokens + reply.Usage.OutputTokens,
	}, nil
}
