package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Ollama calls a local Ollama server's chat endpoint.
type Ollama struct {
	url    string
	model  string
	client *http.Client
}

// NewOllama creates a client for the server at url. Local models are slow
// to load, so the timeout is longer than the hosted providers'.
func NewOllama(url, model string) *Ollama {
	return &Ollama{
		url:    strings.TrimRight(url, "/"),
		model:  model,
		client: &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature"`
		NumPredict  int     `json:"num_predict"`
	} `json:"options"`
}

type ollamaReply struct {
	Message         chatMessage `json:"message"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

func (o *Ollama) Complete(ctx context.Context, prompt string) (*Response, error) {
	req := ollamaRequest{
		Model:    o.model,
		Messages: append([]chatMessage{{Role: "system", Content: systemPrompt}}, userTurn(prompt)...),
	}
	req.Options.Temperature = temperature
	req.Options.NumPredict = maxTokens

	var reply ollamaReply
	if err := postJSON(ctx, o.client, "ollama", o.url+"/api/chat", nil, req, &reply); err != nil {
		return nil, err
	}
	return &Response{
		Content:    reply.Message.Content,
		Provider:   "ollama",
		TokensUsed: reply.PromptEvalCount + reply.EvalCount,
	}, nil
}
