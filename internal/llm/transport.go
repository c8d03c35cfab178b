package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rememberme/rememberme/internal/apperr"
)

// Generation settings shared by every provider.
const (
	systemPrompt = "You help one person stay close to the people in their life. Be warm, specific and brief."
	maxTokens    = 2048
	temperature  = 0.3
)

// maxErrorBody caps how much of a failed reply is kept on the error.
const maxErrorBody = 4 << 10

// chatMessage is one turn in the role/content shape the Anthropic and
// Ollama chat endpoints both accept.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func userTurn(prompt string) []chatMessage {
	return []chatMessage{{Role: "user", Content: prompt}}
}

// StatusError is a non-200 reply from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api status %d: %s", e.Provider, e.Code, e.Body)
}

// providerError classifies a failed reply. Throttling and server faults
// are unavailable; anything else is a problem on our side.
func providerError(provider string, code int, body string) error {
	se := &StatusError{Provider: provider, Code: code, Body: body}
	switch {
	case code == http.StatusTooManyRequests || code >= 500:
		return apperr.Unavailable(provider+" is temporarily unavailable", se)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperr.Internal(provider+" rejected the API key", se)
	default:
		return apperr.Internal(provider+" rejected the request", se)
	}
}

// transportError reports a request that never got a reply. A cancelled
// caller is passed through untouched.
func transportError(ctx context.Context, provider string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return apperr.Unavailable(provider+" is unreachable", err)
}

// postJSON sends in as JSON and decodes a 200 reply into out.
func postJSON(ctx context.Context, hc *http.Client, provider, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", provider, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return transportError(ctx, provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return providerError(provider, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Unavailable(provider+" returned a malformed reply", err)
	}
	return nil
}
