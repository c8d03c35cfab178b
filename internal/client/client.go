// Package client talks to a running rememberme server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rememberme/rememberme/internal/engine"
)

const (
	defaultServerURL = "http://127.0.0.1:8080"
	httpTimeout      = 5 * time.Second
	// The cron rescue waits on AI calls, so it gets far longer.
	rescueTimeout = 30 * time.Minute
)

// Client talks to the rememberme server.
type Client struct {
	http       *http.Client
	serverURL  string
	cronSecret string
}

// New creates a client. An empty url falls back to REMEMBER_URL and then
// http://127.0.0.1:8080.
func New(url, cronSecret string) *Client {
	if url == "" {
		url = os.Getenv("REMEMBER_URL")
	}
	if url == "" {
		url = defaultServerURL
	}
	return &Client{
		http:       &http.Client{Timeout: httpTimeout},
		serverURL:  url,
		cronSecret: cronSecret,
	}
}

// Health is the server's health report.
type Health struct {
	Status   string  `json:"status"`
	Version  string  `json:"version"`
	Uptime   float64 `json:"uptime"`
	DB       bool    `json:"db"`
	AI       bool    `json:"ai"`
	Calendar bool    `json:"calendar"`
	// AIBreaker is the circuit breaker state, empty without a provider.
	AIBreaker string `json:"ai_breaker,omitempty"`
}

// Health fetches /api/health. A degraded server still returns its report
// alongside the error.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	err := c.do(ctx, c.http, http.MethodGet, "/api/health", "", &h)
	if h.Status == "" {
		return nil, err
	}
	return &h, err
}

// Healthy checks if the server is reachable and its database is up.
func (c *Client) Healthy(ctx context.Context) bool {
	h, err := c.Health(ctx)
	return err == nil && h.Status == "ok"
}

// TriggerRescue runs the weekly rescue on the server and returns its report.
func (c *Client) TriggerRescue(ctx context.Context) (*engine.RescueReport, error) {
	if c.cronSecret == "" {
		return nil, fmt.Errorf("cron secret is not set")
	}
	long := &http.Client{Timeout: rescueTimeout, Transport: c.http.Transport}
	var report engine.RescueReport
	if err := c.do(ctx, long, http.MethodPost, "/api/cron/weekly-rescue", c.cronSecret, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if out != nil && len(data) > 0 {
		if jerr := json.Unmarshal(data, out); jerr != nil && resp.StatusCode < 400 {
			return fmt.Errorf("decode response %s: %w", path, jerr)
		}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return nil
}
