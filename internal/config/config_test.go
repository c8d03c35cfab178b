package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr())
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.Model, "each provider picks its own default model")
	assert.Equal(t, 3, cfg.Rescue.MaxPerUser)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rememberme.yaml")
	yamlDoc := `
environment: staging
server:
  port: 9090
llm:
  provider: ollama
  ollama_model: llama3.2
rescue:
  interval: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	t.Setenv("PORT", "7070")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 7070, cfg.Server.Port, "env overrides yaml")
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.2", cfg.LLM.OllamaModel)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAIKey)
	assert.Equal(t, 250*time.Millisecond, cfg.Rescue.Interval)
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind, "defaults survive")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"auth mode", func(c *Config) { c.Auth.Mode = "basic" }},
		{"provider", func(c *Config) { c.LLM.Provider = "gpt" }},
		{"short key", func(c *Config) { c.Calendar.EncryptionKey = "abcd" }},
		{"non-hex key", func(c *Config) { c.Calendar.EncryptionKey = strings.Repeat("z", 64) }},
		{"negative rescue", func(c *Config) { c.Rescue.MaxPerUser = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCalendarKey(t *testing.T) {
	c := CalendarConfig{EncryptionKey: strings.Repeat("ab", 32)}
	key, err := c.Key()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}
