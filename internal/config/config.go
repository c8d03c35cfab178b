package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all rememberme configuration.
// Precedence: Default() < YAML file < environment.
type Config struct {
	Environment string          `yaml:"environment" env:"REMEMBER_ENV"`
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Auth        AuthConfig      `yaml:"auth"`
	LLM         LLMConfig       `yaml:"llm"`
	Calendar    CalendarConfig  `yaml:"calendar"`
	Rescue      RescueConfig    `yaml:"rescue"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig controls the HTTP listener and browser access.
type ServerConfig struct {
	Bind           string   `yaml:"bind" env:"REMEMBER_BIND"`
	Port           int      `yaml:"port" env:"PORT"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"REMEMBER_ALLOWED_ORIGINS" envSeparator:","`
	PublicURL      string   `yaml:"public_url" env:"REMEMBER_PUBLIC_URL"`
}

// DatabaseConfig locates the SQLite file. An empty path means the
// per-user default.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"REMEMBER_DB"`
}

// AuthConfig selects how bearer tokens are verified and holds the shared
// secret for scheduled jobs.
type AuthConfig struct {
	Mode        string `yaml:"mode" env:"REMEMBER_AUTH_MODE"` // "jwt" or "supabase"
	JWTSecret   string `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET"`
	SupabaseURL string `yaml:"supabase_url" env:"SUPABASE_URL"`
	SupabaseKey string `yaml:"supabase_key" env:"SUPABASE_SERVICE_ROLE_KEY"`
	CronSecret  string `yaml:"cron_secret" env:"CRON_SECRET"`
}

// LLMConfig picks the AI provider. An empty Model lets the provider
// choose its own default.
type LLMConfig struct {
	Provider      string `yaml:"provider" env:"REMEMBER_LLM_PROVIDER"` // "openai", "anthropic", "ollama"
	Model         string `yaml:"model" env:"REMEMBER_LLM_MODEL"`
	OpenAIKey     string `yaml:"openai_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	AnthropicKey  string `yaml:"anthropic_key" env:"ANTHROPIC_API_KEY"`
	OllamaURL     string `yaml:"ollama_url" env:"OLLAMA_URL"`
	OllamaModel   string `yaml:"ollama_model" env:"OLLAMA_MODEL"`
}

// CalendarConfig holds the OAuth apps and the key that seals stored
// calendar tokens.
type CalendarConfig struct {
	EncryptionKey         string `yaml:"encryption_key" env:"CALENDAR_ENCRYPTION_KEY"` // 64 hex chars
	StateSecret           string `yaml:"state_secret" env:"CALENDAR_STATE_SECRET"`
	GoogleClientID        string `yaml:"google_client_id" env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `yaml:"google_client_secret" env:"GOOGLE_CLIENT_SECRET"`
	MicrosoftClientID     string `yaml:"microsoft_client_id" env:"MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `yaml:"microsoft_client_secret" env:"MICROSOFT_CLIENT_SECRET"`
	MicrosoftTenant       string `yaml:"microsoft_tenant" env:"MICROSOFT_TENANT"`
}

// RescueConfig tunes the weekly rescue job.
type RescueConfig struct {
	Enabled    bool          `yaml:"enabled" env:"REMEMBER_RESCUE_ENABLED"`
	Interval   time.Duration `yaml:"interval" env:"REMEMBER_RESCUE_INTERVAL"` // pause between AI calls
	MaxPerUser int           `yaml:"max_per_user" env:"REMEMBER_RESCUE_MAX_PER_USER"`
}

// TelemetryConfig enables OTLP trace export when an endpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Bind:           "127.0.0.1",
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000"},
			PublicURL:      "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Auth: AuthConfig{
			Mode: "jwt",
		},
		LLM: LLMConfig{
			Provider: "openai",
		},
		Calendar: CalendarConfig{
			MicrosoftTenant: "common",
		},
		Rescue: RescueConfig{
			Interval:   time.Second,
			MaxPerUser: 3,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "rememberme",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch c.Auth.Mode {
	case "jwt", "supabase":
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	switch c.LLM.Provider {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLM.Provider)
	}
	if c.Calendar.EncryptionKey != "" {
		if _, err := c.Calendar.Key(); err != nil {
			return err
		}
	}
	if c.Rescue.MaxPerUser < 0 {
		return fmt.Errorf("rescue max_per_user must not be negative")
	}
	return nil
}

// Key decodes the AES-256 calendar token key.
func (c CalendarConfig) Key() ([]byte, error) {
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("calendar encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("calendar encryption key must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
