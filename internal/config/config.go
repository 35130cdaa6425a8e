package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the gateway server.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Content   ContentConfig
	Audit     AuditConfig
	Backend   BackendConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

// AuthConfig configures the credential store and token service.
type AuthConfig struct {
	// Enabled gates API-key authentication. Disabling is an explicit
	// operator override for local development only.
	Enabled       bool
	APIKeys       []string
	SigningSecret []byte
	TokenTTL      time.Duration
}

// RateLimitConfig configures per-identity fixed-window rate limiting.
type RateLimitConfig struct {
	Requests      int
	Window        time.Duration
	Backend       string // "memory" or "redis"
	RedisURL      string
	MaxIdentities int
}

// ContentConfig gates text and file inspection.
type ContentConfig struct {
	ValidationEnabled bool
}

// AuditConfig configures the optional Postgres audit trail.
type AuditConfig struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// BackendConfig selects and configures the generation backend.
type BackendConfig struct {
	Provider  string
	Timeout   time.Duration
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Ollama    OllamaConfig
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

var validProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"ollama":    true,
	"mock":      true,
}

var validRateLimitBackends = map[string]bool{
	"memory": true,
	"redis":  true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("GATEWAY_PORT", 8080),
			Env:  envString("GATEWAY_ENV", "development"),
		},
		Auth: AuthConfig{
			Enabled:       envBool("API_KEY_ENABLED", true),
			APIKeys:       splitKeys(os.Getenv("API_KEYS")),
			SigningSecret: []byte(os.Getenv("SIGNING_SECRET")),
			TokenTTL:      time.Duration(envInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Requests:      envInt("RATE_LIMIT_REQUESTS", 10),
			Window:        time.Duration(envInt("RATE_LIMIT_WINDOW_SECS", 60)) * time.Second,
			Backend:       envString("RATE_LIMIT_BACKEND", "memory"),
			RedisURL:      os.Getenv("REDIS_URL"),
			MaxIdentities: envInt("RATE_LIMIT_MAX_IDENTITIES", 10000),
		},
		Content: ContentConfig{
			ValidationEnabled: envBool("CONTENT_VALIDATION_ENABLED", true),
		},
		Audit: AuditConfig{
			DatabaseURL:     os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Backend: BackendConfig{
			Provider: envString("BACKEND_PROVIDER", "openai"),
			Timeout:  envDurationSecs("BACKEND_TIMEOUT_SECS", 120*time.Second),
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				Model:   envString("OPENAI_MODEL", "gpt-4o"),
			},
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.Enabled {
		if len(c.Auth.APIKeys) == 0 {
			return fmt.Errorf("API_KEYS is required when API_KEY_ENABLED is true")
		}
		if len(c.Auth.SigningSecret) == 0 {
			return fmt.Errorf("SIGNING_SECRET is required when API_KEY_ENABLED is true")
		}
		if len(c.Auth.SigningSecret) < 32 {
			return fmt.Errorf("SIGNING_SECRET must be at least 32 bytes, got %d", len(c.Auth.SigningSecret))
		}
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL_HOURS must be positive")
	}

	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimit.Requests)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECS must be positive")
	}
	if !validRateLimitBackends[c.RateLimit.Backend] {
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", c.RateLimit.Backend)
	}
	if c.RateLimit.Backend == "redis" && c.RateLimit.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_BACKEND is redis")
	}

	if !validProviders[c.Backend.Provider] {
		return fmt.Errorf("BACKEND_PROVIDER must be one of openai, anthropic, ollama, mock; got %q", c.Backend.Provider)
	}
	if c.Backend.Provider == "openai" && c.Backend.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when BACKEND_PROVIDER is openai")
	}
	if c.Backend.Provider == "anthropic" && c.Backend.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when BACKEND_PROVIDER is anthropic")
	}

	return nil
}

// splitKeys parses the comma-separated API_KEYS value, dropping empty entries.
func splitKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
