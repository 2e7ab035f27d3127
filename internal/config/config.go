package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the chat gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Foundry project configuration. The Responses API endpoint is
	// {PROJECT_ENDPOINT}/openai/v1/responses.
	ProjectEndpoint string `envconfig:"PROJECT_ENDPOINT" required:"true"`
	AgentID         string `envconfig:"AGENT_ID" required:"true"`

	// Upper bound on one streamed upstream call, in seconds. Generous by
	// default since multi-step tool-using responses take a while.
	UpstreamTimeout int `envconfig:"UPSTREAM_TIMEOUT" default:"120"`

	// Allowed browser origins for cross-origin requests, comma separated
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`

	// Bearer credential acquisition. Either a pre-issued token (dev) or an
	// OAuth2 client-credentials grant against TOKEN_ENDPOINT.
	BearerToken       string `envconfig:"BEARER_TOKEN" default:""`
	TokenEndpoint     string `envconfig:"TOKEN_ENDPOINT" default:""`
	TokenClientID     string `envconfig:"TOKEN_CLIENT_ID" default:""`
	TokenClientSecret string `envconfig:"TOKEN_CLIENT_SECRET" default:""`
	TokenScope        string `envconfig:"TOKEN_SCOPE" default:"https://ai.azure.com/.default"`

	// Conversation state store backend: memory or redis
	ConversationStore string `envconfig:"CONVERSATION_STORE" default:"memory"`
	RedisAddr         string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword     string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB           int    `envconfig:"REDIS_DB" default:"0"`

	// Resilience configuration for the credential fetch path
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ProjectEndpoint == "" {
		return fmt.Errorf("PROJECT_ENDPOINT is required")
	}
	if c.AgentID == "" {
		return fmt.Errorf("AGENT_ID is required")
	}

	switch c.ConversationStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("CONVERSATION_STORE must be 'memory' or 'redis', got %q", c.ConversationStore)
	}

	if c.BearerToken == "" {
		if c.TokenEndpoint == "" || c.TokenClientID == "" || c.TokenClientSecret == "" {
			return fmt.Errorf("either BEARER_TOKEN or TOKEN_ENDPOINT, TOKEN_CLIENT_ID and TOKEN_CLIENT_SECRET must be set")
		}
	}

	return nil
}

// Origins returns the configured CORS origins as a list.
func (c *Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
