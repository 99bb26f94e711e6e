package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the environment driven configuration for the conversation
// service.
type Config struct {
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"conversation-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8084"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	DatabasePath   string `env:"CONVERSATION_DB_PATH" envDefault:"data/conversations.db"`
	AttachmentPath string `env:"CONVERSATION_ATTACHMENT_PATH" envDefault:""`

	AuthEnabled  bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthJWKSURL  string `env:"AUTH_JWKS_URL" envDefault:""`
	AuthIssuer   string `env:"AUTH_ISSUER" envDefault:""`
	AuthAudience string `env:"AUTH_AUDIENCE" envDefault:""`

	LLMAPIURL        string `env:"LLM_API_URL" envDefault:"http://localhost:8080"`
	LLMAPIKey        string `env:"LLM_API_KEY" envDefault:""`
	LLMModel         string `env:"LLM_MODEL" envDefault:"jan-nano"`
	LLMSystemPrompt  string `env:"LLM_SYSTEM_PROMPT" envDefault:""`
	LLMContextLength int    `env:"LLM_CONTEXT_LENGTH" envDefault:"128000"`

	MaintenanceEnabled    bool          `env:"MAINTENANCE_ENABLED" envDefault:"false"`
	MaintenanceInterval   time.Duration `env:"MAINTENANCE_INTERVAL" envDefault:"15m"`
	MaintenanceRepair     bool          `env:"MAINTENANCE_AUTO_REPAIR" envDefault:"false"`
	MaintenanceBatch      int           `env:"MAINTENANCE_BATCH_SIZE" envDefault:"50"`
	MaintenanceWebhookURL string        `env:"MAINTENANCE_WEBHOOK_URL" envDefault:""`
	RepairStepBudget      int           `env:"REPAIR_STEP_BUDGET" envDefault:"500"`
}

// Load parses environment variables into Config. A local .env file is
// applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = 15 * time.Minute
	}
	if cfg.MaintenanceBatch <= 0 {
		cfg.MaintenanceBatch = 50
	}
	if cfg.RepairStepBudget <= 0 {
		cfg.RepairStepBudget = 500
	}
	if cfg.LLMContextLength <= 0 {
		cfg.LLMContextLength = 128000
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
