package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// Retrieval holds the similarity band and per-tier limits.
	RetrievalMinDistance     float64 `envconfig:"RETRIEVAL_MIN_DISTANCE" default:"0.01"`
	RetrievalMaxDistance     float64 `envconfig:"RETRIEVAL_MAX_DISTANCE" default:"0.5"`
	RetrievalSourceLimit     int     `envconfig:"RETRIEVAL_SOURCE_LIMIT" default:"4"`
	RetrievalSuggestionLimit int     `envconfig:"RETRIEVAL_SUGGESTION_LIMIT" default:"2"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`

	SentryDSN              string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment      string  `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
	SentryTracesSampleRate float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE" default:"1.0"`

	// Bootstrap: create initial organization, user, and API key on startup
	InitOrgName   string `envconfig:"INIT_ORG_NAME"`
	InitUserName  string `envconfig:"INIT_USER_NAME"`
	InitUserEmail string `envconfig:"INIT_USER_EMAIL"`
	InitAPIKey    string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("HIVEMESH", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	// envconfig treats a set-but-empty required variable as satisfied.
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("HIVEMESH_DATABASE_URL is required")
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
