package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the coach service.
// Environment variables are automatically parsed from the ARBOR_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud-dev, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override driver
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Postgres Configuration
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// SQLite Configuration (local build target). Empty resolves to the
	// default local state directory.
	SQLitePath string `envconfig:"SQLITE_PATH" default:""`

	// Model endpoint configuration
	LLMBaseURL   string `envconfig:"LLM_BASE_URL" default:"https://api.anthropic.com"`
	LLMAPIKey    string `envconfig:"LLM_API_KEY" default:""`
	LLMModel     string `envconfig:"LLM_MODEL" default:"claude-sonnet-4-20250514"`
	LLMMaxTokens int    `envconfig:"LLM_MAX_TOKENS" default:"2048"`

	// Orchestrator limits
	MaxToolIterations int `envconfig:"MAX_TOOL_ITERATIONS" default:"5"`

	// Conversation compaction thresholds
	SummaryTriggerCount int `envconfig:"SUMMARY_TRIGGER_COUNT" default:"80"`
	SummaryRetainCount  int `envconfig:"SUMMARY_RETAIN_COUNT" default:"50"`

	// Analyzer worker cadence and cross-user fan-out
	AnalyzerIntervalSeconds int `envconfig:"ANALYZER_INTERVAL_SECONDS" default:"3600"`
	AnalyzerParallelism     int `envconfig:"ANALYZER_PARALLELISM" default:"4"`

	// Notification sweep cadence
	NotifyIntervalSeconds int `envconfig:"NOTIFY_INTERVAL_SECONDS" default:"900"`

	// Health checking cadence
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud-dev", "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN required for postgres driver")
	}
	if c.MaxToolIterations <= 0 {
		return fmt.Errorf("MAX_TOOL_ITERATIONS must be positive")
	}
	if c.SummaryRetainCount >= c.SummaryTriggerCount {
		return fmt.Errorf("SUMMARY_RETAIN_COUNT must be below SUMMARY_TRIGGER_COUNT")
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Environment variables should be prefixed with ARBOR_
// Example: ARBOR_HTTP_PORT, ARBOR_POSTGRES_DSN
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("ARBOR", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("llm_model", cfg.LLMModel).
		Int("max_tool_iterations", cfg.MaxToolIterations).
		Int("summary_trigger", cfg.SummaryTriggerCount).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		BuildTarget:             "local",
		DBDriver:                "sqlite",
		Environment:             EnvTesting,
		HTTPPort:                8080,
		SQLitePath:              ":memory:",
		LLMBaseURL:              "http://localhost:9999",
		LLMModel:                "test-model",
		LLMMaxTokens:            512,
		MaxToolIterations:       5,
		SummaryTriggerCount:     80,
		SummaryRetainCount:      50,
		AnalyzerIntervalSeconds: 3600,
		AnalyzerParallelism:     2,
		NotifyIntervalSeconds:   900,

		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 2,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
