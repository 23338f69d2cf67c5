// Package config loads choir's typed configuration tree from a single
// human-edited choir.toml, with environment variables always winning over
// file values (spec §2 Ambient Stack).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root of choir's configuration tree. Each top-level field
// maps to one component's section in choir.toml.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	LLM       LLMConfig       `toml:"llm"`
	Research  ResearchConfig  `toml:"research"`
	Terminal  TerminalConfig  `toml:"terminal"`
	Conductor ConductorConfig `toml:"conductor"`
	Logging   LoggingConfig   `toml:"logging"`
	Memory    MemoryConfig    `toml:"memory"`
}

func getenv(name string) string {
	return os.Getenv(name)
}

// ServerConfig configures the in-process HTTP/metrics surface (spec §6,
// Out-of-scope: no production server is implemented, but the listen
// addresses are still configurable for the CLI's `serve` command).
type ServerConfig struct {
	Host        string `toml:"host"`
	HTTPPort    int    `toml:"http_port"`
	MetricsPort int    `toml:"metrics_port"`
}

// DatabaseConfig configures the Event Store's Postgres backend. URL empty
// selects the in-memory Event Store. The Memory Store uses SQLite
// (MemoryConfig.SQLitePath) and does not read this section.
type DatabaseConfig struct {
	URL             string        `toml:"url"`
	MaxConnections  int           `toml:"max_connections"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

// LLMConfig configures the model registry's three providers and the
// fast/cheap/strong/opus model routes.
type LLMConfig struct {
	AnthropicAPIKey        string `toml:"anthropic_api_key"`
	OpenAIAPIKey           string `toml:"openai_api_key"`
	BedrockRegion          string `toml:"bedrock_region"`
	BedrockAccessKeyID     string `toml:"bedrock_access_key_id"`
	BedrockSecretAccessKey string `toml:"bedrock_secret_access_key"`
	FastModel              string `toml:"fast_model"`
	CheapModel             string `toml:"cheap_model"`
	StrongModel            string `toml:"strong_model"`
	OpusModel              string `toml:"opus_model"`
}

// ResearchConfig configures the Researcher Worker's provider clients and
// shared HTTP client resilience.
type ResearchConfig struct {
	TavilyAPIKey  string  `toml:"tavily_api_key"`
	BraveAPIKey   string  `toml:"brave_api_key"`
	ExaAPIKey     string  `toml:"exa_api_key"`
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// TerminalConfig configures the Terminal Worker's sandbox root and default
// step bounds.
type TerminalConfig struct {
	SandboxRoot           string `toml:"sandbox_root"`
	DefaultMaxSteps       int    `toml:"default_max_steps"`
	DefaultTimeoutSeconds int    `toml:"default_timeout_seconds"`
}

// ConductorConfig configures report placement and the retention sweep.
type ConductorConfig struct {
	ReportsRoot       string        `toml:"reports_root"`
	RetentionTTL      time.Duration `toml:"retention_ttl"`
	RetentionSchedule string        `toml:"retention_schedule"`
}

// LoggingConfig configures the slog-based structured logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MemoryConfig configures the Memory Store's embedding backend.
type MemoryConfig struct {
	SQLitePath string `toml:"sqlite_path"`
	Stub       bool   `toml:"stub"`
}

// Load parses path as TOML into a Config, applies environment-variable
// overrides, then defaults. An empty path skips the file read and starts
// from the zero Config before overrides/defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 25
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Research.RatePerSecond == 0 {
		cfg.Research.RatePerSecond = 5
	}
	if cfg.Research.Burst == 0 {
		cfg.Research.Burst = 5
	}
	if cfg.Terminal.DefaultMaxSteps == 0 {
		cfg.Terminal.DefaultMaxSteps = 4
	}
	if cfg.Terminal.DefaultTimeoutSeconds == 0 {
		cfg.Terminal.DefaultTimeoutSeconds = 60
	}
	if cfg.Conductor.ReportsRoot == "" {
		cfg.Conductor.ReportsRoot = "."
	}
	if cfg.Conductor.RetentionTTL == 0 {
		cfg.Conductor.RetentionTTL = 24 * time.Hour
	}
	if cfg.Conductor.RetentionSchedule == "" {
		cfg.Conductor.RetentionSchedule = "@every 1h"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// envOverride applies value to *dst if the named environment variable is
// set and non-blank.
func envOverride(dst *string, name string) {
	if v := strings.TrimSpace(getenv(name)); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, name string) {
	if v := strings.TrimSpace(getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envOverrideDuration(dst *time.Duration, name string) {
	if v := strings.TrimSpace(getenv(name)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	envOverride(&cfg.Server.Host, "CHOIR_HOST")
	envOverrideInt(&cfg.Server.HTTPPort, "CHOIR_HTTP_PORT")
	envOverrideInt(&cfg.Server.MetricsPort, "CHOIR_METRICS_PORT")

	envOverride(&cfg.Database.URL, "CHOIR_DATABASE_URL")
	envOverrideInt(&cfg.Database.MaxConnections, "CHOIR_DATABASE_MAX_CONNECTIONS")

	envOverride(&cfg.LLM.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLM.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.LLM.BedrockRegion, "CHOIR_BEDROCK_REGION")
	envOverride(&cfg.LLM.BedrockAccessKeyID, "AWS_ACCESS_KEY_ID")
	envOverride(&cfg.LLM.BedrockSecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	envOverride(&cfg.LLM.FastModel, "CHOIR_LLM_FAST_MODEL")
	envOverride(&cfg.LLM.CheapModel, "CHOIR_LLM_CHEAP_MODEL")
	envOverride(&cfg.LLM.StrongModel, "CHOIR_LLM_STRONG_MODEL")
	envOverride(&cfg.LLM.OpusModel, "CHOIR_LLM_OPUS_MODEL")

	envOverride(&cfg.Research.TavilyAPIKey, "TAVILY_API_KEY")
	envOverride(&cfg.Research.BraveAPIKey, "BRAVE_API_KEY")
	envOverride(&cfg.Research.ExaAPIKey, "EXA_API_KEY")

	envOverride(&cfg.Terminal.SandboxRoot, "CHOIR_TERMINAL_SANDBOX_ROOT")
	envOverrideInt(&cfg.Terminal.DefaultMaxSteps, "CHOIR_TERMINAL_MAX_STEPS")
	envOverrideInt(&cfg.Terminal.DefaultTimeoutSeconds, "CHOIR_TERMINAL_TIMEOUT_SECONDS")

	envOverride(&cfg.Conductor.ReportsRoot, "CHOIR_CONDUCTOR_REPORTS_ROOT")
	envOverrideDuration(&cfg.Conductor.RetentionTTL, "CHOIR_CONDUCTOR_RETENTION_TTL")
	envOverride(&cfg.Conductor.RetentionSchedule, "CHOIR_CONDUCTOR_RETENTION_SCHEDULE")

	envOverride(&cfg.Logging.Level, "CHOIR_LOG_LEVEL")
	envOverride(&cfg.Logging.Format, "CHOIR_LOG_FORMAT")

	envOverride(&cfg.Memory.SQLitePath, "CHOIR_MEMORY_SQLITE_PATH")
	if strings.TrimSpace(getenv("CHOIR_MEMORY_STUB")) == "1" {
		cfg.Memory.Stub = true
	}
}
