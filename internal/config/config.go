package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a nexus gateway process.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	CORS          CORSConfig          `yaml:"cors"`
	Session       SessionConfig       `yaml:"session"`
	LLM           LLMConfig           `yaml:"llm"`
	Tools         ToolsConfig         `yaml:"tools"`
	Checkpoint    CheckpointConfig    `yaml:"checkpoint"`
	Cron          CronConfig          `yaml:"cron"`
	Logging       LoggingConfig       `yaml:"logging"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	RAG           RAGConfig           `yaml:"rag"`
}

// ServerConfig controls the HTTP/WS listener.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// DatabaseConfig controls the durable-tier connection for sessions and
// checkpoints. DSN is assembled from components when URL is unset, per the
// gateway's "database enable flag and DSN components" configuration shape.
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN returns the connection string, preferring an explicit URL over the
// component fields.
func (d DatabaseConfig) DSN() string {
	if strings.TrimSpace(d.URL) != "" {
		return d.URL
	}
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, sslMode)
}

// AuthConfig holds the SSE/WS API keys checked by middleware outside the
// core orchestrator.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
	Header  string   `yaml:"header"`
}

// CORSConfig controls the browser-facing allow-list.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

// SessionConfig controls session TTL and the in-memory tier's bound, per
// the gateway's "session TTL and memory limit" configuration shape.
type SessionConfig struct {
	TTL         time.Duration `yaml:"ttl"`
	MemoryLimit int           `yaml:"memory_limit"`
}

// CheckpointConfig selects the checkpoint backend.
type CheckpointConfig struct {
	Backend string `yaml:"backend"` // memory | postgres
	DSN     string `yaml:"dsn"`
}

// ToolsConfig controls tool execution limits.
type ToolsConfig struct {
	Execution ToolExecutionConfig `yaml:"execution"`
}

// ToolExecutionConfig controls runtime tool execution behavior.
type ToolExecutionConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	MaxToolCalls  int           `yaml:"max_tool_calls"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TranscriptionConfig configures the STT collaborator the conversation
// façade consumes.
type TranscriptionConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

// Load reads and parses a config file, applying env overrides and defaults,
// then validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

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

	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-API-Key"
	}

	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	if cfg.Session.MemoryLimit == 0 {
		cfg.Session.MemoryLimit = 200
	}

	if cfg.Checkpoint.Backend == "" {
		cfg.Checkpoint.Backend = "memory"
	}

	if cfg.Tools.Execution.MaxIterations == 0 {
		cfg.Tools.Execution.MaxIterations = 10
	}
	if cfg.Tools.Execution.Timeout == 0 {
		cfg.Tools.Execution.Timeout = 10 * time.Second
	}
	if cfg.Tools.Execution.MaxAttempts == 0 {
		cfg.Tools.Execution.MaxAttempts = 1
	}

	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	applyRAGDefaults(&cfg.RAG)
}

func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("NEXUS_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("NEXUS_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("NEXUS_METRICS_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("DATABASE_URL")); value != "" {
		cfg.Database.URL = value
	}
	if value := strings.TrimSpace(os.Getenv("NEXUS_SESSION_TTL")); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			cfg.Session.TTL = parsed
		}
	}
}

// ConfigValidationError aggregates every issue found in one pass so a
// caller sees the whole problem instead of one field at a time.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	var issues []string

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if defaultProvider != "" && len(cfg.LLM.Providers) > 0 {
		if _, ok := cfg.LLM.Providers[defaultProvider]; !ok {
			if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
			}
		}
	}

	seenKeys := map[string]struct{}{}
	for i, key := range cfg.Auth.APIKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			issues = append(issues, fmt.Sprintf("auth.api_keys[%d] must be set", i))
			continue
		}
		if _, ok := seenKeys[key]; ok {
			issues = append(issues, fmt.Sprintf("auth.api_keys[%d] must be unique", i))
		}
		seenKeys[key] = struct{}{}
	}

	if cfg.Session.TTL < 0 {
		issues = append(issues, "session.ttl must be >= 0")
	}
	if cfg.Session.MemoryLimit < 0 {
		issues = append(issues, "session.memory_limit must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Checkpoint.Backend)) {
	case "memory", "postgres":
	default:
		issues = append(issues, "checkpoint.backend must be \"memory\" or \"postgres\"")
	}
	if strings.ToLower(strings.TrimSpace(cfg.Checkpoint.Backend)) == "postgres" && strings.TrimSpace(cfg.Checkpoint.DSN) == "" && strings.TrimSpace(cfg.Database.DSN()) == "" {
		issues = append(issues, "checkpoint.dsn is required when checkpoint.backend is \"postgres\" and database.url is unset")
	}

	if cfg.Tools.Execution.MaxIterations < 0 {
		issues = append(issues, "tools.execution.max_iterations must be >= 0")
	}
	if cfg.Tools.Execution.Timeout < 0 {
		issues = append(issues, "tools.execution.timeout must be >= 0")
	}
	if cfg.Tools.Execution.MaxAttempts < 0 {
		issues = append(issues, "tools.execution.max_attempts must be >= 0")
	}

	if cfg.Cron.Enabled {
		for i, job := range cfg.Cron.Jobs {
			if strings.TrimSpace(job.ID) == "" {
				issues = append(issues, fmt.Sprintf("cron.jobs[%d].id is required", i))
			}
			if strings.TrimSpace(job.Type) == "" {
				issues = append(issues, fmt.Sprintf("cron.jobs[%d].type is required", i))
			}
			if strings.TrimSpace(job.Schedule.Cron) == "" && job.Schedule.Every == 0 && strings.TrimSpace(job.Schedule.At) == "" {
				issues = append(issues, fmt.Sprintf("cron.jobs[%d].schedule is required", i))
			}
		}
	}

	if ragIssues := validateRAG(&cfg.RAG); len(ragIssues) > 0 {
		issues = append(issues, ragIssues...)
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
