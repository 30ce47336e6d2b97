// ABOUTME: Configuration loading and parsing for the steward service.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when the file leaves a field empty.
const (
	DefaultMaxRounds        = 10
	DefaultCallTimeout      = 30 * time.Second
	DefaultCorrelationField = "message_id"
	DefaultDedupeTTL        = 10 * time.Minute
	DefaultDedupeMaxSize    = 1024
)

// Config represents the complete steward configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Backends []BackendConfig `yaml:"backends"`
	Oracle   OracleConfig    `yaml:"oracle"`
	Loop     LoopConfig      `yaml:"loop"`
	Mail     MailConfig      `yaml:"mail"`
	Store    StoreConfig     `yaml:"store"`
	Dedupe   DedupeConfig    `yaml:"dedupe"`
	Webhook  WebhookConfig   `yaml:"webhook"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// BackendConfig names one tool backend and where to reach it.
type BackendConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// OracleConfig holds the reasoning model configuration.
type OracleConfig struct {
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	SystemPrompt string `yaml:"system_prompt"`
}

// LoopConfig holds orchestration loop tuning.
type LoopConfig struct {
	MaxRounds        int           `yaml:"max_rounds"`
	CorrelationField string        `yaml:"correlation_field"`
	CallTimeout      time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	CallTimeoutRaw string `yaml:"call_timeout"`
}

// MailConfig holds the mail collaborator configuration. All fields
// empty means the collaborator is disabled.
type MailConfig struct {
	TenantID            string `yaml:"tenant_id"`
	ClientID            string `yaml:"client_id"`
	ClientSecret        string `yaml:"client_secret"`
	TargetUser          string `yaml:"target_user"`
	AllowedSenderDomain string `yaml:"allowed_sender_domain"`
}

// Enabled reports whether the mail collaborator is configured.
func (m MailConfig) Enabled() bool {
	return m.TenantID != "" && m.ClientID != "" && m.ClientSecret != "" && m.TargetUser != ""
}

// StoreConfig holds transcript store configuration. An empty path
// disables persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// DedupeConfig holds notification dedupe cache configuration.
type DedupeConfig struct {
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TTLRaw string `yaml:"ttl"`
}

// WebhookConfig holds inbound webhook verification configuration.
type WebhookConfig struct {
	// ClientState, when set, must match the client_state carried by
	// inbound notifications.
	ClientState string `yaml:"client_state"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. If the environment variable is not set, it is replaced with
// an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in defaults for fields the file left empty.
func (c *Config) applyDefaults() {
	if c.Loop.MaxRounds <= 0 {
		c.Loop.MaxRounds = DefaultMaxRounds
	}
	if c.Loop.CorrelationField == "" {
		c.Loop.CorrelationField = DefaultCorrelationField
	}
	if c.Loop.CallTimeout <= 0 {
		c.Loop.CallTimeout = DefaultCallTimeout
	}
	if c.Dedupe.TTL <= 0 {
		c.Dedupe.TTL = DefaultDedupeTTL
	}
	if c.Dedupe.MaxSize <= 0 {
		c.Dedupe.MaxSize = DefaultDedupeMaxSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}
	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d].name is required", i)
		}
		if b.URL == "" {
			return fmt.Errorf("backends[%d].url is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("backends[%d].name %q is duplicated", i, b.Name)
		}
		seen[b.Name] = true
	}

	if c.Oracle.Model == "" {
		return fmt.Errorf("oracle.model is required")
	}
	if c.Oracle.APIKey == "" {
		return fmt.Errorf("oracle.api_key is required")
	}

	return nil
}

// Endpoints returns the backend name → URL map in a transport-friendly shape.
func (c *Config) Endpoints() map[string]string {
	eps := make(map[string]string, len(c.Backends))
	for _, b := range c.Backends {
		eps[b.Name] = b.URL
	}
	return eps
}

// BackendNames returns backend names in configured order. Discovery
// relies on this order for deterministic collision shadowing.
func (c *Config) BackendNames() []string {
	names := make([]string, len(c.Backends))
	for i, b := range c.Backends {
		names[i] = b.Name
	}
	return names
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Loop.CallTimeoutRaw != "" {
		cfg.Loop.CallTimeout, err = time.ParseDuration(cfg.Loop.CallTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing call_timeout %q: %w", cfg.Loop.CallTimeoutRaw, err)
		}
	}

	if cfg.Dedupe.TTLRaw != "" {
		cfg.Dedupe.TTL, err = time.ParseDuration(cfg.Dedupe.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe ttl %q: %w", cfg.Dedupe.TTLRaw, err)
		}
	}

	return nil
}
