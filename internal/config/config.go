// Package config handles service configuration from the environment and an
// optional config file
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all service configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Decision policy; empty uses the embedded default
	PolicyPath string

	// Security
	AdminSecret           string
	APIRateLimitPerMinute int
	CORSAllowedOrigins    []string // empty disables CORS

	// Rate-limit state housekeeping
	SweepInterval     time.Duration
	SweepGraceSeconds int
	MaxTrackedKeys    int // readiness fails above this; 0 disables

	// Audit log
	AuditCapacity int

	// Tracing; empty disables
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort                  = "8080"
	DefaultEnv                   = "development"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "json"
	DefaultAPIRateLimitPerMinute = 600
	DefaultSweepInterval         = time.Minute
	DefaultSweepGraceSeconds     = 300
	DefaultAuditCapacity         = 10000
	DefaultMaxTrackedKeys        = 1_000_000
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration with precedence environment > config file >
// defaults. configPath may be empty.
func LoadFile(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("port", DefaultPort)
	v.SetDefault("env", DefaultEnv)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("policy_path", "")
	v.SetDefault("admin_secret", "")
	v.SetDefault("api_rate_limit_per_minute", DefaultAPIRateLimitPerMinute)
	v.SetDefault("cors_allowed_origins", "")
	v.SetDefault("sweep_interval", DefaultSweepInterval.String())
	v.SetDefault("sweep_grace_seconds", DefaultSweepGraceSeconds)
	v.SetDefault("audit_capacity", DefaultAuditCapacity)
	v.SetDefault("max_tracked_keys", DefaultMaxTrackedKeys)
	v.SetDefault("otel_exporter_otlp_endpoint", "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Secrets are environment-only
		if v.InConfig("admin_secret") {
			return nil, fmt.Errorf("admin_secret not allowed in config files (use ADMIN_SECRET environment variable)")
		}
	}

	cfg := &Config{
		Port:                  v.GetString("port"),
		Env:                   v.GetString("env"),
		LogLevel:              v.GetString("log_level"),
		LogFormat:             v.GetString("log_format"),
		PolicyPath:            v.GetString("policy_path"),
		AdminSecret:           v.GetString("admin_secret"),
		APIRateLimitPerMinute: v.GetInt("api_rate_limit_per_minute"),
		CORSAllowedOrigins:    splitList(v.GetString("cors_allowed_origins")),
		SweepInterval:         v.GetDuration("sweep_interval"),
		SweepGraceSeconds:     v.GetInt("sweep_grace_seconds"),
		AuditCapacity:         v.GetInt("audit_capacity"),
		MaxTrackedKeys:        v.GetInt("max_tracked_keys"),
		OTLPEndpoint:          v.GetString("otel_exporter_otlp_endpoint"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// splitList parses a comma-separated list, dropping empty entries
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks that numeric settings are usable
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.APIRateLimitPerMinute <= 0 {
		return fmt.Errorf("API_RATE_LIMIT_PER_MINUTE must be positive, got %d", c.APIRateLimitPerMinute)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %v", c.SweepInterval)
	}
	if c.SweepGraceSeconds < 0 {
		return fmt.Errorf("SWEEP_GRACE_SECONDS must be >= 0, got %d", c.SweepGraceSeconds)
	}
	if c.AuditCapacity <= 0 {
		return fmt.Errorf("AUDIT_CAPACITY must be positive, got %d", c.AuditCapacity)
	}
	if c.MaxTrackedKeys < 0 {
		return fmt.Errorf("MAX_TRACKED_KEYS must be >= 0, got %d", c.MaxTrackedKeys)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.IsProduction() && c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
