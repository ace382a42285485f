package policy

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_policy.yaml
var defaultPolicy []byte

// rawConfig mirrors Config with pointer fields so missing keys can be told
// apart from zero values.
type rawConfig struct {
	ScoreThresholds *struct {
		Review *float64 `yaml:"review"`
		Block  *float64 `yaml:"block"`
	} `yaml:"score_thresholds"`
	HardRules *struct {
		MaxPaymentAttempts *int `yaml:"max_payment_attempts"`
		MinAccountAgeDays  *int `yaml:"min_account_age_days"`
	} `yaml:"hard_rules"`
	RateLimits *struct {
		WindowSeconds      *int `yaml:"window_seconds"`
		UserReviewEvents   *int `yaml:"user_review_events"`
		UserBlockEvents    *int `yaml:"user_block_events"`
		DeviceReviewEvents *int `yaml:"device_review_events"`
		DeviceBlockEvents  *int `yaml:"device_block_events"`
		IPReviewEvents     *int `yaml:"ip_review_events"`
		IPBlockEvents      *int `yaml:"ip_block_events"`
	} `yaml:"rate_limits"`
	Reasons *ReasonSettings `yaml:"reasons"`
}

// Parse decodes and validates a YAML (or JSON) policy document.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, configErr("policy", "document is empty")
		}
		return nil, &ConfigError{Field: "policy", Message: "malformed document", Err: err}
	}

	cfg := &Config{}

	if raw.ScoreThresholds == nil {
		return nil, configErr("score_thresholds", "is required")
	}
	if err := required("score_thresholds.review", raw.ScoreThresholds.Review, &cfg.ScoreThresholds.Review); err != nil {
		return nil, err
	}
	if err := required("score_thresholds.block", raw.ScoreThresholds.Block, &cfg.ScoreThresholds.Block); err != nil {
		return nil, err
	}

	if raw.HardRules == nil {
		return nil, configErr("hard_rules", "is required")
	}
	if err := required("hard_rules.max_payment_attempts", raw.HardRules.MaxPaymentAttempts, &cfg.HardRules.MaxPaymentAttempts); err != nil {
		return nil, err
	}
	if err := required("hard_rules.min_account_age_days", raw.HardRules.MinAccountAgeDays, &cfg.HardRules.MinAccountAgeDays); err != nil {
		return nil, err
	}

	if rl := raw.RateLimits; rl != nil {
		limits := &RateLimits{}
		fields := []struct {
			name string
			src  *int
			dst  *int
		}{
			{"rate_limits.window_seconds", rl.WindowSeconds, &limits.WindowSeconds},
			{"rate_limits.user_review_events", rl.UserReviewEvents, &limits.UserReviewEvents},
			{"rate_limits.user_block_events", rl.UserBlockEvents, &limits.UserBlockEvents},
			{"rate_limits.device_review_events", rl.DeviceReviewEvents, &limits.DeviceReviewEvents},
			{"rate_limits.device_block_events", rl.DeviceBlockEvents, &limits.DeviceBlockEvents},
			{"rate_limits.ip_review_events", rl.IPReviewEvents, &limits.IPReviewEvents},
			{"rate_limits.ip_block_events", rl.IPBlockEvents, &limits.IPBlockEvents},
		}
		for _, f := range fields {
			if err := required(f.name, f.src, f.dst); err != nil {
				return nil, err
			}
		}
		cfg.RateLimits = limits
	}

	if raw.Reasons != nil {
		cfg.Reasons = *raw.Reasons
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.index()
	return cfg, nil
}

// LoadFile reads and parses a policy file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "policy", Message: fmt.Sprintf("cannot read %s", path), Err: err}
	}
	return Parse(data)
}

// Load returns the policy at path, or the embedded default when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Default parses the embedded default policy.
func Default() (*Config, error) {
	return Parse(defaultPolicy)
}

// MustDefault is Default for tests and tools; it panics on error.
func MustDefault() *Config {
	cfg, err := Default()
	if err != nil {
		panic(err)
	}
	return cfg
}

// New validates a programmatically built Config.
func New(cfg Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RateLimits != nil {
		rl := *cfg.RateLimits
		cfg.RateLimits = &rl
	}
	cfg.Reasons.HighRiskCountries = append([]string(nil), cfg.Reasons.HighRiskCountries...)
	cfg.index()
	return &cfg, nil
}

func required[T any](field string, src *T, dst *T) error {
	if src == nil {
		return configErr(field, "is required")
	}
	*dst = *src
	return nil
}
