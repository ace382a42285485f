// Package policy holds the decision policy: score thresholds, hard rules and
// the optional per-dimension rate limits.
//
// A Config is loaded once at startup and treated as read-only afterwards.
// Every loader validates the document and fails with a *ConfigError, which
// matches ErrInvalidConfig under errors.Is.
package policy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is matched by every *ConfigError.
var ErrInvalidConfig = errors.New("policy: invalid configuration")

// ConfigError describes a missing, malformed or inconsistent policy field.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := "policy: " + e.Field + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Dimension is an entity axis along which rate limits are tracked.
type Dimension string

const (
	DimensionUser   Dimension = "user"
	DimensionDevice Dimension = "device"
	DimensionIP     Dimension = "ip"
)

// Dimensions lists every rate-limited dimension in evaluation order.
var Dimensions = []Dimension{DimensionUser, DimensionDevice, DimensionIP}

// ScoreThresholds map a risk score onto review and block.
type ScoreThresholds struct {
	Review float64 `yaml:"review" json:"review"`
	Block  float64 `yaml:"block" json:"block"`
}

// HardRules force a decision from raw event attributes.
type HardRules struct {
	MaxPaymentAttempts int `yaml:"max_payment_attempts" json:"max_payment_attempts"`
	MinAccountAgeDays  int `yaml:"min_account_age_days" json:"min_account_age_days"`
}

// RateLimits configures the sliding-window limits per dimension.
type RateLimits struct {
	WindowSeconds      int `yaml:"window_seconds" json:"window_seconds"`
	UserReviewEvents   int `yaml:"user_review_events" json:"user_review_events"`
	UserBlockEvents    int `yaml:"user_block_events" json:"user_block_events"`
	DeviceReviewEvents int `yaml:"device_review_events" json:"device_review_events"`
	DeviceBlockEvents  int `yaml:"device_block_events" json:"device_block_events"`
	IPReviewEvents     int `yaml:"ip_review_events" json:"ip_review_events"`
	IPBlockEvents      int `yaml:"ip_block_events" json:"ip_block_events"`
}

// Limits returns the review and block event counts for a dimension.
func (r *RateLimits) Limits(dim Dimension) (review, block int) {
	switch dim {
	case DimensionUser:
		return r.UserReviewEvents, r.UserBlockEvents
	case DimensionDevice:
		return r.DeviceReviewEvents, r.DeviceBlockEvents
	case DimensionIP:
		return r.IPReviewEvents, r.IPBlockEvents
	}
	return 0, 0
}

// ReasonSettings tunes the static reason extractor.
type ReasonSettings struct {
	HighRiskCountries []string `yaml:"high_risk_countries" json:"high_risk_countries"`
}

// Config is the validated, immutable decision policy.
type Config struct {
	ScoreThresholds ScoreThresholds `yaml:"score_thresholds" json:"score_thresholds"`
	HardRules       HardRules       `yaml:"hard_rules" json:"hard_rules"`
	// RateLimits is nil when rate limiting is disabled.
	RateLimits *RateLimits     `yaml:"rate_limits,omitempty" json:"rate_limits,omitempty"`
	Reasons    ReasonSettings  `yaml:"reasons" json:"reasons"`
	countries  map[string]bool `yaml:"-" json:"-"`
}

// DefaultHighRiskCountries is used when the policy does not list any.
var DefaultHighRiskCountries = []string{"NG", "RU"}

// IsHighRiskCountry reports whether the ISO country code is in the
// configured high-risk set. Matching ignores case.
func (c *Config) IsHighRiskCountry(country string) bool {
	if country == "" {
		return false
	}
	if c.countries == nil {
		for _, hr := range c.highRiskCountries() {
			if strings.EqualFold(hr, country) {
				return true
			}
		}
		return false
	}
	return c.countries[strings.ToUpper(country)]
}

// RateLimitingEnabled reports whether the policy carries rate limits.
func (c *Config) RateLimitingEnabled() bool {
	return c.RateLimits != nil
}

func (c *Config) highRiskCountries() []string {
	if len(c.Reasons.HighRiskCountries) == 0 {
		return DefaultHighRiskCountries
	}
	return c.Reasons.HighRiskCountries
}

func (c *Config) index() {
	c.countries = make(map[string]bool)
	for _, hr := range c.highRiskCountries() {
		c.countries[strings.ToUpper(strings.TrimSpace(hr))] = true
	}
}

// Validate checks threshold ranges and review/block ordering.
func (c *Config) Validate() error {
	t := c.ScoreThresholds
	if t.Review < 0 || t.Review > 1 {
		return configErr("score_thresholds.review", "must be in [0,1], got %v", t.Review)
	}
	if t.Block < 0 || t.Block > 1 {
		return configErr("score_thresholds.block", "must be in [0,1], got %v", t.Block)
	}
	if t.Block < t.Review {
		return configErr("score_thresholds", "block (%v) must be >= review (%v)", t.Block, t.Review)
	}

	if c.HardRules.MaxPaymentAttempts < 0 {
		return configErr("hard_rules.max_payment_attempts", "must be >= 0, got %d", c.HardRules.MaxPaymentAttempts)
	}
	if c.HardRules.MinAccountAgeDays < 0 {
		return configErr("hard_rules.min_account_age_days", "must be >= 0, got %d", c.HardRules.MinAccountAgeDays)
	}

	if rl := c.RateLimits; rl != nil {
		if rl.WindowSeconds <= 0 {
			return configErr("rate_limits.window_seconds", "must be > 0, got %d", rl.WindowSeconds)
		}
		for _, dim := range Dimensions {
			review, block := rl.Limits(dim)
			if review < 0 {
				return configErr(fmt.Sprintf("rate_limits.%s_review_events", dim), "must be >= 0, got %d", review)
			}
			if block < review {
				return configErr(fmt.Sprintf("rate_limits.%s_block_events", dim),
					"must be >= %s_review_events (%d), got %d", dim, review, block)
			}
		}
	}

	for _, hr := range c.Reasons.HighRiskCountries {
		if len(strings.TrimSpace(hr)) != 2 {
			return configErr("reasons.high_risk_countries", "country codes must have two letters, got %q", hr)
		}
	}
	return nil
}
