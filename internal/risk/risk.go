// Package risk turns an externally computed risk score and an event into an
// allow, review or block decision.
//
// Signals are resolved by a fixed precedence: hard rules first, then
// per-dimension rate limits, then score thresholds. Every decision carries
// the static reason tags of the event and the identifiers of the rules that
// fired, both sorted and de-duplicated.
package risk

import (
	"context"
	"time"
)

// Decision represents the engine's verdict on an event.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionReview Decision = "review"
	DecisionBlock  Decision = "block"
)

// Rank orders decisions: allow < review < block.
func (d Decision) Rank() int {
	switch d {
	case DecisionReview:
		return 1
	case DecisionBlock:
		return 2
	}
	return 0
}

// Trigger identifiers for hard rules and score thresholds. Rate-limit
// triggers are produced by ratelimit.Trigger.
const (
	TriggerMaxPaymentAttempts = "hard_rule:max_payment_attempts"
	TriggerMinAccountAge      = "hard_rule:min_account_age_days"
	TriggerScoreBlock         = "score:block_threshold"
	TriggerScoreReview        = "score:review_threshold"
)

// Result is the outcome of Decide.
type Result struct {
	Decision Decision `json:"decision"`
	Reasons  []string `json:"reasons"`
	Triggers []string `json:"policy_triggers"`
}

// Assessment is an evaluated event as recorded in the audit log.
type Assessment struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	DeviceID    string    `json:"device_id"`
	IPID        string    `json:"ip_id"`
	RiskScore   float64   `json:"risk_score"`
	EventTS     float64   `json:"event_ts"`
	EvaluatedAt time.Time `json:"evaluated_at"`
	Result
}

func (a *Assessment) clone() *Assessment {
	c := *a
	c.Reasons = append([]string(nil), a.Reasons...)
	c.Triggers = append([]string(nil), a.Triggers...)
	return &c
}

// Store keeps evaluated assessments for audit.
type Store interface {
	Record(ctx context.Context, assessment *Assessment) error
	Recent(ctx context.Context, limit int) ([]*Assessment, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error)
}
