package risk

import (
	"sort"

	"github.com/mbd888/fraudgate/internal/event"
	"github.com/mbd888/fraudgate/internal/policy"
	"github.com/mbd888/fraudgate/internal/ratelimit"
	"github.com/mbd888/fraudgate/internal/reasons"
)

// resolution accumulates the signals for one Decide call.
type resolution struct {
	score    float64
	ev       *event.Event
	cfg      *policy.Config
	rate     ratelimit.Outcome
	reasons  []string
	triggers []string
}

func (r *resolution) fire(trigger string, asReason bool) {
	r.triggers = append(r.triggers, trigger)
	if asReason {
		r.reasons = append(r.reasons, trigger)
	}
}

// rule is one step of the precedence pipeline. It returns ok when it settles
// the decision.
type rule func(r *resolution) (d Decision, ok bool)

// pipeline is evaluated in order; the first rule that decides wins.
var pipeline = []rule{
	maxPaymentAttempts,
	minAccountAge,
	rateLimits,
	scoreThresholds,
}

// Decide resolves score and ev into a decision under cfg. When state is
// non-nil and cfg has rate limits, the event is recorded once per dimension
// before any rule runs, and the resulting rate-limit triggers are part of the
// result whichever rule decides. A nil state disables rate limiting.
//
// Decide never fails. Missing entity identifiers are replaced by sentinels.
func Decide(score float64, ev *event.Event, cfg *policy.Config, state *ratelimit.State) Result {
	normalized := ev.Normalize()

	r := &resolution{
		score:   score,
		ev:      &normalized,
		cfg:     cfg,
		reasons: reasons.Extract(&normalized, cfg),
	}
	if state != nil && cfg.RateLimitingEnabled() {
		r.rate = ratelimit.Evaluate(state, &normalized, cfg.RateLimits)
		r.triggers = append(r.triggers, r.rate.Triggers...)
	}

	decision := DecisionAllow
	for _, step := range pipeline {
		if d, ok := step(r); ok {
			decision = d
			break
		}
	}

	return Result{
		Decision: decision,
		Reasons:  sortedUnique(r.reasons),
		Triggers: sortedUnique(r.triggers),
	}
}

func maxPaymentAttempts(r *resolution) (Decision, bool) {
	if r.ev.PaymentAttempts < r.cfg.HardRules.MaxPaymentAttempts {
		return "", false
	}
	r.fire(TriggerMaxPaymentAttempts, true)
	return DecisionBlock, true
}

// minAccountAge never resolves below review; a concurrent rate-limit block
// escalates it.
func minAccountAge(r *resolution) (Decision, bool) {
	if r.ev.AccountAgeDays > r.cfg.HardRules.MinAccountAgeDays {
		return "", false
	}
	r.fire(TriggerMinAccountAge, true)
	if r.rate.Block {
		return DecisionBlock, true
	}
	return DecisionReview, true
}

func rateLimits(r *resolution) (Decision, bool) {
	switch {
	case r.rate.Block:
		return DecisionBlock, true
	case r.rate.Review:
		return DecisionReview, true
	}
	return "", false
}

func scoreThresholds(r *resolution) (Decision, bool) {
	switch {
	case r.score >= r.cfg.ScoreThresholds.Block:
		r.fire(TriggerScoreBlock, false)
		return DecisionBlock, true
	case r.score >= r.cfg.ScoreThresholds.Review:
		r.fire(TriggerScoreReview, false)
		return DecisionReview, true
	}
	return "", false
}

func sortedUnique(in []string) []string {
	out := make([]string, 0, len(in))
	if len(in) == 0 {
		return out
	}
	sorted := append([]string(nil), in...)
	sort.Strings(sorted)
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
