package risk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mbd888/fraudgate/internal/event"
	"github.com/mbd888/fraudgate/internal/policy"
	"github.com/mbd888/fraudgate/internal/ratelimit"
	"github.com/mbd888/fraudgate/internal/reasons"
	"github.com/mbd888/fraudgate/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basePolicy(t testing.TB) *policy.Config {
	t.Helper()
	cfg, err := policy.New(policy.Config{
		ScoreThresholds: policy.ScoreThresholds{Review: 0.5, Block: 0.85},
		HardRules:       policy.HardRules{MaxPaymentAttempts: 8, MinAccountAgeDays: 1},
	})
	require.NoError(t, err)
	return cfg
}

func rateLimitedPolicy(t testing.TB) *policy.Config {
	t.Helper()
	cfg, err := policy.New(policy.Config{
		ScoreThresholds: policy.ScoreThresholds{Review: 0.5, Block: 0.85},
		HardRules:       policy.HardRules{MaxPaymentAttempts: 8, MinAccountAgeDays: 1},
		RateLimits: &policy.RateLimits{
			WindowSeconds:      60,
			UserReviewEvents:   3,
			UserBlockEvents:    6,
			DeviceReviewEvents: 100,
			DeviceBlockEvents:  200,
			IPReviewEvents:     100,
			IPBlockEvents:      200,
		},
	})
	require.NoError(t, err)
	return cfg
}

func quietEvent() *event.Event {
	return &event.Event{
		MessageText:     "is this still available?",
		Country:         "US",
		UserID:          "u-1",
		DeviceID:        "d-1",
		IPID:            "ip-1",
		PaymentAttempts: 1,
		AccountAgeDays:  20,
		EventTS:         1_700_000_000,
	}
}

func TestDecide_Scenarios(t *testing.T) {
	cfg := basePolicy(t)

	tests := []struct {
		name         string
		score        float64
		mutate       func(ev *event.Event)
		wantDecision Decision
		wantTriggers []string
		wantReasons  []string
	}{
		{
			name:         "payment attempts hard rule beats low score",
			score:        0.05,
			mutate:       func(ev *event.Event) { ev.PaymentAttempts = 9 },
			wantDecision: DecisionBlock,
			wantTriggers: []string{TriggerMaxPaymentAttempts},
			wantReasons:  []string{TriggerMaxPaymentAttempts, reasons.HighPaymentAttempts},
		},
		{
			name:         "payment attempts at the limit",
			score:        0.05,
			mutate:       func(ev *event.Event) { ev.PaymentAttempts = 8 },
			wantDecision: DecisionBlock,
			wantTriggers: []string{TriggerMaxPaymentAttempts},
			wantReasons:  []string{TriggerMaxPaymentAttempts, reasons.HighPaymentAttempts},
		},
		{
			name:         "score above block threshold",
			score:        0.9,
			wantDecision: DecisionBlock,
			wantTriggers: []string{TriggerScoreBlock},
			wantReasons:  []string{},
		},
		{
			name:         "score exactly at block threshold",
			score:        0.85,
			wantDecision: DecisionBlock,
			wantTriggers: []string{TriggerScoreBlock},
			wantReasons:  []string{},
		},
		{
			name:         "score in review band",
			score:        0.6,
			wantDecision: DecisionReview,
			wantTriggers: []string{TriggerScoreReview},
			wantReasons:  []string{},
		},
		{
			name:         "low score allows",
			score:        0.1,
			wantDecision: DecisionAllow,
			wantTriggers: []string{},
			wantReasons:  []string{},
		},
		{
			name:         "young account forces review even with high score",
			score:        0.99,
			mutate:       func(ev *event.Event) { ev.AccountAgeDays = 1 },
			wantDecision: DecisionReview,
			wantTriggers: []string{TriggerMinAccountAge},
			wantReasons:  []string{TriggerMinAccountAge, reasons.NewAccount},
		},
		{
			name:         "young account forces review with zero score",
			score:        0,
			mutate:       func(ev *event.Event) { ev.AccountAgeDays = 0 },
			wantDecision: DecisionReview,
			wantTriggers: []string{TriggerMinAccountAge},
			wantReasons:  []string{TriggerMinAccountAge, reasons.NewAccount},
		},
		{
			name:  "both hard rules fire, attempts wins",
			score: 0.2,
			mutate: func(ev *event.Event) {
				ev.PaymentAttempts = 10
				ev.AccountAgeDays = 0
			},
			wantDecision: DecisionBlock,
			wantTriggers: []string{TriggerMaxPaymentAttempts},
			wantReasons:  []string{TriggerMaxPaymentAttempts, reasons.HighPaymentAttempts, reasons.NewAccount},
		},
		{
			name:  "static reasons annotate without changing the decision",
			score: 0.1,
			mutate: func(ev *event.Event) {
				ev.MessageText = "URGENT: send the OTP outside platform"
				ev.Country = "ng"
				ev.ChargebackHistory = 1
				ev.DeviceReuseCount = 5
			},
			wantDecision: DecisionAllow,
			wantTriggers: []string{},
			wantReasons: []string{
				reasons.HighDeviceReuse,
				reasons.HighRiskCountry,
				reasons.PriorChargeback,
				reasons.SuspiciousMessagePattern,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := quietEvent()
			if tt.mutate != nil {
				tt.mutate(ev)
			}
			got := Decide(tt.score, ev, cfg, nil)
			assert.Equal(t, tt.wantDecision, got.Decision)
			assert.Equal(t, tt.wantTriggers, got.Triggers)
			assert.Equal(t, tt.wantReasons, got.Reasons)
		})
	}
}

func TestDecide_RateLimitProgression(t *testing.T) {
	cfg := rateLimitedPolicy(t)
	state := ratelimit.NewState()

	for i := 1; i <= 8; i++ {
		ev := quietEvent()
		ev.EventTS = 1_700_000_000 + float64(i)
		got := Decide(0.05, ev, cfg, state)

		switch {
		case i >= 6:
			assert.Equal(t, DecisionBlock, got.Decision, "call %d", i)
			assert.Contains(t, got.Triggers, "rate_limit:user:block", "call %d", i)
			assert.NotContains(t, got.Triggers, "rate_limit:user:review", "call %d", i)
		case i >= 3:
			assert.Equal(t, DecisionReview, got.Decision, "call %d", i)
			assert.Contains(t, got.Triggers, "rate_limit:user:review", "call %d", i)
		default:
			assert.Equal(t, DecisionAllow, got.Decision, "call %d", i)
			assert.Empty(t, got.Triggers, "call %d", i)
		}
	}
}

func TestDecide_RateLimitOutranksScore(t *testing.T) {
	cfg := rateLimitedPolicy(t)
	state := ratelimit.NewState()

	var got Result
	for i := 0; i < 3; i++ {
		ev := quietEvent()
		ev.EventTS += float64(i)
		got = Decide(0.95, ev, cfg, state)
	}

	// Review from the user limit settles the decision before the score is read.
	assert.Equal(t, DecisionReview, got.Decision)
	assert.Equal(t, []string{"rate_limit:user:review"}, got.Triggers)
}

func TestDecide_YoungAccountEscalatedByRateLimitBlock(t *testing.T) {
	cfg := rateLimitedPolicy(t)
	state := ratelimit.NewState()

	var got Result
	for i := 0; i < 6; i++ {
		ev := quietEvent()
		ev.AccountAgeDays = 0
		ev.EventTS += float64(i)
		got = Decide(0.05, ev, cfg, state)
		if i < 5 {
			assert.Equal(t, DecisionReview, got.Decision, "call %d", i+1)
		}
	}

	assert.Equal(t, DecisionBlock, got.Decision)
	assert.Equal(t, []string{TriggerMinAccountAge, "rate_limit:user:block"}, got.Triggers)
}

func TestDecide_HardRuleKeepsRateLimitTriggers(t *testing.T) {
	cfg := rateLimitedPolicy(t)
	state := ratelimit.NewState()

	var got Result
	for i := 0; i < 4; i++ {
		ev := quietEvent()
		ev.PaymentAttempts = 12
		ev.EventTS += float64(i)
		got = Decide(0, ev, cfg, state)
	}
	assert.Equal(t, DecisionBlock, got.Decision)
	assert.Equal(t, []string{TriggerMaxPaymentAttempts, "rate_limit:user:review"}, got.Triggers)
}

func TestDecide_KeywordPastLongPrefixStillMatches(t *testing.T) {
	ev := quietEvent()
	ev.MessageText = strings.Repeat("a", validation.MaxStringLength) + " please send your otp"

	got := Decide(0.05, ev, basePolicy(t), nil)
	assert.Contains(t, got.Reasons, reasons.SuspiciousMessagePattern)
	assert.Len(t, ev.MessageText, validation.MaxStringLength+len(" please send your otp"))
}

func TestDecide_NilStateDisablesRateLimiting(t *testing.T) {
	cfg := rateLimitedPolicy(t)
	for i := 0; i < 20; i++ {
		got := Decide(0.05, quietEvent(), cfg, nil)
		assert.Equal(t, DecisionAllow, got.Decision)
		assert.Empty(t, got.Triggers)
	}
}

func TestDecide_NoRateLimitsRecordsNothing(t *testing.T) {
	cfg := basePolicy(t)
	state := ratelimit.NewState()
	for i := 0; i < 10; i++ {
		Decide(0.05, quietEvent(), cfg, state)
	}
	for _, dim := range policy.Dimensions {
		assert.Zero(t, state.Stats()[dim])
	}
}

func TestDecide_MissingIdentifiersShareSentinel(t *testing.T) {
	cfg := rateLimitedPolicy(t)
	state := ratelimit.NewState()

	var got Result
	for i := 0; i < 3; i++ {
		ev := quietEvent()
		ev.UserID = ""
		ev.EventTS += float64(i)
		got = Decide(0.05, ev, cfg, state)
	}
	assert.Equal(t, DecisionReview, got.Decision)
	assert.Equal(t, 3, state.Count(policy.DimensionUser, event.UnknownUser))
}

func TestDecide_IdempotentReset(t *testing.T) {
	cfg := rateLimitedPolicy(t)

	run := func(state *ratelimit.State) []Result {
		var out []Result
		for i := 0; i < 10; i++ {
			ev := quietEvent()
			ev.UserID = fmt.Sprintf("u-%d", i%2)
			ev.EventTS += float64(i * 7)
			out = append(out, Decide(0.3, ev, cfg, state))
		}
		return out
	}

	fresh := run(ratelimit.NewState())

	used := ratelimit.NewState()
	run(used)
	used.Reset()
	assert.Equal(t, fresh, run(used))
}

func TestDecide_Deterministic(t *testing.T) {
	cfg := basePolicy(t)
	ev := quietEvent()
	ev.MessageText = "click this link"
	first := Decide(0.7, ev, cfg, nil)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Decide(0.7, ev, cfg, nil))
	}
}

func TestDecide_DoesNotMutateEvent(t *testing.T) {
	cfg := basePolicy(t)
	ev := &event.Event{MessageText: "hi", Country: "us"}
	Decide(0.1, ev, cfg, nil)
	assert.Empty(t, ev.UserID)
	assert.Equal(t, "us", ev.Country)
}

func TestDecisionRank(t *testing.T) {
	assert.Less(t, DecisionAllow.Rank(), DecisionReview.Rank())
	assert.Less(t, DecisionReview.Rank(), DecisionBlock.Rank())
}

func genEvent() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 12),
		gen.IntRange(0, 30),
		gen.IntRange(0, 8),
		gen.IntRange(0, 1),
		gen.Bool(),
	).Map(func(v []interface{}) *event.Event {
		ev := quietEvent()
		ev.PaymentAttempts = v[0].(int)
		ev.AccountAgeDays = v[1].(int)
		ev.DeviceReuseCount = v[2].(int)
		ev.ChargebackHistory = v[3].(int)
		if v[4].(bool) {
			ev.MessageText = "transfer now"
		}
		return ev
	})
}

func TestDecide_ScoreMonotonicity(t *testing.T) {
	cfg := rateLimitedPolicy(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("lowering the score never raises the decision", prop.ForAll(
		func(ev *event.Event, hi, lo float64, prior int) bool {
			if lo > hi {
				hi, lo = lo, hi
			}
			// Identical state for both calls: same prior traffic on a fresh state.
			seed := func() *ratelimit.State {
				s := ratelimit.NewState()
				for i := 0; i < prior; i++ {
					p := *ev
					p.EventTS -= float64(prior - i)
					ratelimit.Evaluate(s, &p, cfg.RateLimits)
				}
				return s
			}
			high := Decide(hi, ev, cfg, seed())
			low := Decide(lo, ev, cfg, seed())
			return low.Decision.Rank() <= high.Decision.Rank()
		},
		genEvent(),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

func TestDecide_HardRuleDominance(t *testing.T) {
	cfg := rateLimitedPolicy(t)

	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("attempts at or above the limit always block", prop.ForAll(
		func(ev *event.Event, extra int, score float64, prior int) bool {
			ev.PaymentAttempts = cfg.HardRules.MaxPaymentAttempts + extra
			state := ratelimit.NewState()
			var got Result
			for i := 0; i <= prior; i++ {
				p := *ev
				p.EventTS += float64(i)
				got = Decide(score, &p, cfg, state)
			}
			return got.Decision == DecisionBlock &&
				contains(got.Triggers, TriggerMaxPaymentAttempts) &&
				contains(got.Reasons, TriggerMaxPaymentAttempts)
		},
		genEvent(),
		gen.IntRange(0, 20),
		gen.Float64Range(0, 1),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

func TestDecide_OutputSortedUnique(t *testing.T) {
	cfg := rateLimitedPolicy(t)

	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("reasons and triggers are sorted sets", prop.ForAll(
		func(ev *event.Event, score float64) bool {
			got := Decide(score, ev, cfg, ratelimit.NewState())
			return isSortedSet(got.Reasons) && isSortedSet(got.Triggers)
		},
		genEvent(),
		gen.Float64Range(0, 1),
	))
	properties.TestingRun(t)
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t, []string{}, sortedUnique(nil))
	assert.Equal(t, []string{"a", "b", "c"}, sortedUnique([]string{"c", "a", "b", "a", "c"}))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isSortedSet(list []string) bool {
	for i := 1; i < len(list); i++ {
		if list[i-1] >= list[i] {
			return false
		}
	}
	return true
}
