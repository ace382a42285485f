package simulation

import (
	"math"
	"sort"

	"github.com/mbd888/fraudgate/internal/event"
	"github.com/mbd888/fraudgate/internal/policy"
	"github.com/mbd888/fraudgate/internal/ratelimit"
	"github.com/mbd888/fraudgate/internal/reasons"
	"github.com/mbd888/fraudgate/internal/risk"
)

// TopTriggers is the number of triggers listed in a Report.
const TopTriggers = 10

// HeuristicScore is the fallback scorer used when no model is available.
// It returns a score in [0.05, 0.99].
func HeuristicScore(ev *event.Event) float64 {
	score := 0.05
	if reasons.HasRiskToken(ev.MessageText) {
		score += 0.35
	}
	score += math.Min(float64(ev.PaymentAttempts)*0.06, 0.25)
	if ev.AccountAgeDays < 7 {
		score += 0.2
	}
	if ev.ChargebackHistory == 1 {
		score += 0.18
	}
	if ev.DeviceReuseCount >= 4 {
		score += 0.14
	}
	return math.Min(score, 0.99)
}

// TriggerCount is one row of the trigger frequency table.
type TriggerCount struct {
	Trigger string `json:"trigger"`
	Count   int    `json:"count"`
}

// Report aggregates a simulation run.
type Report struct {
	NEvents              int                   `json:"n_events"`
	Decisions            map[risk.Decision]int `json:"decisions"`
	ReviewPrecisionProxy float64               `json:"review_precision_proxy"`
	BlockPrecisionProxy  float64               `json:"block_precision_proxy"`
	TopPolicyTriggers    []TriggerCount        `json:"top_policy_triggers"`
}

// Run decides every event in order against a fresh rate-limit state, scoring
// each with HeuristicScore, and aggregates the outcome. The precision proxies
// are the share of review (block) decisions whose event is labelled fraud.
func Run(cfg *policy.Config, events []LabeledEvent) Report {
	state := ratelimit.NewState()

	decisions := map[risk.Decision]int{
		risk.DecisionAllow:  0,
		risk.DecisionReview: 0,
		risk.DecisionBlock:  0,
	}
	triggers := make(map[string]int)
	var reviewFraud, blockFraud int

	for i := range events {
		ev := &events[i].Event
		res := risk.Decide(HeuristicScore(ev), ev, cfg, state)
		decisions[res.Decision]++
		for _, t := range res.Triggers {
			triggers[t]++
		}
		if !events[i].IsFraud {
			continue
		}
		switch res.Decision {
		case risk.DecisionReview:
			reviewFraud++
		case risk.DecisionBlock:
			blockFraud++
		}
	}

	return Report{
		NEvents:              len(events),
		Decisions:            decisions,
		ReviewPrecisionProxy: ratio(reviewFraud, decisions[risk.DecisionReview]),
		BlockPrecisionProxy:  ratio(blockFraud, decisions[risk.DecisionBlock]),
		TopPolicyTriggers:    topTriggers(triggers, TopTriggers),
	}
}

// ratio is num/den rounded to four decimals; den of zero counts as one.
func ratio(num, den int) float64 {
	return math.Round(float64(num)/float64(max(den, 1))*1e4) / 1e4
}

// topTriggers sorts by count descending, then by name.
func topTriggers(counts map[string]int, n int) []TriggerCount {
	out := make([]TriggerCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TriggerCount{Trigger: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Trigger < out[j].Trigger
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
