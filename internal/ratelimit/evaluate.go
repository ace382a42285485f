package ratelimit

import (
	"github.com/mbd888/fraudgate/internal/event"
	"github.com/mbd888/fraudgate/internal/policy"
)

// Trigger levels.
const (
	LevelReview = "review"
	LevelBlock  = "block"
)

// Trigger formats the identifier for a rate-limit trigger, e.g.
// "rate_limit:device:block".
func Trigger(dim policy.Dimension, level string) string {
	return "rate_limit:" + string(dim) + ":" + level
}

// Outcome is the result of evaluating one event against the rate limits.
type Outcome struct {
	// Counts holds the post-insert window count per dimension.
	Counts map[policy.Dimension]int
	// Triggers lists fired triggers in dimension order.
	Triggers []string
	Block    bool
	Review   bool
}

// Key returns the event's identifier for dim. ev must be normalized.
func Key(ev *event.Event, dim policy.Dimension) string {
	switch dim {
	case policy.DimensionUser:
		return ev.UserID
	case policy.DimensionDevice:
		return ev.DeviceID
	case policy.DimensionIP:
		return ev.IPID
	}
	return ""
}

// Evaluate records ev in each dimension's counter and maps the resulting
// counts to triggers. Each dimension is mutated exactly once. A nil state or
// nil limits contributes nothing and records nothing.
func Evaluate(state *State, ev *event.Event, limits *policy.RateLimits) Outcome {
	var out Outcome
	if state == nil || limits == nil {
		return out
	}

	window := float64(limits.WindowSeconds)
	out.Counts = make(map[policy.Dimension]int, len(policy.Dimensions))
	for _, dim := range policy.Dimensions {
		count := state.Counter(dim).Record(Key(ev, dim), ev.EventTS, window)
		out.Counts[dim] = count

		review, block := limits.Limits(dim)
		switch {
		case count >= block:
			out.Triggers = append(out.Triggers, Trigger(dim, LevelBlock))
			out.Block = true
		case count >= review:
			out.Triggers = append(out.Triggers, Trigger(dim, LevelReview))
			out.Review = true
		}
	}
	return out
}
