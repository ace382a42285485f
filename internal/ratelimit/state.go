package ratelimit

import (
	"time"

	"github.com/mbd888/fraudgate/internal/policy"
	"github.com/mbd888/fraudgate/internal/window"
)

// State is the mutable rate-limit state owned by one running engine: one
// sliding-window counter per entity dimension. It is safe for concurrent use.
type State struct {
	counters map[policy.Dimension]*window.Counter
}

// NewState returns empty per-dimension counters. opts apply to every
// dimension's counter.
func NewState(opts ...window.Option) *State {
	s := &State{counters: make(map[policy.Dimension]*window.Counter, len(policy.Dimensions))}
	for _, dim := range policy.Dimensions {
		s.counters[dim] = window.NewCounter(opts...)
	}
	return s
}

// Counter returns the counter for dim.
func (s *State) Counter(dim policy.Dimension) *window.Counter {
	return s.counters[dim]
}

// Reset clears every dimension. Safe to call concurrently with Evaluate.
func (s *State) Reset() {
	for _, dim := range policy.Dimensions {
		s.counters[dim].Reset()
	}
}

// Sweep drops keys not recorded for longer than idle from every dimension
// and returns the number removed per dimension.
func (s *State) Sweep(idle time.Duration) map[policy.Dimension]int {
	removed := make(map[policy.Dimension]int, len(policy.Dimensions))
	for _, dim := range policy.Dimensions {
		removed[dim] = s.counters[dim].Sweep(idle)
	}
	return removed
}

// Count returns the live count for key in dim as of its last record, or 0
// for an unknown dimension or key.
func (s *State) Count(dim policy.Dimension, key string) int {
	c, ok := s.counters[dim]
	if !ok {
		return 0
	}
	return c.Count(key)
}

// Stats returns the number of tracked keys per dimension.
func (s *State) Stats() map[policy.Dimension]int {
	keys := make(map[policy.Dimension]int, len(policy.Dimensions))
	for _, dim := range policy.Dimensions {
		keys[dim] = s.counters[dim].Keys()
	}
	return keys
}
