// Package window implements a per-key sliding-window event counter.
//
// Each key owns an ordered queue of event timestamps (unix seconds). Record
// appends a timestamp, evicts everything older than the trailing window and
// returns the number of timestamps left. Every timestamp is pushed once and
// popped at most once, so Record is amortized O(1).
//
// Keys live in hash shards. Calls for different keys proceed in parallel;
// calls for the same key are serialized by a per-key mutex. Reset and Sweep
// take shard write locks, so they never observe a queue mid-update.
//
// Idleness is judged per key on the counter's wall clock, never on event
// timestamps, so no caller-supplied timestamp can age out another key.
package window

import (
	"sort"
	"sync"
	"time"

	"github.com/mbd888/fraudgate/internal/syncutil"
)

// compactThreshold is the number of evicted slots a queue tolerates before
// its backing array is shifted down.
const compactThreshold = 32

// series is the timestamp queue for one key. Live entries are ts[head:]
// and are non-decreasing.
type series struct {
	mu      sync.Mutex
	ts      []float64
	head    int
	touched time.Time // wall-clock time of the last record
}

func (s *series) len() int {
	return len(s.ts) - s.head
}

func (s *series) newest() float64 {
	return s.ts[len(s.ts)-1]
}

// record inserts ts, evicts entries strictly older than newest-window and
// returns the live count. Late timestamps are inserted in sorted position
// so the queue stays ordered; eviction is anchored at the newest timestamp.
func (s *series) record(ts, window float64) int {
	if s.len() == 0 || ts >= s.newest() {
		s.ts = append(s.ts, ts)
	} else {
		live := s.ts[s.head:]
		idx := s.head + sort.Search(len(live), func(i int) bool { return live[i] > ts })
		s.ts = append(s.ts, 0)
		copy(s.ts[idx+1:], s.ts[idx:])
		s.ts[idx] = ts
	}

	cutoff := s.newest() - window
	for s.head < len(s.ts) && s.ts[s.head] < cutoff {
		s.head++
	}

	if s.head >= compactThreshold && s.head*2 >= len(s.ts) {
		s.ts = append(s.ts[:0], s.ts[s.head:]...)
		s.head = 0
	}
	return s.len()
}

// Counter tracks sliding-window counts for an unbounded set of keys.
// The zero value is not usable; call NewCounter.
type Counter struct {
	locks  syncutil.ShardedRWMutex
	shards [syncutil.Shards]map[string]*series
	now    func() time.Time
}

// Option configures a Counter.
type Option func(*Counter)

// WithClock sets the wall clock used to track key idleness.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) {
		c.now = now
	}
}

// NewCounter returns an empty counter.
func NewCounter(opts ...Option) *Counter {
	c := &Counter{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	for i := range c.shards {
		c.shards[i] = make(map[string]*series)
	}
	return c
}

// Record adds ts to key's queue and returns the number of timestamps in the
// trailing window of length window seconds.
func (c *Counter) Record(key string, ts, window float64) int {
	now := c.now()

	i := c.locks.Index(key)
	unlock := c.locks.RLock(i)
	if s, ok := c.shards[i][key]; ok {
		s.mu.Lock()
		n := s.record(ts, window)
		s.touch(now)
		s.mu.Unlock()
		unlock()
		return n
	}
	unlock()

	unlock = c.locks.Lock(i)
	defer unlock()
	s, ok := c.shards[i][key]
	if !ok {
		s = &series{}
		c.shards[i][key] = s
	}
	// The shard write lock excludes every other holder of s.mu.
	n := s.record(ts, window)
	s.touch(now)
	return n
}

// touch never moves backwards, so a slow caller cannot make a key look idle.
func (s *series) touch(now time.Time) {
	if now.After(s.touched) {
		s.touched = now
	}
}

// Count returns key's live count as of its last Record without mutating it.
func (c *Counter) Count(key string) int {
	i := c.locks.Index(key)
	unlock := c.locks.RLock(i)
	defer unlock()
	s, ok := c.shards[i][key]
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.len()
}

// Keys returns the number of tracked keys.
func (c *Counter) Keys() int {
	total := 0
	for i := range c.shards {
		unlock := c.locks.RLock(i)
		total += len(c.shards[i])
		unlock()
	}
	return total
}

// Reset drops every key. It waits for in-flight Record calls to finish and
// swaps all shards while holding every shard lock.
func (c *Counter) Reset() {
	unlock := c.locks.LockAll()
	defer unlock()
	for i := range c.shards {
		c.shards[i] = make(map[string]*series)
	}
}

// Sweep removes keys not recorded for longer than idle on the counter's
// clock and returns how many were removed. The decision for one key never
// depends on another key's timestamps. When event timestamps track the wall
// clock and idle is at least the rate-limit window, a swept key's queue
// would have been fully evicted by its next Record anyway.
func (c *Counter) Sweep(idle time.Duration) int {
	cutoff := c.now().Add(-idle)

	removed := 0
	for i := range c.shards {
		unlock := c.locks.Lock(i)
		for key, s := range c.shards[i] {
			if s.len() == 0 || s.touched.Before(cutoff) {
				delete(c.shards[i], key)
				removed++
			}
		}
		unlock()
	}
	return removed
}
