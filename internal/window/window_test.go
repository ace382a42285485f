package window

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_CountsWithinWindow(t *testing.T) {
	c := NewCounter()
	base := 1_700_000_000.0

	for i := 0; i < 8; i++ {
		n := c.Record("u-1", base+float64(i), 60)
		assert.Equal(t, i+1, n, "call %d", i)
	}
	assert.Equal(t, 8, c.Count("u-1"))
}

func TestRecord_EvictsStrictlyOlderThanWindow(t *testing.T) {
	c := NewCounter()

	c.Record("k", 100, 10)
	c.Record("k", 105, 10)
	// 100 == 110-10 stays in the window.
	assert.Equal(t, 3, c.Record("k", 110, 10))
	// 100 < 111-10 is evicted, 105 stays.
	assert.Equal(t, 3, c.Record("k", 111, 10))
	// Everything before 200-10 goes.
	assert.Equal(t, 1, c.Record("k", 200, 10))
}

func TestRecord_KeysAreIndependent(t *testing.T) {
	c := NewCounter()
	c.Record("a", 1, 60)
	c.Record("a", 2, 60)
	assert.Equal(t, 1, c.Record("b", 3, 60))
	assert.Equal(t, 3, c.Record("a", 3, 60))
	assert.Equal(t, 2, c.Keys())
	assert.Equal(t, 0, c.Count("missing"))
}

func TestRecord_OutOfOrderStaysSorted(t *testing.T) {
	c := NewCounter()

	c.Record("k", 100, 10)
	c.Record("k", 108, 10)
	// Late but inside the window anchored at 108.
	assert.Equal(t, 3, c.Record("k", 104, 10))
	// Late and older than 108-10: inserted then evicted immediately.
	assert.Equal(t, 3, c.Record("k", 90, 10))

	s := c.shards[c.locks.Index("k")]["k"]
	assert.Equal(t, []float64{100, 104, 108}, s.ts[s.head:])

	// Anchor moves forward; 100 and 104 drop out.
	assert.Equal(t, 2, c.Record("k", 115, 10))
}

func TestRecord_CompactsBackingArray(t *testing.T) {
	c := NewCounter()
	for i := 0; i < 1000; i++ {
		c.Record("k", float64(i), 5)
	}
	s := c.shards[c.locks.Index("k")]["k"]
	assert.Equal(t, 6, s.len())
	assert.Less(t, len(s.ts), 2*compactThreshold+8, "evicted slots should be reclaimed")
}

// Property: for non-decreasing timestamps the count after the i-th call is
// the number of earlier-or-equal timestamps t_j with t_j >= t_i - W.
func TestRecord_PropertySlidingWindow(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("count equals timestamps inside trailing window", prop.ForAll(
		func(increments []int, w int) bool {
			c := NewCounter()
			var seen []float64
			ts := 1_700_000_000.0
			for _, inc := range increments {
				ts += float64(inc)
				seen = append(seen, ts)

				want := 0
				for _, tj := range seen {
					if tj >= ts-float64(w) {
						want++
					}
				}
				if got := c.Record("key", ts, float64(w)); got != want {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 10)),
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}

// Property: the queue stays non-decreasing whatever order timestamps arrive in.
func TestRecord_PropertyQueueOrdered(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("queue is sorted after arbitrary inserts", prop.ForAll(
		func(stamps []int, w int) bool {
			c := NewCounter()
			for _, ts := range stamps {
				c.Record("key", float64(ts), float64(w))
			}
			if len(stamps) == 0 {
				return c.Keys() == 0
			}
			s := c.shards[c.locks.Index("key")]["key"]
			live := s.ts[s.head:]
			for i := 1; i < len(live); i++ {
				if live[i] < live[i-1] {
					return false
				}
			}
			return live[0] >= live[len(live)-1]-float64(w)
		},
		gen.SliceOf(gen.IntRange(0, 200)),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

func TestRecord_ConcurrentSameKey(t *testing.T) {
	c := NewCounter()
	const goroutines = 50
	const perGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				c.Record("hot", 1000, 60)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, c.Count("hot"))
}

func TestRecord_ConcurrentDistinctKeys(t *testing.T) {
	c := NewCounter()
	const keys = 200

	var wg sync.WaitGroup
	wg.Add(keys)
	for k := 0; k < keys; k++ {
		go func(k int) {
			defer wg.Done()
			key := fmt.Sprintf("user-%d", k)
			for i := 0; i < 10; i++ {
				c.Record(key, float64(i), 60)
			}
		}(k)
	}
	wg.Wait()

	assert.Equal(t, keys, c.Keys())
	for k := 0; k < keys; k++ {
		assert.Equal(t, 10, c.Count(fmt.Sprintf("user-%d", k)))
	}
}

func TestReset(t *testing.T) {
	c := NewCounter()
	c.Record("a", 10, 60)
	c.Record("b", 20, 60)
	require.Equal(t, 2, c.Keys())

	c.Reset()
	assert.Equal(t, 0, c.Keys())
	assert.Equal(t, 0, c.Count("a"))
	assert.Equal(t, 1, c.Record("a", 30, 60))
}

func TestReset_ConcurrentWithRecord(t *testing.T) {
	c := NewCounter()
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			key := fmt.Sprintf("k-%d", g%3)
			ts := 0.0
			for {
				select {
				case <-stop:
					return
				default:
				}
				ts++
				if n := c.Record(key, ts, 1e9); n < 1 {
					t.Errorf("Record returned %d, want >= 1", n)
					return
				}
			}
		}(g)
	}

	for i := 0; i < 50; i++ {
		c.Reset()
	}
	close(stop)
	wg.Wait()

	// Each surviving queue must still be ordered.
	for i := range c.shards {
		for key, s := range c.shards[i] {
			live := s.ts[s.head:]
			for j := 1; j < len(live); j++ {
				if live[j] < live[j-1] {
					t.Fatalf("queue for %s out of order after reset", key)
				}
			}
		}
	}
}

// fakeClock is a settable wall clock safe for concurrent use.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	c := NewCounter(WithClock(clock.Now))
	assert.Equal(t, 0, c.Sweep(time.Minute), "empty counter has nothing to sweep")

	c.Record("idle", 100, 60)
	clock.Advance(5 * time.Minute)
	c.Record("recent", 400, 60)
	clock.Advance(time.Minute)
	c.Record("busy", 460, 60)

	removed := c.Sweep(6 * time.Minute)
	assert.Equal(t, 0, removed, "idle for exactly the horizon stays")

	clock.Advance(time.Second)
	removed = c.Sweep(6 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, c.Count("idle"))
	assert.Equal(t, 1, c.Count("busy"))
	assert.Equal(t, 1, c.Count("recent"))

	// A later event for the swept key counts exactly as before the sweep.
	assert.Equal(t, 1, c.Record("idle", 461, 60))
}

func TestSweep_IgnoresOtherKeysTimestamps(t *testing.T) {
	clock := newFakeClock()
	c := NewCounter(WithClock(clock.Now))
	base := 1_700_000_000.0

	for i := 0; i < 5; i++ {
		c.Record("alice", base+float64(i), 60)
	}
	// A far-future timestamp on another key must not age alice out.
	c.Record("mallory", base+1e9, 60)

	assert.Equal(t, 0, c.Sweep(6*time.Minute))
	assert.Equal(t, 6, c.Record("alice", base+5, 60))
}

func TestSweep_AfterReset(t *testing.T) {
	clock := newFakeClock()
	c := NewCounter(WithClock(clock.Now))

	c.Record("a", 10, 60)
	c.Reset()
	c.Record("b", 20, 60)

	clock.Advance(time.Hour)
	assert.Equal(t, 1, c.Sweep(time.Minute), "keys recorded after a reset are still swept")
	assert.Equal(t, 0, c.Keys())
}

func TestSweep_TouchNeverMovesBackwards(t *testing.T) {
	clock := newFakeClock()
	c := NewCounter(WithClock(clock.Now))

	c.Record("k", 10, 60)
	clock.Advance(-time.Hour)
	c.Record("k", 11, 60)
	clock.Advance(time.Hour)

	assert.Equal(t, 0, c.Sweep(time.Minute))
	assert.Equal(t, 2, c.Count("k"))
}
