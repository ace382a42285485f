package syncutil

import (
	"hash/fnv"
	"sync"
)

// Shards is the fixed number of shards in a ShardedRWMutex.
const Shards = 256

// ShardedRWMutex provides a fixed-size pool of read-write mutexes keyed by
// string. Callers keep their own per-shard data indexed by Index(key), take
// the read lock for per-key work and the write lock to change shard
// membership. LockAll excludes every shard at once.
type ShardedRWMutex struct {
	shards [Shards]sync.RWMutex
}

// Index returns the shard index for key.
func (s *ShardedRWMutex) Index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % Shards)
}

// RLock read-locks shard i and returns the matching unlock function.
func (s *ShardedRWMutex) RLock(i int) func() {
	mu := &s.shards[i]
	mu.RLock()
	return mu.RUnlock
}

// Lock write-locks shard i and returns the matching unlock function.
func (s *ShardedRWMutex) Lock(i int) func() {
	mu := &s.shards[i]
	mu.Lock()
	return mu.Unlock
}

// LockAll write-locks every shard in index order. Callers holding a single
// shard lock never block LockAll from making progress, so ordered
// acquisition cannot deadlock.
func (s *ShardedRWMutex) LockAll() func() {
	for i := range s.shards {
		s.shards[i].Lock()
	}
	return func() {
		for i := len(s.shards) - 1; i >= 0; i-- {
			s.shards[i].Unlock()
		}
	}
}
