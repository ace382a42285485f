package risk

import (
	"context"
	"sync"
)

// DefaultAuditCapacity bounds a MemoryStore created with capacity <= 0.
const DefaultAuditCapacity = 10000

// MemoryStore is a bounded in-memory Store. Once full, the oldest
// assessment is overwritten.
type MemoryStore struct {
	mu    sync.RWMutex
	ring  []*Assessment
	next  int
	count int
}

// NewMemoryStore creates an in-memory audit store holding at most capacity
// assessments.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &MemoryStore{ring: make([]*Assessment, capacity)}
}

func (s *MemoryStore) Record(ctx context.Context, assessment *Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring[s.next] = assessment.clone()
	s.next = (s.next + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	}
	return nil
}

// Recent returns up to limit assessments, most recent first.
func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]*Assessment, error) {
	return s.collect(limit, func(*Assessment) bool { return true }), nil
}

// ListByUser returns up to limit assessments for userID, most recent first.
func (s *MemoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error) {
	return s.collect(limit, func(a *Assessment) bool { return a.UserID == userID }), nil
}

// Len returns the number of stored assessments.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *MemoryStore) collect(limit int, match func(*Assessment) bool) []*Assessment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > s.count {
		limit = s.count
	}
	result := make([]*Assessment, 0, limit)
	for i := 1; i <= s.count && len(result) < limit; i++ {
		a := s.ring[(s.next-i+len(s.ring))%len(s.ring)]
		if match(a) {
			result = append(result, a.clone())
		}
	}
	return result
}
