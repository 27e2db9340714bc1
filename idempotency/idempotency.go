// Package idempotency deduplicates at-least-once plan deliveries at the
// Actor, the authoritative deduplicator since broker ordering between
// Planner and Actor is not guaranteed.
package idempotency

import "sync"

// SeenSet tracks idempotency keys already processed. The default
// implementation is process-local; a durable store is required for
// multi-replica Actors to remain the authoritative deduplicator (§9).
type SeenSet interface {
	// MarkIfNew records key as seen and reports whether it was new. A
	// false return means this key has already been processed and the
	// caller must drop the delivery without side effects.
	MarkIfNew(key string) bool
}

// InMemorySeenSet is the default process-local SeenSet.
type InMemorySeenSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemorySeenSet creates an empty seen-set.
func NewInMemorySeenSet() *InMemorySeenSet {
	return &InMemorySeenSet{seen: make(map[string]struct{})}
}

// MarkIfNew implements SeenSet.
func (s *InMemorySeenSet) MarkIfNew(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Key derives a plan's idempotency key: the plan's own explicit key if
// set, otherwise "{incidentID}:{planID}".
func Key(explicit, incidentID, planID string) string {
	if explicit != "" {
		return explicit
	}
	return incidentID + ":" + planID
}
