package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vigil/internal/audit"
	"vigil/pkg/requestcontext"
)

// Store is the in-memory audit store used for tests and single-node
// development. Events live in per-category collections; each collection
// expires its own records per the retention declared in the audit package,
// mirroring the TTL behavior of the durable backend.
type Store struct {
	mu     sync.RWMutex
	events map[audit.Category][]audit.Event
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{events: make(map[audit.Category][]audit.Event)}
}

// Append writes a single event to its category's collection.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(event)
	s.expireLocked(requestcontext.Now(ctx))
	return nil
}

// AppendBatch writes a batch of events.
func (s *Store) AppendBatch(ctx context.Context, events []audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range events {
		s.appendLocked(event)
	}
	s.expireLocked(requestcontext.Now(ctx))
	return nil
}

// Query returns events matching the filter. Expired records are never
// returned even if the lazy sweep has not removed them yet.
func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := requestcontext.Now(ctx)

	var candidates []audit.Event
	if filter.Category != "" {
		candidates = s.events[filter.Category]
	} else {
		for _, evs := range s.events {
			candidates = append(candidates, evs...)
		}
	}

	matched := make([]audit.Event, 0, len(candidates))
	for _, ev := range candidates {
		if now.Sub(ev.Timestamp) > audit.RetentionFor(ev.Category) {
			continue
		}
		if !filter.From.IsZero() && ev.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && ev.Timestamp.After(filter.To) {
			continue
		}
		matched = append(matched, ev)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if filter.Ascending {
			return matched[i].Timestamp.Before(matched[j].Timestamp)
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Len reports the live (unexpired) event count for a category.
func (s *Store) Len(ctx context.Context, category audit.Category) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := requestcontext.Now(ctx)
	n := 0
	for _, ev := range s.events[category] {
		if now.Sub(ev.Timestamp) <= audit.RetentionFor(category) {
			n++
		}
	}
	return n
}

func (s *Store) appendLocked(event audit.Event) {
	s.events[event.Category] = append(s.events[event.Category], event)
}

func (s *Store) expireLocked(now time.Time) {
	for cat, evs := range s.events {
		ttl := audit.RetentionFor(cat)
		kept := evs[:0]
		for _, ev := range evs {
			if now.Sub(ev.Timestamp) <= ttl {
				kept = append(kept, ev)
			}
		}
		s.events[cat] = kept
	}
}
