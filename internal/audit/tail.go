package audit

import "sync"

// Tail is a bounded, thread-safe ring buffer holding the most recent events.
// It serves low-latency "recent activity" reads and is best-effort only: the
// durable store remains authoritative. When full, the oldest events are
// dropped to make room for new ones.
type Tail struct {
	mu       sync.Mutex
	events   []Event
	head     int // next write position
	tail     int // oldest element position
	count    int
	capacity int
}

// NewTail creates a tail buffer with the given capacity.
func NewTail(capacity int) *Tail {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Tail{
		events:   make([]Event, capacity),
		capacity: capacity,
	}
}

// Add appends an event, dropping the oldest if the buffer is full.
func (t *Tail) Add(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count >= t.capacity {
		t.tail = (t.tail + 1) % t.capacity
		t.count--
	}

	t.events[t.head] = event
	t.head = (t.head + 1) % t.capacity
	t.count++
}

// Recent returns up to limit events for a category, most recent first.
// Category "" matches every category.
func (t *Tail) Recent(category Category, limit int) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > t.count {
		limit = t.count
	}

	out := make([]Event, 0, limit)
	// Walk backwards from the newest entry.
	for i := 1; i <= t.count && len(out) < limit; i++ {
		idx := (t.head - i + t.capacity) % t.capacity
		ev := t.events[idx]
		if category != "" && ev.Category != category {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Len returns the current number of buffered events.
func (t *Tail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}
