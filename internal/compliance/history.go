package compliance

import (
	"sync"
	"time"
)

// History is the bounded in-process store of completed runs. Oldest runs are
// evicted once the limit is reached; the durable audit trail remains the
// long-term record.
type History struct {
	mu    sync.RWMutex
	runs  []Run
	limit int
}

// NewHistory creates a history bounded to limit runs.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 1000
	}
	return &History{limit: limit}
}

// Add appends a run, evicting the oldest when full.
func (h *History) Add(run Run) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, run)
	if len(h.runs) > h.limit {
		h.runs = h.runs[len(h.runs)-h.limit:]
	}
}

// Since returns runs whose timestamp falls inside [from, now], oldest first.
func (h *History) Since(from time.Time) []Run {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Run
	for _, run := range h.runs {
		if !run.Timestamp.Before(from) {
			out = append(out, run)
		}
	}
	return out
}

// Len returns the number of retained runs.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runs)
}

// Latest returns the most recent run and whether one exists.
func (h *History) Latest() (Run, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.runs) == 0 {
		return Run{}, false
	}
	return h.runs[len(h.runs)-1], true
}
