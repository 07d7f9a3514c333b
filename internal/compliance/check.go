// Package compliance runs a fixed battery of policy checks on a schedule,
// records the outcome to the audit trail, and serves windowed reports from a
// bounded in-process history.
package compliance

import (
	"context"
	"math"
	"time"
)

// Check is a single named policy control. Evaluate must be read-only against
// shared infrastructure: checks run concurrently within one run and must not
// write anything another check could observe.
type Check interface {
	ControlID() string
	Name() string
	Evaluate(ctx context.Context) Result
}

// Result is the outcome of one control evaluation. Produced fresh on every
// run, never updated.
type Result struct {
	ControlID string    `json:"control_id"`
	Name      string    `json:"name"`
	Passed    bool      `json:"passed"`
	Issues    []string  `json:"issues,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Run aggregates every control's result for one runner cycle.
type Run struct {
	Timestamp   time.Time `json:"timestamp"`
	TotalChecks int       `json:"total_checks"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	PassRate    float64   `json:"pass_rate"`
	Results     []Result  `json:"results"`
}

// passRate computes passed/total rounded to two decimals. A run with no
// checks counts as fully passing.
func passRate(passed, total int) float64 {
	if total == 0 {
		return 1
	}
	return math.Round(float64(passed)/float64(total)*100) / 100
}
