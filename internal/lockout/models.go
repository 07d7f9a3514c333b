// Package lockout tracks failed authentication attempts per identity and
// escalates repeated failures into a temporary lock.
package lockout

import (
	"strings"
	"time"

	"vigil/internal/platform/config"
)

const maxSources = 10

// Policy is the escalation policy applied on every failure.
type Policy struct {
	MaxAttempts  int
	LockDuration time.Duration
	ResetWindow  time.Duration
}

// PolicyFromConfig maps configuration onto a policy.
func PolicyFromConfig(cfg config.Lockout) Policy {
	return Policy{
		MaxAttempts:  cfg.MaxAttempts,
		LockDuration: cfg.LockDuration,
		ResetWindow:  cfg.ResetWindow,
	}
}

// Record is the per-identity failure state. Absent record means CLEAN;
// a set LockedUntil means LOCKED until that instant.
type Record struct {
	Identity      string     `json:"identity"`
	FailureCount  int        `json:"failure_count"`
	LastFailureAt time.Time  `json:"last_failure_at"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	Sources       []string   `json:"sources,omitempty"`
}

// LockedAt reports whether the record is locked at the given instant.
func (r *Record) LockedAt(now time.Time) bool {
	return r != nil && r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// addSource appends a source address, deduplicating consecutive repeats and
// keeping the list bounded to the most recent entries.
func (r *Record) addSource(source string) {
	if source == "" {
		return
	}
	if n := len(r.Sources); n > 0 && r.Sources[n-1] == source {
		return
	}
	r.Sources = append(r.Sources, source)
	if len(r.Sources) > maxSources {
		r.Sources = r.Sources[len(r.Sources)-maxSources:]
	}
}

// Status is the caller-facing lock state.
type Status struct {
	Locked    bool          `json:"locked"`
	Remaining time.Duration `json:"remaining,omitempty"`
}

// NormalizeIdentity canonicalizes an identity before keying, so
// "User@Example.COM " and "user@example.com" share one record.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// ApplyFailure is the failure transition, kept pure so every store applies
// identical semantics under its own atomicity mechanism.
//
// Rules: a failure while locked changes nothing (no lock extension); an
// absent, stale or expired-lock record resets to a fresh count of one; the
// count reaching MaxAttempts sets LockedUntil exactly once.
func ApplyFailure(rec *Record, identity, source string, now time.Time, p Policy) (Record, bool) {
	if rec.LockedAt(now) {
		return *rec, false
	}

	var updated Record
	stale := rec == nil ||
		rec.LockedUntil != nil || // expired lock: treated as CLEAN
		now.Sub(rec.LastFailureAt) > p.ResetWindow
	if stale {
		updated = Record{Identity: identity, FailureCount: 1, LastFailureAt: now}
	} else {
		updated = *rec
		updated.Sources = append([]string(nil), rec.Sources...)
		updated.FailureCount++
		updated.LastFailureAt = now
	}
	updated.addSource(source)

	lockedNow := false
	if updated.FailureCount >= p.MaxAttempts {
		until := now.Add(p.LockDuration)
		updated.LockedUntil = &until
		lockedNow = true
	}
	return updated, lockedNow
}
