package lockout

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"vigil/internal/audit"
	"vigil/internal/platform/metrics"
	"vigil/pkg/requestcontext"
	"vigil/pkg/sentinel"
)

// Recorder accepts audit events. Satisfied by the audit trail.
type Recorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// Tracker is the lockout service. State lives in the store; the tracker owns
// the policy, the audit/metric emission on transitions, and the periodic
// garbage-collection sweep.
type Tracker struct {
	store   Store
	trail   Recorder
	policy  Policy
	logger  *slog.Logger
	metrics *metrics.Metrics

	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger.With("component", "lockout") }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithSweepInterval sets the garbage-collection cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.sweepInterval = d
		}
	}
}

// NewTracker constructs a tracker over a store.
func NewTracker(store Store, trail Recorder, policy Policy, opts ...Option) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("lockout store is required")
	}
	t := &Tracker{
		store:         store,
		trail:         trail,
		policy:        policy,
		logger:        slog.Default(),
		sweepInterval: time.Hour,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// RecordFailure registers one failed authentication attempt. Reaching the
// attempt ceiling locks the identity; failures while locked are ignored.
func (t *Tracker) RecordFailure(ctx context.Context, identity, source string) error {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return fmt.Errorf("%w: identity is required", sentinel.ErrInvalidInput)
	}

	now := requestcontext.Now(ctx)
	rec, lockedNow, err := t.store.Fail(ctx, identity, source, now, t.policy)
	if err != nil {
		return fmt.Errorf("record failure for %s: %w", identity, err)
	}

	if lockedNow {
		if t.metrics != nil {
			t.metrics.LockoutsTriggered.Inc()
		}
		t.logger.Warn("identity locked out",
			"identity", identity,
			"failures", rec.FailureCount,
			"locked_until", rec.LockedUntil,
		)
		t.audit(ctx, audit.Event{
			Category: audit.CategorySecurity,
			Action:   audit.ActionAuthLockout,
			Result:   audit.ResultLocked,
			Severity: audit.SeverityHigh,
			ActorID:  identity,
			SourceIP: source,
			Metadata: map[string]string{
				"failures":     strconv.Itoa(rec.FailureCount),
				"locked_until": rec.LockedUntil.Format(time.RFC3339),
			},
		})
	}
	return nil
}

// RecordSuccess clears the identity's record unconditionally, whatever state
// it was in.
func (t *Tracker) RecordSuccess(ctx context.Context, identity string) error {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return fmt.Errorf("%w: identity is required", sentinel.ErrInvalidInput)
	}

	existed, err := t.store.Delete(ctx, identity)
	if err != nil {
		return fmt.Errorf("clear lockout for %s: %w", identity, err)
	}
	if existed {
		if t.metrics != nil {
			t.metrics.LockoutsCleared.Inc()
		}
		t.audit(ctx, audit.Event{
			Category: audit.CategorySecurity,
			Action:   audit.ActionAuthLockoutCleared,
			Result:   audit.ResultSuccess,
			Severity: audit.SeverityInfo,
			ActorID:  identity,
			Metadata: map[string]string{"reason": "successful_authentication"},
		})
	}
	return nil
}

// IsLocked reports the identity's lock state. An expired lock is cleared as
// a side effect and reported as not locked.
func (t *Tracker) IsLocked(ctx context.Context, identity string) (Status, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return Status{}, fmt.Errorf("%w: identity is required", sentinel.ErrInvalidInput)
	}

	rec, err := t.store.Get(ctx, identity)
	if err != nil {
		return Status{}, fmt.Errorf("get lockout for %s: %w", identity, err)
	}
	if rec == nil || rec.LockedUntil == nil {
		return Status{}, nil
	}

	now := requestcontext.Now(ctx)
	if now.Before(*rec.LockedUntil) {
		return Status{Locked: true, Remaining: rec.LockedUntil.Sub(now)}, nil
	}

	cleared, err := t.store.DeleteExpired(ctx, identity, now)
	if err != nil {
		return Status{}, fmt.Errorf("clear expired lockout for %s: %w", identity, err)
	}
	if cleared {
		if t.metrics != nil {
			t.metrics.LockoutsCleared.Inc()
		}
		t.audit(ctx, audit.Event{
			Category: audit.CategorySecurity,
			Action:   audit.ActionAuthLockoutCleared,
			Result:   audit.ResultSuccess,
			Severity: audit.SeverityInfo,
			ActorID:  identity,
			Metadata: map[string]string{"reason": "lock_expired"},
		})
	}
	return Status{}, nil
}

// StartSweep launches the periodic garbage-collection of stale records.
func (t *Tracker) StartSweep() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.sweep()
			}
		}
	}()
}

// Stop halts the sweep loop.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	t.wg.Wait()
}

func (t *Tracker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := t.store.Sweep(ctx, time.Now(), t.policy.ResetWindow)
	if err != nil {
		t.logger.Error("lockout sweep failed", "error", err)
		return
	}
	if removed > 0 {
		t.logger.Info("lockout sweep", "removed", removed)
	}
}

// audit records a transition event; persistence failures never propagate to
// the triggering authentication flow.
func (t *Tracker) audit(ctx context.Context, event audit.Event) {
	if t.trail == nil {
		return
	}
	if err := t.trail.Record(ctx, event); err != nil {
		t.logger.Error("record lockout audit event", "error", err)
	}
}
