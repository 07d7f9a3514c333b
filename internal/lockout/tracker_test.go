package lockout_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vigil/internal/audit"
	"vigil/internal/lockout"
	"vigil/internal/lockout/store/memory"
	"vigil/pkg/requestcontext"
	"vigil/pkg/sentinel"
)

type recorderStub struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorderStub) Record(ctx context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorderStub) byAction(action string) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type TrackerSuite struct {
	suite.Suite
	store   *memory.Store
	trail   *recorderStub
	tracker *lockout.Tracker
	now     time.Time
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func (s *TrackerSuite) SetupTest() {
	s.store = memory.New()
	s.trail = &recorderStub{}
	policy := lockout.Policy{
		MaxAttempts:  5,
		LockDuration: 30 * time.Minute,
		ResetWindow:  15 * time.Minute,
	}
	tracker, err := lockout.NewTracker(s.store, s.trail, policy)
	s.Require().NoError(err)
	s.tracker = tracker
	s.now = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
}

func (s *TrackerSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *TrackerSuite) failTimes(n int, start time.Time) {
	for i := 0; i < n; i++ {
		at := start.Add(time.Duration(i) * time.Second)
		s.Require().NoError(s.tracker.RecordFailure(s.ctxAt(at), "user@example.com", "10.0.0.1"))
	}
}

func (s *TrackerSuite) TestFifthFailureLocksForThirtyMinutes() {
	s.failTimes(4, s.now)

	status, err := s.tracker.IsLocked(s.ctxAt(s.now.Add(5*time.Second)), "user@example.com")
	s.Require().NoError(err)
	s.False(status.Locked)

	fifth := s.now.Add(10 * time.Second)
	s.Require().NoError(s.tracker.RecordFailure(s.ctxAt(fifth), "user@example.com", "10.0.0.1"))

	status, err = s.tracker.IsLocked(s.ctxAt(fifth.Add(time.Second)), "user@example.com")
	s.Require().NoError(err)
	s.True(status.Locked)
	s.Equal(30*time.Minute-time.Second, status.Remaining)

	events := s.trail.byAction(audit.ActionAuthLockout)
	s.Require().Len(events, 1)
	s.Equal(audit.CategorySecurity, events[0].Category)
	s.Equal(audit.ResultLocked, events[0].Result)
	s.Equal(audit.SeverityHigh, events[0].Severity)
	s.Equal("user@example.com", events[0].ActorID)
	s.Equal("5", events[0].Metadata["failures"])
	s.Equal(fifth.Add(30*time.Minute).Format(time.RFC3339), events[0].Metadata["locked_until"])
}

func (s *TrackerSuite) TestFailureWhileLockedDoesNotExtendTheLock() {
	s.failTimes(5, s.now)

	sixth := s.now.Add(10 * time.Minute)
	s.Require().NoError(s.tracker.RecordFailure(s.ctxAt(sixth), "user@example.com", "10.0.0.9"))

	status, err := s.tracker.IsLocked(s.ctxAt(sixth), "user@example.com")
	s.Require().NoError(err)
	s.True(status.Locked)
	lockedUntil := s.now.Add(4 * time.Second).Add(30 * time.Minute)
	s.Equal(lockedUntil.Sub(sixth), status.Remaining)

	s.Len(s.trail.byAction(audit.ActionAuthLockout), 1)
}

func (s *TrackerSuite) TestSuccessClearsAnyState() {
	s.Run("clears an accumulating record", func() {
		s.failTimes(4, s.now)
		s.Require().NoError(s.tracker.RecordSuccess(s.ctxAt(s.now.Add(time.Minute)), "user@example.com"))

		rec, err := s.store.Get(context.Background(), "user@example.com")
		s.Require().NoError(err)
		s.Nil(rec)

		events := s.trail.byAction(audit.ActionAuthLockoutCleared)
		s.Require().Len(events, 1)
		s.Equal("successful_authentication", events[0].Metadata["reason"])
	})

	s.Run("clears an active lock", func() {
		s.failTimes(5, s.now)
		s.Require().NoError(s.tracker.RecordSuccess(s.ctxAt(s.now.Add(time.Minute)), "user@example.com"))

		status, err := s.tracker.IsLocked(s.ctxAt(s.now.Add(2*time.Minute)), "user@example.com")
		s.Require().NoError(err)
		s.False(status.Locked)
	})

	s.Run("no event when there was nothing to clear", func() {
		before := len(s.trail.byAction(audit.ActionAuthLockoutCleared))
		s.Require().NoError(s.tracker.RecordSuccess(s.ctxAt(s.now), "ghost@example.com"))
		s.Len(s.trail.byAction(audit.ActionAuthLockoutCleared), before)
	})
}

func (s *TrackerSuite) TestResetWindowStartsTheCountOver() {
	s.failTimes(4, s.now)

	late := s.now.Add(20 * time.Minute)
	s.Require().NoError(s.tracker.RecordFailure(s.ctxAt(late), "user@example.com", "10.0.0.1"))

	rec, err := s.store.Get(context.Background(), "user@example.com")
	s.Require().NoError(err)
	s.Require().NotNil(rec)
	s.Equal(1, rec.FailureCount)
	s.Empty(s.trail.byAction(audit.ActionAuthLockout))
}

func (s *TrackerSuite) TestIsLockedClearsAnExpiredLock() {
	s.failTimes(5, s.now)
	lockedUntil := s.now.Add(4 * time.Second).Add(30 * time.Minute)

	status, err := s.tracker.IsLocked(s.ctxAt(lockedUntil.Add(time.Second)), "user@example.com")
	s.Require().NoError(err)
	s.False(status.Locked)

	rec, err := s.store.Get(context.Background(), "user@example.com")
	s.Require().NoError(err)
	s.Nil(rec)

	events := s.trail.byAction(audit.ActionAuthLockoutCleared)
	s.Require().Len(events, 1)
	s.Equal("lock_expired", events[0].Metadata["reason"])
}

func (s *TrackerSuite) TestIdentityIsNormalized() {
	s.failTimes(5, s.now)

	status, err := s.tracker.IsLocked(s.ctxAt(s.now.Add(time.Minute)), "  USER@Example.com ")
	s.Require().NoError(err)
	s.True(status.Locked)
}

func (s *TrackerSuite) TestValidation() {
	s.ErrorIs(s.tracker.RecordFailure(s.ctxAt(s.now), "  ", "10.0.0.1"), sentinel.ErrInvalidInput)
	s.ErrorIs(s.tracker.RecordSuccess(s.ctxAt(s.now), ""), sentinel.ErrInvalidInput)
	_, err := s.tracker.IsLocked(s.ctxAt(s.now), "")
	s.ErrorIs(err, sentinel.ErrInvalidInput)
}
