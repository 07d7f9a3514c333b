package fraud

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"vigil/internal/audit"
	"vigil/pkg/requestcontext"
	"vigil/pkg/sentinel"
)

// fakeHistory is a scriptable history source.
type fakeHistory struct {
	mu       sync.Mutex
	recent   []Transaction
	failRead error
	recorded []Transaction
}

func (f *fakeHistory) Recent(ctx context.Context, identity string, window time.Duration) ([]Transaction, error) {
	if f.failRead != nil {
		return nil, f.failRead
	}
	return f.recent, nil
}

func (f *fakeHistory) Record(ctx context.Context, tx Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, tx)
	return nil
}

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

type ScorerSuite struct {
	suite.Suite
	history *fakeHistory
	trail   *recorderStub
	scorer  *Scorer
	now     time.Time
}

func TestScorerSuite(t *testing.T) {
	suite.Run(t, new(ScorerSuite))
}

func (s *ScorerSuite) SetupTest() {
	s.history = &fakeHistory{}
	s.trail = &recorderStub{}
	s.scorer = NewScorer(s.history, s.trail, testFraudConfig())
	s.now = time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC)
}

func (s *ScorerSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *ScorerSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ScorerSuite) TestAssess() {
	s.Run("missing identity is a validation error", func() {
		_, err := s.scorer.Assess(s.ctx(), Transaction{Amount: decimal.NewFromInt(10)})
		s.ErrorIs(err, sentinel.ErrInvalidInput)
		s.Empty(s.trail.events)
	})

	s.Run("approved transaction emits an INFO financial event", func() {
		tx := Transaction{Identity: "payer@example.com", Amount: decimal.NewFromInt(10)}
		assessment, err := s.scorer.Assess(s.ctx(), tx)
		s.Require().NoError(err)
		s.Equal(DecisionApproved, assessment.Decision)

		s.Require().Len(s.trail.events, 1)
		event := s.trail.events[0]
		s.Equal(audit.CategoryFinancial, event.Category)
		s.Equal(audit.ActionFraudCheck, event.Action)
		s.Equal(audit.SeverityInfo, event.Severity)
		s.Equal("0", event.Metadata["score"])
	})

	s.Run("blocked transaction emits a CRITICAL event carrying score and flags", func() {
		s.history.recent = []Transaction{
			{Identity: "payer@example.com", Amount: decimal.NewFromInt(1500), Timestamp: s.now.Add(-time.Minute)},
			{Identity: "payer@example.com", Amount: decimal.NewFromInt(100), Timestamp: s.now.Add(-2 * time.Minute)},
			{Identity: "payer@example.com", Amount: decimal.NewFromInt(100), Timestamp: s.now.Add(-3 * time.Minute)},
			{Identity: "payer@example.com", Amount: decimal.NewFromInt(100), Timestamp: s.now.Add(-4 * time.Minute)},
			{Identity: "payer@example.com", Amount: decimal.NewFromInt(100), Timestamp: s.now.Add(-5 * time.Minute)},
		}

		tx := Transaction{Identity: "payer@example.com", Amount: decimal.NewFromInt(1500)}
		assessment, err := s.scorer.Assess(s.ctx(), tx)
		s.Require().NoError(err)
		s.Equal(DecisionBlocked, assessment.Decision)
		s.Equal(75, assessment.RiskScore)

		s.Require().Len(s.trail.events, 1)
		event := s.trail.events[0]
		s.Equal(audit.SeverityCritical, event.Severity)
		s.Equal(audit.ResultBlocked, event.Result)
		s.Equal("75", event.Metadata["score"])
		s.Contains(event.Metadata["flags"], FlagHighVelocity)
	})

	s.Run("unavailable history degrades to empty instead of failing", func() {
		s.history.failRead = errors.New("redis down")

		tx := Transaction{Identity: "payer@example.com", Amount: decimal.NewFromInt(10)}
		assessment, err := s.scorer.Assess(s.ctx(), tx)
		s.Require().NoError(err)
		s.Equal(DecisionApproved, assessment.Decision)
		s.Zero(assessment.RiskScore)
	})

	s.Run("the assessed transaction feeds the history afterwards", func() {
		tx := Transaction{Identity: "payer@example.com", Amount: decimal.NewFromInt(10)}
		_, err := s.scorer.Assess(s.ctx(), tx)
		s.Require().NoError(err)

		s.Require().Len(s.history.recorded, 1)
		s.Equal("payer@example.com", s.history.recorded[0].Identity)
		s.Equal(s.now, s.history.recorded[0].Timestamp)
	})
}
