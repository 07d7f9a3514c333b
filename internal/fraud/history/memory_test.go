package history

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"vigil/internal/fraud"
	"vigil/pkg/requestcontext"
)

type MemoryHistorySuite struct {
	suite.Suite
	history *Memory
	now     time.Time
}

func TestMemoryHistorySuite(t *testing.T) {
	suite.Run(t, new(MemoryHistorySuite))
}

func (s *MemoryHistorySuite) SetupTest() {
	s.history = NewMemory(100, 10*time.Minute)
	s.now = time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC)
}

func (s *MemoryHistorySuite) SetupSubTest() {
	s.SetupTest()
}

func (s *MemoryHistorySuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *MemoryHistorySuite) tx(identity string, amount int64, at time.Time) fraud.Transaction {
	return fraud.Transaction{Identity: identity, Amount: decimal.NewFromInt(amount), Timestamp: at}
}

func (s *MemoryHistorySuite) TestRecentWindow() {
	s.Run("unknown identity has no history", func() {
		txs, err := s.history.Recent(s.ctxAt(s.now), "nobody", 10*time.Minute)
		s.NoError(err)
		s.Empty(txs)
	})

	s.Run("only transactions inside the window are returned", func() {
		ctx := s.ctxAt(s.now)
		s.Require().NoError(s.history.Record(ctx, s.tx("a", 10, s.now.Add(-15*time.Minute))))
		s.Require().NoError(s.history.Record(ctx, s.tx("a", 20, s.now.Add(-5*time.Minute))))

		txs, err := s.history.Recent(ctx, "a", 10*time.Minute)
		s.Require().NoError(err)
		s.Require().Len(txs, 1)
		s.True(txs[0].Amount.Equal(decimal.NewFromInt(20)))
	})

	s.Run("identities are isolated", func() {
		ctx := s.ctxAt(s.now)
		s.Require().NoError(s.history.Record(ctx, s.tx("a", 10, s.now)))
		s.Require().NoError(s.history.Record(ctx, s.tx("b", 20, s.now)))

		txs, err := s.history.Recent(ctx, "a", 10*time.Minute)
		s.Require().NoError(err)
		s.Len(txs, 1)
	})
}

func (s *MemoryHistorySuite) TestRecordTrimsAgedEntries() {
	ctx := s.ctxAt(s.now)
	s.Require().NoError(s.history.Record(ctx, s.tx("a", 10, s.now)))

	later := s.now.Add(20 * time.Minute)
	s.Require().NoError(s.history.Record(s.ctxAt(later), s.tx("a", 20, later)))

	txs, err := s.history.Recent(s.ctxAt(later), "a", 10*time.Minute)
	s.Require().NoError(err)
	s.Require().Len(txs, 1)
	s.True(txs[0].Amount.Equal(decimal.NewFromInt(20)))
}
