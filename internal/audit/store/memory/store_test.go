package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vigil/internal/audit"
	"vigil/pkg/requestcontext"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
}

func (s *MemoryStoreSuite) event(category audit.Category, at time.Time) audit.Event {
	return audit.Event{
		ID:        uuid.New(),
		Category:  category,
		Action:    "TEST",
		Result:    audit.ResultSuccess,
		Severity:  audit.SeverityInfo,
		Timestamp: at,
	}
}

func (s *MemoryStoreSuite) TestQuery() {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), base)

	s.Require().NoError(s.store.Append(ctx, s.event(audit.CategorySecurity, base.Add(-2*time.Hour))))
	s.Require().NoError(s.store.Append(ctx, s.event(audit.CategorySecurity, base.Add(-time.Hour))))
	s.Require().NoError(s.store.Append(ctx, s.event(audit.CategoryFinancial, base.Add(-time.Minute))))

	s.Run("most recent first by default", func() {
		events, err := s.store.Query(ctx, audit.Filter{Category: audit.CategorySecurity})
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.True(events[0].Timestamp.After(events[1].Timestamp))
	})

	s.Run("empty category spans collections", func() {
		events, err := s.store.Query(ctx, audit.Filter{})
		s.Require().NoError(err)
		s.Len(events, 3)
	})

	s.Run("time range filtering", func() {
		events, err := s.store.Query(ctx, audit.Filter{
			Category: audit.CategorySecurity,
			From:     base.Add(-90 * time.Minute),
		})
		s.Require().NoError(err)
		s.Len(events, 1)
	})

	s.Run("limit bounds the result", func() {
		events, err := s.store.Query(ctx, audit.Filter{Limit: 1})
		s.Require().NoError(err)
		s.Len(events, 1)
	})
}

func (s *MemoryStoreSuite) TestRetentionExpiry() {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), base)

	// SECURITY retains 90 days, FINANCIAL 7 years.
	s.Require().NoError(s.store.Append(ctx, s.event(audit.CategorySecurity, base.Add(-91*24*time.Hour))))
	s.Require().NoError(s.store.Append(ctx, s.event(audit.CategoryFinancial, base.Add(-91*24*time.Hour))))

	s.Run("expired security event is not returned", func() {
		events, err := s.store.Query(ctx, audit.Filter{Category: audit.CategorySecurity})
		s.Require().NoError(err)
		s.Empty(events)
	})

	s.Run("financial event survives its longer retention", func() {
		events, err := s.store.Query(ctx, audit.Filter{Category: audit.CategoryFinancial})
		s.Require().NoError(err)
		s.Len(events, 1)
	})

	s.Run("writes sweep expired records out of the collection", func() {
		later := requestcontext.WithTime(context.Background(), base.Add(time.Hour))
		s.Require().NoError(s.store.Append(later, s.event(audit.CategorySecurity, base.Add(time.Hour))))
		s.Equal(1, s.store.Len(later, audit.CategorySecurity))
	})
}
