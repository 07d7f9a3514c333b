//go:build integration

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vigil/internal/audit"
	"vigil/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = New(s.postgres.Pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"audit_security", "audit_financial", "audit_confidential", "audit_privacy")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) event(category audit.Category, action string, at time.Time) audit.Event {
	return audit.Event{
		ID:        uuid.New(),
		Category:  category,
		Action:    action,
		Result:    audit.ResultSuccess,
		Severity:  audit.SeverityInfo,
		ActorID:   "user@example.com",
		Timestamp: at,
		Metadata:  map[string]string{"key": "value"},
	}
}

func (s *PostgresStoreSuite) TestAppendAndQuery() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	s.Require().NoError(s.store.Append(ctx, s.event(audit.CategorySecurity, "FIRST", base.Add(-2*time.Hour))))
	s.Require().NoError(s.store.Append(ctx, s.event(audit.CategorySecurity, "SECOND", base.Add(-time.Hour))))
	s.Require().NoError(s.store.Append(ctx, s.event(audit.CategoryFinancial, "PAYMENT", base)))

	s.Run("category filter returns newest first", func() {
		events, err := s.store.Query(ctx, audit.Filter{Category: audit.CategorySecurity, Limit: 10})
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal("SECOND", events[0].Action)
		s.Equal("FIRST", events[1].Action)
		s.Equal("value", events[0].Metadata["key"])
	})

	s.Run("no category spans every table", func() {
		events, err := s.store.Query(ctx, audit.Filter{Limit: 10})
		s.Require().NoError(err)
		s.Len(events, 3)
		s.Equal("PAYMENT", events[0].Action)
	})

	s.Run("time range bounds the result", func() {
		events, err := s.store.Query(ctx, audit.Filter{
			Category: audit.CategorySecurity,
			From:     base.Add(-90 * time.Minute),
			Limit:    10,
		})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal("SECOND", events[0].Action)
	})

	s.Run("limit truncates", func() {
		events, err := s.store.Query(ctx, audit.Filter{Limit: 2})
		s.Require().NoError(err)
		s.Len(events, 2)
	})
}

func (s *PostgresStoreSuite) TestAppendBatch() {
	ctx := context.Background()
	base := time.Now().UTC()

	batch := []audit.Event{
		s.event(audit.CategorySecurity, "A", base),
		s.event(audit.CategoryFinancial, "B", base),
		s.event(audit.CategoryPrivacy, "C", base),
	}
	s.Require().NoError(s.store.AppendBatch(ctx, batch))

	events, err := s.store.Query(ctx, audit.Filter{Limit: 10})
	s.Require().NoError(err)
	s.Len(events, 3)
}

func (s *PostgresStoreSuite) TestDuplicateAppendIsIdempotent() {
	ctx := context.Background()
	event := s.event(audit.CategorySecurity, "DUP", time.Now().UTC())

	s.Require().NoError(s.store.Append(ctx, event))
	s.Require().NoError(s.store.Append(ctx, event))

	events, err := s.store.Query(ctx, audit.Filter{Category: audit.CategorySecurity, Limit: 10})
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *PostgresStoreSuite) TestRetentionPurge() {
	ctx := context.Background()
	now := time.Now().UTC()

	// 91 days exceeds the security window; financial retention runs for years.
	s.Require().NoError(s.store.Append(ctx, s.event(audit.CategorySecurity, "OLD", now.Add(-91*24*time.Hour))))
	s.Require().NoError(s.store.Append(ctx, s.event(audit.CategorySecurity, "FRESH", now)))
	s.Require().NoError(s.store.Append(ctx, s.event(audit.CategoryFinancial, "LEDGER", now.Add(-91*24*time.Hour))))

	s.store.purgeExpired(ctx)

	security, err := s.store.Query(ctx, audit.Filter{Category: audit.CategorySecurity, Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(security, 1)
	s.Equal("FRESH", security[0].Action)

	financial, err := s.store.Query(ctx, audit.Filter{Category: audit.CategoryFinancial, Limit: 10})
	s.Require().NoError(err)
	s.Len(financial, 1)
}

func (s *PostgresStoreSuite) TestPing() {
	s.NoError(s.store.Ping(context.Background()))
}
