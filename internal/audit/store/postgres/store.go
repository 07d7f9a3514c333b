package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vigil/internal/audit"
)

// Store persists audit events in PostgreSQL, one table per category so each
// category carries its own retention. Retention is a storage-layer concern:
// the store runs its own purger against the windows declared in the audit
// package, and nothing above this layer deletes records.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	purgeInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

var categoryTables = map[audit.Category]string{
	audit.CategorySecurity:     "audit_security",
	audit.CategoryFinancial:    "audit_financial",
	audit.CategoryConfidential: "audit_confidential",
	audit.CategoryPrivacy:      "audit_privacy",
}

// New creates a PostgreSQL-backed audit store.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{
		pool:          pool,
		logger:        logger.With("component", "audit-store"),
		purgeInterval: time.Hour,
		stop:          make(chan struct{}),
	}
}

// EnsureSchema creates the per-category tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, table := range categoryTables {
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %[1]s (
				id          UUID PRIMARY KEY,
				action      TEXT NOT NULL,
				result      TEXT NOT NULL,
				severity    TEXT NOT NULL,
				actor_id    TEXT NOT NULL DEFAULT '',
				source_ip   TEXT NOT NULL DEFAULT '',
				request_id  TEXT NOT NULL DEFAULT '',
				occurred_at TIMESTAMPTZ NOT NULL,
				metadata    JSONB
			);
			CREATE INDEX IF NOT EXISTS idx_%[1]s_occurred_at ON %[1]s (occurred_at DESC);
		`, table)
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema for %s: %w", table, err)
		}
	}
	return nil
}

// StartRetention launches the background purger enforcing each category's
// retention window.
func (s *Store) StartRetention() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.purgeExpired(context.Background())
			}
		}
	}()
}

// Close stops the purger. The pool lifecycle is managed by the caller.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Store) purgeExpired(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	for category, table := range categoryTables {
		cutoff := time.Now().Add(-audit.RetentionFor(category))
		tag, err := s.pool.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE occurred_at < $1`, table), cutoff)
		if err != nil {
			s.logger.Error("retention purge failed", "table", table, "error", err)
			continue
		}
		if tag.RowsAffected() > 0 {
			s.logger.Info("retention purge", "table", table, "purged", tag.RowsAffected())
		}
	}
}

const insertSQL = `
	INSERT INTO %s (id, action, result, severity, actor_id, source_ip, request_id, occurred_at, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

// Append writes a single event to its category table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	table, ok := categoryTables[event.Category]
	if !ok {
		return fmt.Errorf("no table for category %q", event.Category)
	}
	metadata, err := marshalMetadata(event.Metadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(insertSQL, table),
		event.ID, event.Action, string(event.Result), string(event.Severity),
		event.ActorID, event.SourceIP, event.RequestID, event.Timestamp, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// AppendBatch writes a batch of events in a single round trip.
func (s *Store) AppendBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		table, ok := categoryTables[event.Category]
		if !ok {
			return fmt.Errorf("no table for category %q", event.Category)
		}
		metadata, err := marshalMetadata(event.Metadata)
		if err != nil {
			return err
		}
		batch.Queue(fmt.Sprintf(insertSQL, table),
			event.ID, event.Action, string(event.Result), string(event.Severity),
			event.ActorID, event.SourceIP, event.RequestID, event.Timestamp, metadata,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert audit events: %w", err)
		}
	}
	return nil
}

// Query returns events matching the filter. Queries without a category fan
// out over every table; most callers filter by category.
func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	categories := audit.Categories
	if filter.Category != "" {
		categories = []audit.Category{filter.Category}
	}

	var events []audit.Event
	for _, category := range categories {
		evs, err := s.queryTable(ctx, category, filter)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}

	// Cross-table merges re-sort and re-trim; single-category queries are
	// already ordered and bounded by SQL.
	if len(categories) > 1 {
		sortEvents(events, filter.Ascending)
		if filter.Limit > 0 && len(events) > filter.Limit {
			events = events[:filter.Limit]
		}
	}
	return events, nil
}

func (s *Store) queryTable(ctx context.Context, category audit.Category, filter audit.Filter) ([]audit.Event, error) {
	table := categoryTables[category]

	var sb strings.Builder
	fmt.Fprintf(&sb, `SELECT id, action, result, severity, actor_id, source_ip, request_id, occurred_at, metadata FROM %s`, table)

	var (
		conds []string
		args  []any
	)
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("occurred_at <= $%d", len(args)))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	if filter.Ascending {
		sb.WriteString(" ORDER BY occurred_at ASC")
	} else {
		sb.WriteString(" ORDER BY occurred_at DESC")
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			ev       audit.Event
			result   string
			severity string
			metadata []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Action, &result, &severity,
			&ev.ActorID, &ev.SourceIP, &ev.RequestID, &ev.Timestamp, &metadata); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Category = category
		ev.Result = audit.Result(result)
		ev.Severity = audit.Severity(severity)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// Ping reports pool health.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal audit metadata: %w", err)
	}
	return b, nil
}

func sortEvents(events []audit.Event, ascending bool) {
	sort.SliceStable(events, func(i, j int) bool {
		if ascending {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}
