package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"vigil/internal/platform/metrics"
	"vigil/pkg/requestcontext"
	"vigil/pkg/sentinel"
)

// Trail is the append-only audit service. Callers record events fire-and-forget:
// validation failures are returned synchronously, but persistence happens on a
// background writer and a persistence failure never surfaces to the triggering
// business operation. A bounded in-process tail serves recent-activity reads.
type Trail struct {
	store   Store
	tail    *Tail
	stream  *Stream
	logger  *slog.Logger
	metrics *metrics.Metrics

	validate *validator.Validate

	ch            chan Event
	wg            sync.WaitGroup
	closed        atomic.Bool
	dropped       atomic.Int64
	batchSize     int
	flushInterval time.Duration
	writeTimeout  time.Duration
}

// Option configures the Trail.
type Option func(*Trail)

// WithLogger sets the logger for writer diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) { t.logger = logger.With("component", "audit") }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Trail) { t.metrics = m }
}

// WithStream enables best-effort Kafka fan-out of recorded events.
func WithStream(s *Stream) Option {
	return func(t *Trail) { t.stream = s }
}

// WithBufferSize bounds the writer queue.
func WithBufferSize(n int) Option {
	return func(t *Trail) {
		if n > 0 {
			t.ch = make(chan Event, n)
		}
	}
}

// WithTailSize bounds the in-process tail.
func WithTailSize(n int) Option {
	return func(t *Trail) { t.tail = NewTail(n) }
}

// WithBatchSize bounds a single durable write.
func WithBatchSize(n int) Option {
	return func(t *Trail) {
		if n > 0 {
			t.batchSize = n
		}
	}
}

// WithFlushInterval sets how long the writer waits before flushing a partial batch.
func WithFlushInterval(d time.Duration) Option {
	return func(t *Trail) {
		if d > 0 {
			t.flushInterval = d
		}
	}
}

// WithWriteTimeout bounds each durable batch write.
func WithWriteTimeout(d time.Duration) Option {
	return func(t *Trail) {
		if d > 0 {
			t.writeTimeout = d
		}
	}
}

// NewTrail constructs the audit trail over a durable store.
func NewTrail(store Store, opts ...Option) (*Trail, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}

	t := &Trail{
		store:         store,
		tail:          NewTail(1000),
		logger:        slog.Default(),
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		ch:            make(chan Event, 10000),
		batchSize:     100,
		flushInterval: 500 * time.Millisecond,
		writeTimeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Start launches the background writer.
func (t *Trail) Start() {
	t.wg.Add(1)
	go t.writer()
}

// Stop seals the queue and waits for the writer to drain remaining events.
// The final flush uses a background context so shutdown never loses the tail
// of the queue to an already-cancelled request context.
func (t *Trail) Stop() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("audit writer stopped")
}

// Record validates and accepts an event. Missing ID and Timestamp are stamped;
// actor, source IP and request ID are filled from the context when absent.
// The only error returned is a validation failure; persistence problems are
// logged and counted, never propagated.
func (t *Trail) Record(ctx context.Context, event Event) error {
	if !event.Category.IsValid() {
		return fmt.Errorf("%w: unknown audit category %q", sentinel.ErrInvalidInput, event.Category)
	}
	if err := t.validate.Struct(event); err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrInvalidInput, err)
	}

	event = t.enrich(ctx, event)
	t.tail.Add(event)
	if t.metrics != nil {
		t.metrics.AuditEventsRecorded.WithLabelValues(string(event.Category)).Inc()
	}
	if t.stream != nil {
		t.stream.Publish(ctx, event)
	}

	if t.closed.Load() {
		t.logger.Warn("audit event dropped: trail is stopping", "action", event.Action)
		return nil
	}

	// Load shedding: a full queue drops the event rather than blocking the
	// hot path. The drop is observable via logs and the dropped counter.
	select {
	case t.ch <- event:
	default:
		t.dropped.Add(1)
		if t.metrics != nil {
			t.metrics.AuditEventsDropped.Inc()
		}
		t.logger.Error("audit buffer overflow, event dropped",
			"category", event.Category,
			"action", event.Action,
		)
	}
	return nil
}

// Append is the synchronous, fail-closed variant of Record for callers whose
// operation must not proceed without a persisted audit record.
func (t *Trail) Append(ctx context.Context, event Event) error {
	if !event.Category.IsValid() {
		return fmt.Errorf("%w: unknown audit category %q", sentinel.ErrInvalidInput, event.Category)
	}
	if err := t.validate.Struct(event); err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrInvalidInput, err)
	}

	event = t.enrich(ctx, event)
	if err := t.store.Append(ctx, event); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	t.tail.Add(event)
	if t.metrics != nil {
		t.metrics.AuditEventsRecorded.WithLabelValues(string(event.Category)).Inc()
	}
	return nil
}

// Recent returns the newest buffered events for a category from the in-process
// tail. Best-effort: recently restarted processes see an empty tail.
func (t *Trail) Recent(category Category, limit int) []Event {
	return t.tail.Recent(category, limit)
}

// Query reads from the durable store, most-recent-first by default.
func (t *Trail) Query(ctx context.Context, filter Filter) ([]Event, error) {
	if filter.Category != "" && !filter.Category.IsValid() {
		return nil, fmt.Errorf("%w: unknown audit category %q", sentinel.ErrInvalidInput, filter.Category)
	}
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}
	return t.store.Query(ctx, filter)
}

// Ping reports durable store reachability. Used by compliance checks.
func (t *Trail) Ping(ctx context.Context) error {
	return t.store.Ping(ctx)
}

// Backlog returns the number of events queued for durable persistence.
func (t *Trail) Backlog() int {
	return len(t.ch)
}

// BufferCapacity returns the writer queue capacity.
func (t *Trail) BufferCapacity() int {
	return cap(t.ch)
}

// Dropped returns the number of events shed because the queue was full.
func (t *Trail) Dropped() int64 {
	return t.dropped.Load()
}

func (t *Trail) enrich(ctx context.Context, event Event) Event {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.ActorID(ctx)
	}
	if event.SourceIP == "" {
		event.SourceIP = requestcontext.ClientIP(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	return event
}

func (t *Trail) writer() {
	defer t.wg.Done()

	batch := make([]Event, 0, t.batchSize)
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background context: the writer outlives request contexts and must
		// finish its final flush during shutdown.
		ctx, cancel := context.WithTimeout(context.Background(), t.writeTimeout)
		if err := t.store.AppendBatch(ctx, batch); err != nil {
			if t.metrics != nil {
				t.metrics.AuditFlushFailures.Inc()
			}
			t.logger.Error("audit flush failed", "events", len(batch), "error", err)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		if t.metrics != nil {
			t.metrics.AuditWriterBacklog.Set(float64(len(t.ch)))
		}
		select {
		case event, ok := <-t.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, event)
			if len(batch) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
