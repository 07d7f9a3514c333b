package audit

import (
	"context"
	"time"
)

// Filter narrows a durable-store query. Zero From/To mean unbounded; results
// are most-recent-first unless Ascending is set.
type Filter struct {
	Category  Category
	From      time.Time
	To        time.Time
	Limit     int
	Ascending bool
}

// Store is the durable, category-partitioned persistence engine behind the
// trail. Implementations enforce each category's retention window themselves;
// nothing above this interface ever deletes an event.
type Store interface {
	// Append writes a single event to its category's collection.
	Append(ctx context.Context, event Event) error

	// AppendBatch writes a batch in one round trip. Used by the async writer.
	AppendBatch(ctx context.Context, events []Event) error

	// Query returns events matching the filter, bounded by Filter.Limit.
	Query(ctx context.Context, filter Filter) ([]Event, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
