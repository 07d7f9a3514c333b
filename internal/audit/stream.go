package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"vigil/internal/platform/kafka"
)

// Topic names for the per-category audit streams.
const (
	TopicSecurity     = "vigil.audit.security"
	TopicFinancial    = "vigil.audit.financial"
	TopicConfidential = "vigil.audit.confidential"
	TopicPrivacy      = "vigil.audit.privacy"
)

var categoryTopics = map[Category]string{
	CategorySecurity:     TopicSecurity,
	CategoryFinancial:    TopicFinancial,
	CategoryConfidential: TopicConfidential,
	CategoryPrivacy:      TopicPrivacy,
}

// StreamTopics lists every audit topic, for startup topic creation.
func StreamTopics() []string {
	return []string{TopicSecurity, TopicFinancial, TopicConfidential, TopicPrivacy}
}

// Stream fans recorded events out to Kafka, one topic per category, so
// downstream SIEM and reporting consumers see the trail without querying the
// durable store. Delivery is best-effort; the durable store stays authoritative.
type Stream struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewStream wraps a producer. Returns nil when the producer is nil (Kafka
// not configured), so callers can pass the result straight to WithStream.
func NewStream(producer *kafka.Producer, logger *slog.Logger) *Stream {
	if producer == nil {
		return nil
	}
	return &Stream{producer: producer, logger: logger.With("component", "audit-stream")}
}

// Publish serializes the event and produces it to its category topic.
func (s *Stream) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal audit event for stream", "error", err)
		return
	}
	s.producer.Produce(ctx, categoryTopics[event.Category], []byte(event.Action), payload)
}
