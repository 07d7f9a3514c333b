package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"vigil/internal/platform/kafka"
)

// KafkaAlerter publishes alerts to a Kafka topic consumed by paging and
// ticketing infrastructure. Delivery is acknowledged: the caller learns about
// broker failures and decides what to do with them.
type KafkaAlerter struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaAlerter creates a Kafka-backed alerter. Returns nil when the
// producer is nil (Kafka not configured).
func NewKafkaAlerter(producer *kafka.Producer, topic string) *KafkaAlerter {
	if producer == nil {
		return nil
	}
	return &KafkaAlerter{producer: producer, topic: topic}
}

// Send publishes the alert and waits for acknowledgement.
func (k *KafkaAlerter) Send(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := k.producer.ProduceSync(ctx, k.topic, []byte(a.Source), payload); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}
