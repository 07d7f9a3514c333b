// Package alert delivers compliance and security notifications to whoever is
// on the other side: an on-call log stream, a Kafka topic feeding paging
// infrastructure, or both. Senders are synchronous; callers decide whether a
// delivery failure matters.
package alert

import (
	"context"
	"time"
)

// Severity grades an alert for downstream routing.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is a single notification.
type Alert struct {
	Source    string            `json:"source"`
	Severity  Severity          `json:"severity"`
	Summary   string            `json:"summary"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

//go:generate mockgen -source=alert.go -destination=mocks/mocks.go -package=mocks Alerter

// Alerter delivers alerts. Implementations must be safe for concurrent use.
type Alerter interface {
	Send(ctx context.Context, a Alert) error
}
