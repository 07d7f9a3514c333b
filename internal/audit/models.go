package audit

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies audit events by their primary purpose. The category
// decides which collection an event lands in and how long it is retained.
type Category string

const (
	// CategorySecurity covers authentication, lockout and throttling events.
	// These feed into SIEM systems and alerting pipelines.
	CategorySecurity Category = "SECURITY"

	// CategoryFinancial covers events with monetary significance: fraud
	// assessments, payment decisions. Long retention for regulatory audits.
	CategoryFinancial Category = "FINANCIAL"

	// CategoryConfidential covers access to restricted records.
	CategoryConfidential Category = "CONFIDENTIAL"

	// CategoryPrivacy covers data-subject events (exports, deletions,
	// consent). Long retention for regulatory audits.
	CategoryPrivacy Category = "PRIVACY"
)

// Categories lists every valid category in declaration order.
var Categories = []Category{CategorySecurity, CategoryFinancial, CategoryConfidential, CategoryPrivacy}

// IsValid checks if the category is one of the supported enum values.
func (c Category) IsValid() bool {
	switch c {
	case CategorySecurity, CategoryFinancial, CategoryConfidential, CategoryPrivacy:
		return true
	}
	return false
}

// Retention windows are declared once, here, at schema-definition time.
// The storage layer enforces expiry itself; application code never deletes
// audit records.
var retention = map[Category]time.Duration{
	CategorySecurity:     90 * 24 * time.Hour,
	CategoryConfidential: 90 * 24 * time.Hour,
	CategoryFinancial:    7 * 365 * 24 * time.Hour,
	CategoryPrivacy:      7 * 365 * 24 * time.Hour,
}

// RetentionFor returns the retention window for a category.
func RetentionFor(c Category) time.Duration {
	return retention[c]
}

// Result captures the outcome recorded by an audit event.
type Result string

const (
	ResultSuccess Result = "SUCCESS"
	ResultFailure Result = "FAILURE"
	ResultAlert   Result = "ALERT"
	ResultDenied  Result = "DENIED"
	ResultBlocked Result = "BLOCKED"
	ResultLocked  Result = "LOCKED"
)

// Severity grades an event for downstream routing and alerting.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Well-known actions emitted by the core. Components outside this module may
// record their own actions; these are the ones produced internally.
const (
	ActionComplianceCheck    = "COMPLIANCE_CHECK"
	ActionFraudCheck         = "FRAUD_CHECK"
	ActionAuthLockout        = "AUTH_LOCKOUT"
	ActionAuthLockoutCleared = "AUTH_LOCKOUT_CLEARED"
	ActionRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
)

// Event is an immutable record of a security/financial/privacy-relevant
// occurrence. Created on notable state transitions, never mutated, and purged
// only by the storage layer's retention expiry.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Category  Category          `json:"category" validate:"required"`
	Action    string            `json:"action" validate:"required"`
	Result    Result            `json:"result" validate:"required"`
	Severity  Severity          `json:"severity" validate:"required"`
	ActorID   string            `json:"actor_id,omitempty"`
	SourceIP  string            `json:"source_ip,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
