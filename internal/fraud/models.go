// Package fraud scores individual financial operations against recent
// per-identity transaction history and decides whether they proceed.
package fraud

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one financial operation as seen by the scorer. Amounts are
// decimals in the operation's base currency unit.
type Transaction struct {
	Identity  string          `json:"identity" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	SourceIP  string          `json:"source_ip,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decision is the scorer's verdict.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionBlocked  Decision = "BLOCKED"
)

// Rule flags attached to an assessment when the corresponding rule fires.
const (
	FlagHighVelocity = "HIGH_VELOCITY"
	FlagHighValue    = "HIGH_VALUE"
	FlagDuplicate    = "DUPLICATE"
	FlagSuspiciousIP = "SUSPICIOUS_IP"
)

// Assessment is the ephemeral scoring result. It is never persisted as an
// entity; the audit trail carries score and flags as event metadata.
type Assessment struct {
	RiskScore            int       `json:"risk_score"`
	Flags                []string  `json:"flags,omitempty"`
	Decision             Decision  `json:"decision"`
	RequiresManualReview bool      `json:"requires_manual_review"`
	AssessedAt           time.Time `json:"assessed_at"`
}

// Blocked reports whether the operation must not proceed.
func (a Assessment) Blocked() bool {
	return a.Decision == DecisionBlocked
}
