// Package ratelimit bounds request rate per (route class, client) with fixed
// window counters, injecting progressive delay before rejecting outright.
package ratelimit

import (
	"strings"
	"time"
)

// Class groups routes by sensitivity; each class carries its own ceiling.
type Class string

const (
	ClassAuth      Class = "auth"
	ClassFinancial Class = "financial"
	ClassSensitive Class = "sensitive"
	ClassRead      Class = "read"
	ClassWrite     Class = "write"
)

// Classes lists every route class.
var Classes = []Class{ClassAuth, ClassFinancial, ClassSensitive, ClassRead, ClassWrite}

// ClassNames returns the class names as strings, for configuration checks.
func ClassNames() []string {
	names := make([]string, len(Classes))
	for i, c := range Classes {
		names[i] = string(c)
	}
	return names
}

// IsValid checks if the class is one of the supported values.
func (c Class) IsValid() bool {
	switch c {
	case ClassAuth, ClassFinancial, ClassSensitive, ClassRead, ClassWrite:
		return true
	}
	return false
}

// Result is the limiter's verdict for one request.
type Result struct {
	Allowed       bool          `json:"allowed"`
	Delay         time.Duration `json:"-"`
	DelayMS       int64         `json:"delay_ms,omitempty"`
	RetryAfterSec int           `json:"retry_after_sec,omitempty"`
	Remaining     int           `json:"remaining"`
	ResetAt       time.Time     `json:"reset_at"`
}

// SanitizeKeySegment escapes the key delimiter in client-controlled
// identifiers so "user:admin" cannot address an adjacent bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
