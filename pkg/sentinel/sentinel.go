package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into
// caller-facing results with errors.Is.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrExpired: record has passed its retention or lock window
// - ErrUnavailable: backing service temporarily unreachable
// - ErrInvalidInput: malformed input to a public operation, reported
//   synchronously to the immediate caller and never audited
// - ErrLocked: identity is currently locked out
var (
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidInput = errors.New("invalid input")
	ErrLocked       = errors.New("locked")
)
