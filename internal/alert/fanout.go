package alert

import (
	"context"
	"errors"
)

// Fanout delivers an alert to every configured sink. Each sink gets its
// attempt regardless of earlier failures; errors are joined so the caller
// sees everything that went wrong.
type Fanout struct {
	sinks []Alerter
}

// NewFanout builds a fanout over the non-nil sinks. Returns a fanout even
// when empty so callers never need a nil check.
func NewFanout(sinks ...Alerter) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Send delivers to all sinks.
func (f *Fanout) Send(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Send(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
