package alert

import (
	"context"
	"log/slog"
)

// LogAlerter writes alerts to the structured log at a level matching the
// alert severity. Always available; the fallback sink when no broker is
// configured.
type LogAlerter struct {
	logger *slog.Logger
}

// NewLogAlerter creates a log-backed alerter.
func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger.With("component", "alerter")}
}

// Send logs the alert. Never fails.
func (l *LogAlerter) Send(_ context.Context, a Alert) error {
	attrs := []any{
		"source", a.Source,
		"severity", a.Severity,
		"summary", a.Summary,
	}
	for k, v := range a.Details {
		attrs = append(attrs, "detail_"+k, v)
	}

	switch a.Severity {
	case SeverityCritical, SeverityHigh:
		l.logger.Error("alert", attrs...)
	case SeverityMedium:
		l.logger.Warn("alert", attrs...)
	default:
		l.logger.Info("alert", attrs...)
	}
	return nil
}
