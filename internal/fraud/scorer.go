package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vigil/internal/audit"
	"vigil/internal/platform/config"
	"vigil/internal/platform/metrics"
	"vigil/pkg/requestcontext"
	"vigil/pkg/sentinel"
)

// History provides recent transaction activity per identity. The scorer
// treats it as advisory: an unavailable history degrades scoring to an empty
// window rather than failing the operation.
type History interface {
	Recent(ctx context.Context, identity string, window time.Duration) ([]Transaction, error)
	Record(ctx context.Context, tx Transaction) error
}

// Recorder accepts audit events. Satisfied by the audit trail.
type Recorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// Scorer assesses financial operations. The scoring core is pure; the
// service around it fetches history, audits the outcome and feeds the
// transaction back into the history for subsequent assessments.
type Scorer struct {
	history History
	trail   Recorder
	cfg     config.Fraud
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// ScorerOption configures the Scorer.
type ScorerOption func(*Scorer)

// WithLogger sets the scorer's logger.
func WithLogger(logger *slog.Logger) ScorerOption {
	return func(s *Scorer) { s.logger = logger.With("component", "fraud") }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) ScorerOption {
	return func(s *Scorer) { s.metrics = m }
}

// NewScorer constructs a scorer over a history source.
func NewScorer(history History, trail Recorder, cfg config.Fraud, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		history: history,
		trail:   trail,
		cfg:     cfg,
		logger:  slog.Default(),
		tracer:  otel.Tracer("vigil/fraud"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assess scores one transaction. The only error is a validation failure on
// the input itself; history lookups and audit writes never fail the call.
func (s *Scorer) Assess(ctx context.Context, tx Transaction) (Assessment, error) {
	if strings.TrimSpace(tx.Identity) == "" {
		return Assessment{}, fmt.Errorf("%w: transaction identity is required", sentinel.ErrInvalidInput)
	}

	ctx, span := s.tracer.Start(ctx, "fraud.Assess")
	defer span.End()

	now := requestcontext.Now(ctx)
	if tx.Timestamp.IsZero() {
		tx.Timestamp = now
	}

	recent, err := s.history.Recent(ctx, tx.Identity, s.cfg.VelocityWindow)
	if err != nil {
		// Degrade to an empty window. The miss is observable via the counter
		// and the log line; the operation itself is never aborted.
		if s.metrics != nil {
			s.metrics.FraudHistoryMiss.Inc()
		}
		s.logger.Warn("transaction history unavailable, scoring without it",
			"identity", tx.Identity, "error", err)
		recent = nil
	}

	assessment := score(scoreInput{tx: tx, recent: recent, now: now, cfg: s.cfg})

	span.SetAttributes(
		attribute.Int("fraud.score", assessment.RiskScore),
		attribute.String("fraud.decision", string(assessment.Decision)),
	)
	if s.metrics != nil {
		s.metrics.FraudAssessments.WithLabelValues(string(assessment.Decision)).Inc()
	}

	s.audit(ctx, tx, assessment)

	if err := s.history.Record(ctx, tx); err != nil {
		s.logger.Warn("record transaction history", "identity", tx.Identity, "error", err)
	}

	return assessment, nil
}

func (s *Scorer) audit(ctx context.Context, tx Transaction, assessment Assessment) {
	result := audit.ResultSuccess
	severity := audit.SeverityInfo
	if assessment.Blocked() {
		result = audit.ResultBlocked
		severity = audit.SeverityCritical
	}
	event := audit.Event{
		Category: audit.CategoryFinancial,
		Action:   audit.ActionFraudCheck,
		Result:   result,
		Severity: severity,
		ActorID:  tx.Identity,
		SourceIP: tx.SourceIP,
		Metadata: map[string]string{
			"score":    strconv.Itoa(assessment.RiskScore),
			"decision": string(assessment.Decision),
			"amount":   tx.Amount.String(),
			"review":   strconv.FormatBool(assessment.RequiresManualReview),
		},
	}
	if len(assessment.Flags) > 0 {
		event.Metadata["flags"] = strings.Join(assessment.Flags, ",")
	}
	if err := s.trail.Record(ctx, event); err != nil {
		s.logger.Error("record fraud assessment", "error", err)
	}
}
