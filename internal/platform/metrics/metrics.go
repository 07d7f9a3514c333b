package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the trust-and-audit core.
// Registered once at process start and passed by reference to services.
type Metrics struct {
	AuditEventsRecorded *prometheus.CounterVec
	AuditEventsDropped  prometheus.Counter
	AuditFlushFailures  prometheus.Counter
	AuditWriterBacklog  prometheus.Gauge

	ComplianceRuns     prometheus.Counter
	ComplianceFailures prometheus.Counter
	ComplianceDuration prometheus.Histogram

	LockoutsTriggered prometheus.Counter
	LockoutsCleared   prometheus.Counter

	RateLimitRejected *prometheus.CounterVec
	RateLimitDelayed  *prometheus.CounterVec

	FraudAssessments *prometheus.CounterVec
	FraudHistoryMiss prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		AuditEventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_audit_events_recorded_total",
			Help: "Audit events accepted into the trail, by category",
		}, []string{"category"}),
		AuditEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_events_dropped_total",
			Help: "Audit events dropped because the writer buffer was full",
		}),
		AuditFlushFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_flush_failures_total",
			Help: "Failed batch writes from the audit writer to the durable store",
		}),
		AuditWriterBacklog: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_audit_writer_backlog",
			Help: "Events currently queued for durable persistence",
		}),
		ComplianceRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_compliance_runs_total",
			Help: "Completed compliance check runs",
		}),
		ComplianceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_compliance_check_failures_total",
			Help: "Individual compliance checks that failed",
		}),
		ComplianceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_compliance_run_duration_seconds",
			Help:    "Wall-clock duration of a full compliance run",
			Buckets: prometheus.DefBuckets,
		}),
		LockoutsTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_lockouts_triggered_total",
			Help: "Identities transitioned into the locked state",
		}),
		LockoutsCleared: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_lockouts_cleared_total",
			Help: "Lockout records cleared by success, expiry or sweep",
		}),
		RateLimitRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_ratelimit_rejected_total",
			Help: "Requests rejected at the rate-limit ceiling, by route class",
		}, []string{"class"}),
		RateLimitDelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_ratelimit_delayed_total",
			Help: "Requests answered with injected delay, by route class",
		}, []string{"class"}),
		FraudAssessments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_fraud_assessments_total",
			Help: "Fraud assessments, by decision",
		}, []string{"decision"}),
		FraudHistoryMiss: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_fraud_history_unavailable_total",
			Help: "Assessments that degraded to an empty transaction history",
		}),
	}
}
