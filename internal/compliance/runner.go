package compliance

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
	"golang.org/x/sync/errgroup"

	"vigil/internal/alert"
	"vigil/internal/audit"
	"vigil/internal/platform/metrics"
	"vigil/pkg/requestcontext"
)

// Recorder accepts audit events. Satisfied by the audit trail.
type Recorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// Runner executes the registered battery concurrently, aggregates the
// outcome, persists a summary audit event and raises an alert when any
// control fails. Runs are self-contained: overlapping invocations write
// independent immutable summaries and never coordinate.
type Runner struct {
	checks  []Check
	trail   Recorder
	alerter alert.Alerter
	history *History
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	checkTimeout time.Duration
}

// RunnerOption configures the Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger.With("component", "compliance") }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithAlerter sets the alert sink invoked on failed runs.
func WithAlerter(a alert.Alerter) RunnerOption {
	return func(r *Runner) { r.alerter = a }
}

// WithCheckTimeout bounds each individual control evaluation.
func WithCheckTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.checkTimeout = d
		}
	}
}

// WithHistoryLimit bounds the in-process run history.
func WithHistoryLimit(n int) RunnerOption {
	return func(r *Runner) { r.history = NewHistory(n) }
}

// NewRunner constructs a runner over an ordered battery of checks.
func NewRunner(trail Recorder, checks []Check, opts ...RunnerOption) *Runner {
	r := &Runner{
		checks:       checks,
		trail:        trail,
		history:      NewHistory(1000),
		logger:       slog.Default(),
		tracer:       otel.Tracer("vigil/compliance"),
		checkTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunChecks evaluates every registered control concurrently and returns the
// aggregated run. Individual failures, timeouts and panics become failed
// results; nothing aborts the run.
func (r *Runner) RunChecks(ctx context.Context) Run {
	ctx, span := r.tracer.Start(ctx, "compliance.RunChecks")
	defer span.End()

	started := time.Now()
	results := make([]Result, len(r.checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, check := range r.checks {
		g.Go(func() error {
			results[i] = r.evaluate(gctx, check)
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors

	run := Run{
		Timestamp:   requestcontext.Now(ctx),
		TotalChecks: len(results),
		Results:     results,
	}
	for _, res := range results {
		if res.Passed {
			run.Passed++
		} else {
			run.Failed++
		}
	}
	run.PassRate = passRate(run.Passed, run.TotalChecks)

	span.SetAttributes(
		attribute.Int("compliance.total", run.TotalChecks),
		attribute.Int("compliance.failed", run.Failed),
	)
	if r.metrics != nil {
		r.metrics.ComplianceRuns.Inc()
		r.metrics.ComplianceFailures.Add(float64(run.Failed))
		r.metrics.ComplianceDuration.Observe(time.Since(started).Seconds())
	}

	r.history.Add(run)
	r.persist(ctx, run)
	if run.Failed > 0 {
		r.alertFailure(ctx, run)
	}

	r.logger.Info("compliance run complete",
		"total", run.TotalChecks,
		"passed", run.Passed,
		"failed", run.Failed,
		"pass_rate", run.PassRate,
		"duration", time.Since(started),
	)
	return run
}

// History returns the bounded in-process run history.
func (r *Runner) History() *History {
	return r.history
}

// evaluate runs one control with a timeout and panic isolation. A control
// that hangs past the timeout or panics reports as failed; the goroutine of
// a hung control is abandoned to finish on its own.
func (r *Runner) evaluate(ctx context.Context, check Check) Result {
	ctx, cancel := context.WithTimeout(ctx, r.checkTimeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("compliance check panicked", "control", check.ControlID(), "panic", rec)
				done <- Result{
					ControlID: check.ControlID(),
					Name:      check.Name(),
					Passed:    false,
					Issues:    []string{fmt.Sprintf("check panicked: %v", rec)},
					CheckedAt: requestcontext.Now(ctx),
				}
			}
		}()
		done <- check.Evaluate(ctx)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return Result{
			ControlID: check.ControlID(),
			Name:      check.Name(),
			Passed:    false,
			Issues:    []string{fmt.Sprintf("evaluation exceeded %s", r.checkTimeout)},
			CheckedAt: requestcontext.Now(ctx),
		}
	}
}

func (r *Runner) persist(ctx context.Context, run Run) {
	result := audit.ResultSuccess
	if run.Failed > 0 {
		result = audit.ResultFailure
	}
	event := audit.Event{
		Category: audit.CategorySecurity,
		Action:   audit.ActionComplianceCheck,
		Result:   result,
		Severity: runSeverity(run.Failed),
		Metadata: map[string]string{
			"total":     strconv.Itoa(run.TotalChecks),
			"passed":    strconv.Itoa(run.Passed),
			"failed":    strconv.Itoa(run.Failed),
			"pass_rate": strconv.FormatFloat(run.PassRate, 'f', 2, 64),
		},
	}
	if failed := failedControls(run); len(failed) > 0 {
		event.Metadata["failed_controls"] = strings.Join(failed, ",")
	}
	if err := r.trail.Record(ctx, event); err != nil {
		r.logger.Error("record compliance summary", "error", err)
	}
}

func (r *Runner) alertFailure(ctx context.Context, run Run) {
	if r.alerter == nil {
		return
	}
	details := map[string]string{
		"failed":    strconv.Itoa(run.Failed),
		"total":     strconv.Itoa(run.TotalChecks),
		"pass_rate": strconv.FormatFloat(run.PassRate, 'f', 2, 64),
	}
	for _, res := range run.Results {
		if !res.Passed {
			details[res.ControlID] = strings.Join(res.Issues, "; ")
		}
	}
	a := alert.Alert{
		Source:    "compliance",
		Severity:  alertSeverity(run.Failed),
		Summary:   fmt.Sprintf("%d of %d compliance checks failed", run.Failed, run.TotalChecks),
		Details:   details,
		Timestamp: run.Timestamp,
	}
	// Alert delivery failure degrades the run to log-only, never fails it.
	if err := r.alerter.Send(ctx, a); err != nil {
		r.logger.Error("compliance alert delivery failed", "error", err)
	}
}

func runSeverity(failed int) audit.Severity {
	switch {
	case failed == 0:
		return audit.SeverityLow
	case failed <= 3:
		return audit.SeverityMedium
	default:
		return audit.SeverityHigh
	}
}

func alertSeverity(failed int) alert.Severity {
	if failed > 3 {
		return alert.SeverityHigh
	}
	return alert.SeverityMedium
}

func failedControls(run Run) []string {
	var out []string
	for _, res := range run.Results {
		if !res.Passed {
			out = append(out, res.ControlID)
		}
	}
	return out
}
