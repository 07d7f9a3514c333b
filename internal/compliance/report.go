package compliance

import (
	"context"
	"fmt"
	"math"
	"time"

	"vigil/pkg/requestcontext"
	"vigil/pkg/sentinel"
)

// Report is the windowed compliance summary derived from the in-process run
// history.
type Report struct {
	Period          string    `json:"period"`
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	Runs            int       `json:"runs"`
	TotalChecks     int       `json:"total_checks"`
	TotalPassed     int       `json:"total_passed"`
	TotalFailed     int       `json:"total_failed"`
	AveragePassRate float64   `json:"average_pass_rate"`
	Compliant       bool      `json:"compliant"`
}

// reportPeriods maps the accepted period names to their durations.
var reportPeriods = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// GenerateReport summarizes the run history over the named period. Compliant
// means zero cumulative failures inside the window; a window with no runs is
// compliant by absence of evidence to the contrary.
func (r *Runner) GenerateReport(ctx context.Context, period string) (Report, error) {
	window, ok := reportPeriods[period]
	if !ok {
		return Report{}, fmt.Errorf("%w: unknown report period %q", sentinel.ErrInvalidInput, period)
	}

	now := requestcontext.Now(ctx)
	report := Report{
		Period: period,
		From:   now.Add(-window),
		To:     now,
	}

	var rateSum float64
	for _, run := range r.history.Since(report.From) {
		report.Runs++
		report.TotalChecks += run.TotalChecks
		report.TotalPassed += run.Passed
		report.TotalFailed += run.Failed
		rateSum += run.PassRate
	}

	if report.Runs > 0 {
		report.AveragePassRate = math.Round(rateSum/float64(report.Runs)*100) / 100
	} else {
		report.AveragePassRate = 1
	}
	report.Compliant = report.TotalFailed == 0
	return report, nil
}
