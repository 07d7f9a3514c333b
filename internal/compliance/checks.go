package compliance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"vigil/internal/audit"
	"vigil/internal/platform/config"
	"vigil/pkg/requestcontext"
)

// Pinger reports durable audit store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PipelineStats exposes the audit writer's health counters.
type PipelineStats interface {
	Backlog() int
	BufferCapacity() int
	Dropped() int64
}

// StoreConnectivityCheck verifies the durable audit store answers a ping.
// A store outage is the single worst failure mode of this subsystem: events
// recorded during one are shed once the writer buffer fills.
type StoreConnectivityCheck struct {
	pinger Pinger
}

func NewStoreConnectivityCheck(pinger Pinger) *StoreConnectivityCheck {
	return &StoreConnectivityCheck{pinger: pinger}
}

func (c *StoreConnectivityCheck) ControlID() string { return "CTL-AUD-001" }
func (c *StoreConnectivityCheck) Name() string      { return "audit store connectivity" }

func (c *StoreConnectivityCheck) Evaluate(ctx context.Context) Result {
	res := Result{ControlID: c.ControlID(), Name: c.Name(), Passed: true, CheckedAt: requestcontext.Now(ctx)}
	if err := c.pinger.Ping(ctx); err != nil {
		res.Passed = false
		res.Issues = append(res.Issues, fmt.Sprintf("audit store unreachable: %v", err))
	}
	return res
}

// RetentionCoverageCheck verifies every audit category declares a positive
// retention window. A zero window would make the storage layer purge records
// immediately.
type RetentionCoverageCheck struct{}

func NewRetentionCoverageCheck() *RetentionCoverageCheck { return &RetentionCoverageCheck{} }

func (c *RetentionCoverageCheck) ControlID() string { return "CTL-AUD-002" }
func (c *RetentionCoverageCheck) Name() string      { return "audit retention coverage" }

func (c *RetentionCoverageCheck) Evaluate(ctx context.Context) Result {
	res := Result{ControlID: c.ControlID(), Name: c.Name(), Passed: true, CheckedAt: requestcontext.Now(ctx)}
	for _, category := range audit.Categories {
		if audit.RetentionFor(category) <= 0 {
			res.Passed = false
			res.Issues = append(res.Issues, fmt.Sprintf("category %s has no retention window", category))
		}
	}
	return res
}

// PipelineHealthCheck verifies the asynchronous audit writer is keeping up:
// the backlog stays under a high-water mark and no events were shed since the
// previous evaluation.
type PipelineHealthCheck struct {
	stats       PipelineStats
	lastDropped atomic.Int64
}

func NewPipelineHealthCheck(stats PipelineStats) *PipelineHealthCheck {
	return &PipelineHealthCheck{stats: stats}
}

func (c *PipelineHealthCheck) ControlID() string { return "CTL-AUD-003" }
func (c *PipelineHealthCheck) Name() string      { return "audit pipeline health" }

func (c *PipelineHealthCheck) Evaluate(ctx context.Context) Result {
	res := Result{ControlID: c.ControlID(), Name: c.Name(), Passed: true, CheckedAt: requestcontext.Now(ctx)}

	backlog, capacity := c.stats.Backlog(), c.stats.BufferCapacity()
	if capacity > 0 && backlog*10 >= capacity*9 {
		res.Passed = false
		res.Issues = append(res.Issues, fmt.Sprintf("writer backlog %d of %d exceeds high-water mark", backlog, capacity))
	}

	dropped := c.stats.Dropped()
	if prev := c.lastDropped.Swap(dropped); dropped > prev {
		res.Passed = false
		res.Issues = append(res.Issues, fmt.Sprintf("%d audit events shed since last evaluation", dropped-prev))
	}
	return res
}

// LockoutPolicyCheck verifies the lockout policy stays inside a defensible
// band: enough attempts to tolerate typos, few enough to stop online guessing,
// and a lock long enough to matter.
type LockoutPolicyCheck struct {
	cfg config.Lockout
}

func NewLockoutPolicyCheck(cfg config.Lockout) *LockoutPolicyCheck {
	return &LockoutPolicyCheck{cfg: cfg}
}

func (c *LockoutPolicyCheck) ControlID() string { return "CTL-AUTH-001" }
func (c *LockoutPolicyCheck) Name() string      { return "lockout policy strength" }

func (c *LockoutPolicyCheck) Evaluate(ctx context.Context) Result {
	res := Result{ControlID: c.ControlID(), Name: c.Name(), Passed: true, CheckedAt: requestcontext.Now(ctx)}
	if c.cfg.MaxAttempts < 3 || c.cfg.MaxAttempts > 10 {
		res.Passed = false
		res.Issues = append(res.Issues, fmt.Sprintf("max attempts %d outside [3,10]", c.cfg.MaxAttempts))
	}
	if c.cfg.LockDuration < 15*time.Minute {
		res.Passed = false
		res.Issues = append(res.Issues, fmt.Sprintf("lock duration %s below 15m", c.cfg.LockDuration))
	}
	return res
}

// CeilingCoverageCheck verifies every route class carries a positive
// rate-limit ceiling. A missing ceiling means that class is unthrottled.
type CeilingCoverageCheck struct {
	cfg     config.RateLimit
	classes []string
}

func NewCeilingCoverageCheck(cfg config.RateLimit, classes []string) *CeilingCoverageCheck {
	return &CeilingCoverageCheck{cfg: cfg, classes: classes}
}

func (c *CeilingCoverageCheck) ControlID() string { return "CTL-NET-001" }
func (c *CeilingCoverageCheck) Name() string      { return "rate-limit ceiling coverage" }

func (c *CeilingCoverageCheck) Evaluate(ctx context.Context) Result {
	res := Result{ControlID: c.ControlID(), Name: c.Name(), Passed: true, CheckedAt: requestcontext.Now(ctx)}
	if c.cfg.Window <= 0 {
		res.Passed = false
		res.Issues = append(res.Issues, "rate-limit window is not positive")
	}
	for _, class := range c.classes {
		if c.cfg.Ceilings[class] <= 0 {
			res.Passed = false
			res.Issues = append(res.Issues, fmt.Sprintf("route class %q has no ceiling", class))
		}
	}
	return res
}

// FraudThresholdCheck verifies the scorer thresholds are ordered so each
// decision band is reachable.
type FraudThresholdCheck struct {
	cfg config.Fraud
}

func NewFraudThresholdCheck(cfg config.Fraud) *FraudThresholdCheck {
	return &FraudThresholdCheck{cfg: cfg}
}

func (c *FraudThresholdCheck) ControlID() string { return "CTL-FIN-001" }
func (c *FraudThresholdCheck) Name() string      { return "fraud threshold sanity" }

func (c *FraudThresholdCheck) Evaluate(ctx context.Context) Result {
	res := Result{ControlID: c.ControlID(), Name: c.Name(), Passed: true, CheckedAt: requestcontext.Now(ctx)}
	if c.cfg.ReviewThreshold <= 0 {
		res.Passed = false
		res.Issues = append(res.Issues, "review threshold is not positive")
	}
	if c.cfg.BlockThreshold <= c.cfg.ReviewThreshold {
		res.Passed = false
		res.Issues = append(res.Issues, fmt.Sprintf("block threshold %d must exceed review threshold %d",
			c.cfg.BlockThreshold, c.cfg.ReviewThreshold))
	}
	if c.cfg.HighValueThreshold <= 0 {
		res.Passed = false
		res.Issues = append(res.Issues, "high-value threshold is not positive")
	}
	if c.cfg.VelocityThreshold <= 0 || c.cfg.VelocityWindow <= 0 {
		res.Passed = false
		res.Issues = append(res.Issues, "velocity rule is not configured")
	}
	return res
}
