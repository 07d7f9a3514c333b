package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"vigil/internal/audit"
	"vigil/internal/platform/config"
	"vigil/internal/platform/metrics"
	"vigil/pkg/requestcontext"
	"vigil/pkg/sentinel"
)

// Recorder accepts audit events. Satisfied by the audit trail.
type Recorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// Limiter enforces per-(class, client) ceilings with a progressive delay
// band below the ceiling. A process-wide token bucket guards aggregate
// throughput before any per-key work happens.
type Limiter struct {
	store   Store
	trail   Recorder
	cfg     config.RateLimit
	global  *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Limiter.
type Option func(*Limiter)

// WithLogger sets the limiter's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger.With("component", "ratelimit") }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// WithAuditTrail sets the audit sink for rejection events.
func WithAuditTrail(trail Recorder) Option {
	return func(l *Limiter) { l.trail = trail }
}

// NewLimiter constructs a limiter over a counter store.
func NewLimiter(store Store, cfg config.RateLimit, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("rate-limit store is required")
	}
	l := &Limiter{
		store:  store,
		cfg:    cfg,
		global: rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check registers one request against its window and returns the verdict.
// Counter store failures fail open: throttling is protection, not a
// correctness gate, and an unreachable backend must not take traffic down.
func (l *Limiter) Check(ctx context.Context, class Class, clientKey string) (Result, error) {
	if !class.IsValid() {
		return Result{}, fmt.Errorf("%w: unknown route class %q", sentinel.ErrInvalidInput, class)
	}
	if clientKey == "" {
		return Result{}, fmt.Errorf("%w: client key is required", sentinel.ErrInvalidInput)
	}

	now := requestcontext.Now(ctx)

	if !l.global.Allow() {
		if l.metrics != nil {
			l.metrics.RateLimitRejected.WithLabelValues("global").Inc()
		}
		return Result{
			Allowed:       false,
			RetryAfterSec: 1,
			ResetAt:       now.Add(time.Second),
		}, nil
	}

	key := string(class) + ":" + SanitizeKeySegment(clientKey)
	count, windowStart, err := l.store.Incr(ctx, key, now, l.cfg.Window)
	if err != nil {
		l.logger.Warn("rate-limit store unavailable, failing open", "class", class, "error", err)
		return Result{Allowed: true, ResetAt: now.Add(l.cfg.Window)}, nil
	}

	ceiling := l.cfg.Ceilings[string(class)]
	resetAt := windowStart.Add(l.cfg.Window)

	if count > ceiling {
		if l.metrics != nil {
			l.metrics.RateLimitRejected.WithLabelValues(string(class)).Inc()
		}
		// One audit event per (key, window): the first rejected request
		// documents the breach without flooding the trail.
		if count == ceiling+1 {
			l.audit(ctx, class, clientKey, count)
		}
		return Result{
			Allowed:       false,
			RetryAfterSec: retryAfterSec(now, resetAt),
			Remaining:     0,
			ResetAt:       resetAt,
		}, nil
	}

	result := Result{
		Allowed:   true,
		Remaining: ceiling - count,
		ResetAt:   resetAt,
	}
	if delay := l.delayFor(count, ceiling); delay > 0 {
		result.Delay = delay
		result.DelayMS = delay.Milliseconds()
		if l.metrics != nil {
			l.metrics.RateLimitDelayed.WithLabelValues(string(class)).Inc()
		}
	}
	return result, nil
}

// delayFor computes the injected latency once the count enters the delay
// band: one step per request past the threshold, capped.
func (l *Limiter) delayFor(count, ceiling int) time.Duration {
	threshold := int(math.Ceil(float64(ceiling) * l.cfg.DelayThreshold))
	if count <= threshold {
		return 0
	}
	delay := time.Duration(count-threshold) * l.cfg.DelayStep
	if delay > l.cfg.MaxDelay {
		delay = l.cfg.MaxDelay
	}
	return delay
}

func (l *Limiter) audit(ctx context.Context, class Class, clientKey string, count int) {
	if l.trail == nil {
		return
	}
	err := l.trail.Record(ctx, audit.Event{
		Category: audit.CategorySecurity,
		Action:   audit.ActionRateLimitExceeded,
		Result:   audit.ResultDenied,
		Severity: audit.SeverityMedium,
		Metadata: map[string]string{
			"class":  string(class),
			"client": clientKey,
			"count":  strconv.Itoa(count),
		},
	})
	if err != nil {
		l.logger.Error("record rate-limit audit event", "error", err)
	}
}

func retryAfterSec(now, resetAt time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
