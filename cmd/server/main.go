// Command server runs the trust-and-audit core: the audit trail, the
// compliance scheduler, the lockout sweep and the ops/admin HTTP surface.
// main only wires dependencies; behavior lives in the internal services.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil/internal/alert"
	"vigil/internal/audit"
	auditmemory "vigil/internal/audit/store/memory"
	auditpostgres "vigil/internal/audit/store/postgres"
	"vigil/internal/compliance"
	"vigil/internal/fraud"
	"vigil/internal/fraud/history"
	"vigil/internal/lockout"
	lockoutmemory "vigil/internal/lockout/store/memory"
	lockoutredis "vigil/internal/lockout/store/redisstore"
	"vigil/internal/platform/config"
	"vigil/internal/platform/httpserver"
	"vigil/internal/platform/kafka"
	"vigil/internal/platform/logger"
	"vigil/internal/platform/metrics"
	"vigil/internal/platform/postgres"
	platformredis "vigil/internal/platform/redis"
	"vigil/internal/ratelimit"
	ratelimitmemory "vigil/internal/ratelimit/store/memory"
	ratelimitredis "vigil/internal/ratelimit/store/redisstore"
	httptransport "vigil/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	m := metrics.New()

	// Backends. A missing URL selects the process-local implementation.
	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	producer, err := kafka.New(cfg.Kafka, log)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
		topics := append(audit.StreamTopics(), cfg.Kafka.TopicAlert)
		if err := producer.EnsureTopics(ctx, topics...); err != nil {
			return err
		}
	}

	// Audit trail.
	var store audit.Store
	if pool != nil {
		pgStore := auditpostgres.New(pool, log)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
		pgStore.StartRetention()
		defer pgStore.Close()
		store = pgStore
	} else {
		log.Warn("postgres not configured, audit events are process-local")
		store = auditmemory.New()
	}

	trail, err := audit.NewTrail(store,
		audit.WithLogger(log),
		audit.WithMetrics(m),
		audit.WithStream(audit.NewStream(producer, log)),
		audit.WithBufferSize(cfg.Audit.BufferSize),
		audit.WithBatchSize(cfg.Audit.BatchSize),
		audit.WithFlushInterval(cfg.Audit.FlushInterval),
		audit.WithTailSize(cfg.Audit.TailSize),
		audit.WithWriteTimeout(cfg.Audit.WriteTimeout),
	)
	if err != nil {
		return err
	}
	trail.Start()
	defer trail.Stop()

	// Alerting: always log, additionally Kafka when configured.
	alerter := alert.NewFanout(buildAlertSinks(cfg, log, producer)...)

	// Lockout tracker.
	policy := lockout.PolicyFromConfig(cfg.Lockout)
	var lockoutStore lockout.Store
	if redisClient != nil {
		lockoutStore = lockoutredis.New(redisClient.Client, policy)
	} else {
		lockoutStore = lockoutmemory.New()
	}
	tracker, err := lockout.NewTracker(lockoutStore, trail, policy,
		lockout.WithLogger(log),
		lockout.WithMetrics(m),
		lockout.WithSweepInterval(cfg.Lockout.SweepInterval),
	)
	if err != nil {
		return err
	}
	tracker.StartSweep()
	defer tracker.Stop()

	// Rate limiter.
	var windowStore ratelimit.Store
	if redisClient != nil {
		windowStore = ratelimitredis.New(redisClient.Client)
	} else {
		windowStore = ratelimitmemory.New()
	}
	limiter, err := ratelimit.NewLimiter(windowStore, cfg.RateLimit,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(m),
		ratelimit.WithAuditTrail(trail),
	)
	if err != nil {
		return err
	}

	// Fraud scorer.
	var txHistory fraud.History
	if redisClient != nil {
		txHistory = history.NewRedis(redisClient.Client, cfg.Fraud.VelocityWindow)
	} else {
		txHistory = history.NewMemory(10000, cfg.Fraud.VelocityWindow)
	}
	scorer := fraud.NewScorer(txHistory, trail, cfg.Fraud,
		fraud.WithLogger(log),
		fraud.WithMetrics(m),
	)

	// Compliance battery and scheduler.
	checks := []compliance.Check{
		compliance.NewStoreConnectivityCheck(trail),
		compliance.NewRetentionCoverageCheck(),
		compliance.NewPipelineHealthCheck(trail),
		compliance.NewLockoutPolicyCheck(cfg.Lockout),
		compliance.NewCeilingCoverageCheck(cfg.RateLimit, ratelimit.ClassNames()),
		compliance.NewFraudThresholdCheck(cfg.Fraud),
	}
	runner := compliance.NewRunner(trail, checks,
		compliance.WithLogger(log),
		compliance.WithMetrics(m),
		compliance.WithAlerter(alerter),
		compliance.WithCheckTimeout(cfg.Compliance.CheckTimeout),
		compliance.WithHistoryLimit(cfg.Compliance.HistoryLimit),
	)
	scheduler := compliance.NewScheduler(runner, cfg.Compliance.Interval, log)
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP surface.
	handler := httptransport.NewHandler(runner, trail, tracker, scorer, log)
	router := httptransport.NewRouter(cfg.Server, handler, limiter, log)
	srv := httpserver.New(cfg.Server.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// Deferred stops drain the audit writer and halt the scheduler/sweep.
	return nil
}

func buildAlertSinks(cfg config.Config, log *slog.Logger, producer *kafka.Producer) []alert.Alerter {
	sinks := []alert.Alerter{alert.NewLogAlerter(log)}
	if kafkaSink := alert.NewKafkaAlerter(producer, cfg.Kafka.TopicAlert); kafkaSink != nil {
		sinks = append(sinks, kafkaSink)
	}
	return sinks
}
