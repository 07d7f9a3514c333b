package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for the trust-and-audit core.
// Everything is env-driven so main stays lean; memory-backed stores are used
// wherever a backend URL is left empty.
type Config struct {
	Server     Server
	Log        Log
	Postgres   Postgres
	Redis      Redis
	Kafka      Kafka
	Audit      Audit
	Compliance Compliance
	Lockout    Lockout
	RateLimit  RateLimit
	Fraud      Fraud
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Log configures the process logger.
type Log struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Postgres describes the durable store connection. Empty URL means the
// in-memory stores are used instead.
type Postgres struct {
	URL string
}

// Redis describes the shared-state backend for distributed deployments.
// Empty URL means process-local stores are used instead.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka describes the optional audit/alert streaming backend.
type Kafka struct {
	Brokers    []string
	TopicAlert string
}

// Audit configures the trail's asynchronous writer and in-process tail.
type Audit struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	TailSize      int
	WriteTimeout  time.Duration
}

// Compliance configures the check runner and its scheduler.
type Compliance struct {
	Interval     time.Duration
	CheckTimeout time.Duration
	HistoryLimit int
}

// Lockout configures the failed-attempt state machine.
type Lockout struct {
	MaxAttempts   int
	LockDuration  time.Duration
	ResetWindow   time.Duration
	SweepInterval time.Duration
}

// RateLimit configures per-route-class ceilings and the progressive delay band.
type RateLimit struct {
	Window         time.Duration
	Ceilings       map[string]int // keyed by route class
	DelayThreshold float64        // fraction of ceiling where delay injection starts
	DelayStep      time.Duration  // added per request past the threshold
	MaxDelay       time.Duration
	GlobalRPS      float64
	GlobalBurst    int
}

// Fraud configures the transaction risk scorer.
type Fraud struct {
	VelocityWindow     time.Duration
	VelocityThreshold  int
	HighValueThreshold int64 // base currency units
	BlockThreshold     int
	ReviewThreshold    int
}

// FromEnv builds the full configuration from environment variables with
// defaults suitable for local development.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envStr("VIGIL_ADDR", ":8080"),
			JWTSigningKey: envStr("VIGIL_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Log: Log{
			Level:  envStr("VIGIL_LOG_LEVEL", "info"),
			Format: envStr("VIGIL_LOG_FORMAT", "json"),
		},
		Postgres: Postgres{
			URL: os.Getenv("VIGIL_POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("VIGIL_REDIS_URL"),
			PoolSize:     envInt("VIGIL_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VIGIL_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("VIGIL_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VIGIL_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VIGIL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:    envList("VIGIL_KAFKA_BROKERS"),
			TopicAlert: envStr("VIGIL_KAFKA_ALERT_TOPIC", "vigil.alerts"),
		},
		Audit: Audit{
			BufferSize:    envInt("VIGIL_AUDIT_BUFFER_SIZE", 10000),
			BatchSize:     envInt("VIGIL_AUDIT_BATCH_SIZE", 100),
			FlushInterval: envDuration("VIGIL_AUDIT_FLUSH_INTERVAL", 500*time.Millisecond),
			TailSize:      envInt("VIGIL_AUDIT_TAIL_SIZE", 1000),
			WriteTimeout:  envDuration("VIGIL_AUDIT_WRITE_TIMEOUT", 5*time.Second),
		},
		Compliance: Compliance{
			Interval:     envDuration("VIGIL_COMPLIANCE_INTERVAL", time.Minute),
			CheckTimeout: envDuration("VIGIL_COMPLIANCE_CHECK_TIMEOUT", 10*time.Second),
			HistoryLimit: envInt("VIGIL_COMPLIANCE_HISTORY_LIMIT", 1000),
		},
		Lockout: Lockout{
			MaxAttempts:   envInt("VIGIL_LOCKOUT_MAX_ATTEMPTS", 5),
			LockDuration:  envDuration("VIGIL_LOCKOUT_DURATION", 30*time.Minute),
			ResetWindow:   envDuration("VIGIL_LOCKOUT_RESET_WINDOW", 15*time.Minute),
			SweepInterval: envDuration("VIGIL_LOCKOUT_SWEEP_INTERVAL", time.Hour),
		},
		RateLimit: RateLimit{
			Window: envDuration("VIGIL_RATELIMIT_WINDOW", time.Minute),
			Ceilings: map[string]int{
				"auth":      envInt("VIGIL_RATELIMIT_AUTH", 10),
				"financial": envInt("VIGIL_RATELIMIT_FINANCIAL", 30),
				"sensitive": envInt("VIGIL_RATELIMIT_SENSITIVE", 30),
				"read":      envInt("VIGIL_RATELIMIT_READ", 100),
				"write":     envInt("VIGIL_RATELIMIT_WRITE", 50),
			},
			DelayThreshold: envFloat("VIGIL_RATELIMIT_DELAY_THRESHOLD", 0.6),
			DelayStep:      envDuration("VIGIL_RATELIMIT_DELAY_STEP", 100*time.Millisecond),
			MaxDelay:       envDuration("VIGIL_RATELIMIT_MAX_DELAY", 2*time.Second),
			GlobalRPS:      envFloat("VIGIL_RATELIMIT_GLOBAL_RPS", 500),
			GlobalBurst:    envInt("VIGIL_RATELIMIT_GLOBAL_BURST", 1000),
		},
		Fraud: Fraud{
			VelocityWindow:     envDuration("VIGIL_FRAUD_VELOCITY_WINDOW", 10*time.Minute),
			VelocityThreshold:  envInt("VIGIL_FRAUD_VELOCITY_THRESHOLD", 5),
			HighValueThreshold: int64(envInt("VIGIL_FRAUD_HIGH_VALUE", 1000)),
			BlockThreshold:     envInt("VIGIL_FRAUD_BLOCK_THRESHOLD", 50),
			ReviewThreshold:    envInt("VIGIL_FRAUD_REVIEW_THRESHOLD", 30),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
