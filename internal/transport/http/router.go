package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vigil/internal/platform/config"
	"vigil/internal/ratelimit"
)

// NewRouter assembles the ops/admin surface. Health and metrics are open;
// everything under /v1 requires an admin JWT and passes through the read-class
// rate limiter.
func NewRouter(cfg config.Server, h *Handler, limiter *ratelimit.Limiter, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestTime)
	r.Use(ClientMetadata)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(RequireAdmin(cfg.JWTSigningKey, logger))

		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(RateLimit(limiter, ratelimit.ClassRead))
			}
			r.Post("/compliance/run", h.handleComplianceRun)
			r.Get("/compliance/report", h.handleComplianceReport)
			r.Get("/audit/recent", h.handleAuditRecent)
			r.Get("/audit/events", h.handleAuditQuery)
			r.Get("/lockouts/{identity}", h.handleLockoutStatus)
		})

		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(RateLimit(limiter, ratelimit.ClassFinancial))
			}
			r.Post("/fraud/assess", h.handleFraudAssess)
		})
	})

	return r
}

// handleHealth reports process liveness plus durable store reachability.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.trail.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"audit":  "unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
