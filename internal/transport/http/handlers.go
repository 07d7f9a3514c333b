// Package http is the thin ops/admin surface over the trust-and-audit
// services. Handlers are JSON glue; every decision lives in the services.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vigil/internal/audit"
	"vigil/internal/compliance"
	"vigil/internal/fraud"
	"vigil/internal/lockout"
	"vigil/pkg/sentinel"
)

// Handler serves the admin endpoints.
type Handler struct {
	runner  *compliance.Runner
	trail   *audit.Trail
	tracker *lockout.Tracker
	scorer  *fraud.Scorer
	logger  *slog.Logger
}

// NewHandler wires the services into the handler.
func NewHandler(runner *compliance.Runner, trail *audit.Trail, tracker *lockout.Tracker, scorer *fraud.Scorer, logger *slog.Logger) *Handler {
	return &Handler{
		runner:  runner,
		trail:   trail,
		tracker: tracker,
		scorer:  scorer,
		logger:  logger.With("component", "http"),
	}
}

// handleComplianceRun triggers one synchronous compliance run and returns it.
func (h *Handler) handleComplianceRun(w http.ResponseWriter, r *http.Request) {
	run := h.runner.RunChecks(r.Context())
	writeJSON(w, http.StatusOK, run)
}

// handleComplianceReport summarizes run history over ?period= (default 24h).
func (h *Handler) handleComplianceReport(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "24h"
	}
	report, err := h.runner.GenerateReport(r.Context(), period)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleAuditRecent serves the in-process tail: ?category=&limit=.
func (h *Handler) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	category := audit.Category(r.URL.Query().Get("category"))
	if category != "" && !category.IsValid() {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "unknown audit category")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "limit must be in [1,1000]")
			return
		}
		limit = n
	}

	events := h.trail.Recent(category, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleAuditQuery reads the durable store: ?category=&limit=&from=&to=.
func (h *Handler) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{
		Category: audit.Category(r.URL.Query().Get("category")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := parseRFC3339(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "from must be RFC 3339")
			return
		}
		filter.From = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := parseRFC3339(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "to must be RFC 3339")
			return
		}
		filter.To = t
	}

	events, err := h.trail.Query(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleFraudAssess scores a transaction submitted by the surrounding
// payment layer (or an operator probing the rules).
func (h *Handler) handleFraudAssess(w http.ResponseWriter, r *http.Request) {
	var tx fraud.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "malformed transaction body")
		return
	}
	assessment, err := h.scorer.Assess(r.Context(), tx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

// handleLockoutStatus reports an identity's lock state.
func (h *Handler) handleLockoutStatus(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	status, err := h.tracker.IsLocked(r.Context(), identity)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := map[string]any{"locked": status.Locked}
	if status.Locked {
		resp["remaining_minutes"] = int(math.Ceil(status.Remaining.Minutes()))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sentinel.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func parseRFC3339(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, raw)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}
