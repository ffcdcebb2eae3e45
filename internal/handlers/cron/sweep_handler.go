package cron

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/splitpay/split-engine/internal/services/sweep"
	"github.com/splitpay/split-engine/pkg/timeutil"
)

// SweepHandler handles cron endpoints for the reconciliation sweep. The
// sweep also runs on the in-process scheduler; these endpoints exist for
// external schedulers and manual operation.
type SweepHandler struct {
	service    *sweep.Service
	logger     *zap.Logger
	cronSecret string
}

// NewSweepHandler creates a new sweep cron handler
func NewSweepHandler(service *sweep.Service, logger *zap.Logger, cronSecret string) *SweepHandler {
	return &SweepHandler{
		service:    service,
		logger:     logger,
		cronSecret: cronSecret,
	}
}

type sweepResponse struct {
	Success     bool   `json:"success"`
	Scanned     int    `json:"scanned"`
	Republished int    `json:"republished"`
	Failed      int    `json:"failed"`
	ProcessedAt string `json:"processed_at"`
}

// RunSweep handles the POST /cron/reconciliation-sweep endpoint
func (h *SweepHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("reconciliation sweep triggered",
		zap.String("remote_addr", r.RemoteAddr))

	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}
	if !h.authenticateRequest(r) {
		h.logger.Warn("unauthorized cron request",
			zap.String("remote_addr", r.RemoteAddr))
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.service.Run(r.Context())
	if err != nil {
		h.logger.Error("reconciliation sweep failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	resp := sweepResponse{
		Success:     result.Failed == 0,
		Scanned:     result.Scanned,
		Republished: result.Republished,
		Failed:      result.Failed,
		ProcessedAt: timeutil.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Success {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusPartialContent)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// Stats handles the GET /cron/allocation-stats endpoint
func (h *SweepHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.authenticateRequest(r) {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	counts, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to collect allocation stats", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "stats failed")
		return
	}

	stats := make(map[string]int64, len(counts))
	for status, count := range counts {
		stats[string(status)] = count
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"allocations":  stats,
		"collected_at": timeutil.Now().Format(time.RFC3339),
	})
}

// authenticateRequest verifies the cron request is authorized
func (h *SweepHandler) authenticateRequest(r *http.Request) bool {
	if h.cronSecret == "" {
		return true
	}
	if secret := r.Header.Get("X-Cron-Secret"); secret == h.cronSecret {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+h.cronSecret
}

func (h *SweepHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
