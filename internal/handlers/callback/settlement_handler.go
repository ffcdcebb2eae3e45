package callback

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/services/split"
)

// SettlementHandler accepts status reports from the settlement worker.
// This is the only inbound interface the engine exposes besides the
// CRUD/distribute API.
type SettlementHandler struct {
	distributor  *split.Distributor
	logger       *zap.Logger
	sharedSecret string
}

// NewSettlementHandler creates a new settlement callback handler
func NewSettlementHandler(distributor *split.Distributor, logger *zap.Logger, sharedSecret string) *SettlementHandler {
	return &SettlementHandler{
		distributor:  distributor,
		logger:       logger,
		sharedSecret: sharedSecret,
	}
}

type statusReportRequest struct {
	AllocationID string `json:"allocation_id"`
	Status       string `json:"status"`
	ErrorDetail  string `json:"error_detail,omitempty"`
}

// ReportStatus handles POST /callbacks/settlement
func (h *SettlementHandler) ReportStatus(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(r) {
		h.logger.Warn("unauthorized settlement callback",
			zap.String("remote_addr", r.RemoteAddr))
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req statusReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AllocationID == "" {
		h.respondError(w, http.StatusBadRequest, "allocation_id is required")
		return
	}

	err := h.distributor.ReportStatus(r.Context(), req.AllocationID, domain.AllocationStatus(req.Status), req.ErrorDetail)
	if err != nil {
		switch {
		case domain.IsNotFoundError(err):
			h.respondError(w, http.StatusNotFound, err.Error())
		case domain.IsConflictError(err):
			h.respondError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("settlement callback failed",
				zap.String("allocation_id", req.AllocationID),
				zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"applied": true})
}

func (h *SettlementHandler) authenticate(r *http.Request) bool {
	if h.sharedSecret == "" {
		return true
	}
	if r.Header.Get("X-Settlement-Secret") == h.sharedSecret {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+h.sharedSecret
}

func (h *SettlementHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
