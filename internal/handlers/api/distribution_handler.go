package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/splitpay/split-engine/internal/services/split"
)

// DistributionHandler exposes distribute and transaction lookups over HTTP
type DistributionHandler struct {
	distributor *split.Distributor
	logger      *zap.Logger
}

// NewDistributionHandler creates a new distribution handler
func NewDistributionHandler(distributor *split.Distributor, logger *zap.Logger) *DistributionHandler {
	return &DistributionHandler{distributor: distributor, logger: logger}
}

type distributeRequest struct {
	SaleID     string `json:"sale_id"`
	RuleID     string `json:"rule_id"`
	TotalValue int64  `json:"total_value"`
	Currency   string `json:"currency,omitempty"`
}

// Distribute handles POST /api/v1/distributions.
// Retrying with the same sale_id returns the already-created transaction,
// so sale-confirmation webhooks can be redelivered safely.
func (h *DistributionHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r, h.logger)
	if !ok {
		return
	}
	var req distributeRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	txn, err := h.distributor.Distribute(r.Context(), split.DistributeRequest{
		OwnerID:    owner,
		SaleID:     req.SaleID,
		RuleID:     req.RuleID,
		TotalValue: req.TotalValue,
		Currency:   req.Currency,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, txn)
}

// GetTransaction handles GET /api/v1/transactions/{id}
func (h *DistributionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r, h.logger)
	if !ok {
		return
	}
	txn, err := h.distributor.GetTransaction(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, txn)
}

// GetBySale handles GET /api/v1/sales/{saleId}/transaction
func (h *DistributionHandler) GetBySale(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r, h.logger)
	if !ok {
		return
	}
	txn, err := h.distributor.GetBySale(r.Context(), owner, r.PathValue("saleId"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, txn)
}
