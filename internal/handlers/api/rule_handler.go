package api

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/services/rule"
)

// RuleHandler exposes the split rule store over HTTP
type RuleHandler struct {
	service *rule.Service
	logger  *zap.Logger
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(service *rule.Service, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{service: service, logger: logger}
}

type ruleLineRequest struct {
	RecipientID string          `json:"recipient_id"`
	Kind        string          `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	Note        string          `json:"note,omitempty"`
}

type createRuleRequest struct {
	Name                 string            `json:"name"`
	CommissionPercentage decimal.Decimal   `json:"commission_percentage"`
	Lines                []ruleLineRequest `json:"lines"`
}

type updateRuleRequest struct {
	Name                 *string           `json:"name"`
	CommissionPercentage *decimal.Decimal  `json:"commission_percentage"`
	Lines                []ruleLineRequest `json:"lines"`
}

func toLineInputs(lines []ruleLineRequest) []rule.LineInput {
	if lines == nil {
		return nil
	}
	inputs := make([]rule.LineInput, len(lines))
	for i, l := range lines {
		inputs[i] = rule.LineInput{
			RecipientID: l.RecipientID,
			Kind:        domain.AllocationKind(l.Kind),
			Value:       l.Value,
			Note:        l.Note,
		}
	}
	return inputs
}

// Create handles POST /api/v1/rules
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r, h.logger)
	if !ok {
		return
	}
	var req createRuleRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), rule.CreateRequest{
		OwnerID:              owner,
		Name:                 req.Name,
		CommissionPercentage: req.CommissionPercentage,
		Lines:                toLineInputs(req.Lines),
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, created)
}

// Get handles GET /api/v1/rules/{id}
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r, h.logger)
	if !ok {
		return
	}
	got, err := h.service.Get(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, got)
}

// List handles GET /api/v1/rules
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset := paginationParams(r)
	rules, err := h.service.List(r.Context(), owner, limit, offset)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"rules": rules})
}

// Update handles PATCH /api/v1/rules/{id}
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r, h.logger)
	if !ok {
		return
	}
	var req updateRuleRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	updated, err := h.service.Update(r.Context(), owner, r.PathValue("id"), rule.UpdateRequest{
		Name:                 req.Name,
		CommissionPercentage: req.CommissionPercentage,
		Lines:                toLineInputs(req.Lines),
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/rules/{id}
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), owner, r.PathValue("id")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusNoContent, nil)
}
