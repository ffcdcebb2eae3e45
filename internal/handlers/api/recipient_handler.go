package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/services/recipient"
)

// RecipientHandler exposes the recipient registry over HTTP
type RecipientHandler struct {
	service *recipient.Service
	logger  *zap.Logger
}

// NewRecipientHandler creates a new recipient handler
func NewRecipientHandler(service *recipient.Service, logger *zap.Logger) *RecipientHandler {
	return &RecipientHandler{service: service, logger: logger}
}

type createRecipientRequest struct {
	Name        string `json:"name"`
	TaxID       string `json:"tax_id"`
	LegalPerson string `json:"legal_person"`
	PixKeyType  string `json:"pix_key_type"`
	PixKey      string `json:"pix_key"`
}

type updateRecipientRequest struct {
	Name       *string `json:"name"`
	TaxID      *string `json:"tax_id"`
	PixKeyType *string `json:"pix_key_type"`
	PixKey     *string `json:"pix_key"`
	Active     *bool   `json:"active"`
}

// Create handles POST /api/v1/recipients
func (h *RecipientHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r, h.logger)
	if !ok {
		return
	}
	var req createRecipientRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), recipient.CreateRequest{
		OwnerID:     owner,
		Name:        req.Name,
		TaxID:       req.TaxID,
		LegalPerson: domain.LegalPersonType(req.LegalPerson),
		PixKeyType:  domain.PixKeyType(req.PixKeyType),
		PixKey:      req.PixKey,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, created)
}

// Get handles GET /api/v1/recipients/{id}
func (h *RecipientHandler) Get(w http.ResponseWriter, r *http.Request) {
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

// List handles GET /api/v1/recipients
func (h *RecipientHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset := paginationParams(r)
	recipients, err := h.service.List(r.Context(), owner, limit, offset)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"recipients": recipients})
}

// Update handles PATCH /api/v1/recipients/{id}
func (h *RecipientHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r, h.logger)
	if !ok {
		return
	}
	var req updateRecipientRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	update := recipient.UpdateRequest{
		Name:   req.Name,
		TaxID:  req.TaxID,
		PixKey: req.PixKey,
		Active: req.Active,
	}
	if req.PixKeyType != nil {
		keyType := domain.PixKeyType(*req.PixKeyType)
		update.PixKeyType = &keyType
	}

	updated, err := h.service.Update(r.Context(), owner, r.PathValue("id"), update)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, updated)
}

// Deactivate handles POST /api/v1/recipients/{id}/deactivate.
// Shorthand for updating with active=false; rules keep referencing the
// recipient but new rules cannot.
func (h *RecipientHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r, h.logger)
	if !ok {
		return
	}
	updated, err := h.service.Deactivate(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/recipients/{id}
func (h *RecipientHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
