package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/splitpay/split-engine/internal/domain"
)

// ownerHeader carries the authenticated owner identity, injected by the
// gateway in front of this service. Authentication itself is out of scope
// here; an empty header is rejected.
const ownerHeader = "X-Owner-ID"

type errorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	statusCode := http.StatusInternalServerError
	switch {
	case domain.IsValidationError(err):
		statusCode = http.StatusBadRequest
	case domain.IsReferenceError(err):
		statusCode = http.StatusUnprocessableEntity
	case domain.IsConflictError(err):
		statusCode = http.StatusConflict
	case domain.IsNotFoundError(err):
		statusCode = http.StatusNotFound
	}

	resp := errorResponse{Error: err.Error()}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		resp.Error = domainErr.Message
		resp.Code = string(domainErr.Code)
		if len(domainErr.Details) > 0 {
			resp.Details = domainErr.Details
		}
	}
	if statusCode == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		resp.Error = "internal error"
		resp.Details = nil
	}

	respondJSON(w, logger, statusCode, resp)
}

func ownerID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		respondJSON(w, logger, http.StatusUnauthorized, errorResponse{Error: "missing owner identity"})
		return "", false
	}
	return owner, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondJSON(w, logger, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func paginationParams(r *http.Request) (limit, offset int32) {
	q := r.URL.Query()
	limit = parseInt32(q.Get("limit"), 50)
	offset = parseInt32(q.Get("offset"), 0)
	return limit, offset
}

func parseInt32(s string, fallback int32) int32 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(v)
}
