package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"finance-tracker/internal/service"
)

// Report handles GET /api/reports.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Report(r.Context(), GetUserFromContext(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type budgetRequest struct {
	Category string          `json:"category"`
	Limit    json.RawMessage `json:"limit"`
}

// SetBudget handles POST /api/budget.
func (h *Handlers) SetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	text := numberText(req.Limit)
	if text == "" {
		h.writeError(w, r, fmt.Errorf("%w: limit is required", service.ErrValidation))
		return
	}
	limit, err := strconv.ParseFloat(text, 64)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: limit must be a number", service.ErrValidation))
		return
	}

	summary, err := h.svc.SetBudget(r.Context(), GetUserFromContext(r), req.Category, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetBudget handles GET /api/budget.
func (h *Handlers) GetBudget(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetBudget(r.Context(), GetUserFromContext(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
