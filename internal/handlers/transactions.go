package handlers

import (
	"encoding/json"
	"net/http"

	"finance-tracker/internal/service"
)

type transactionRequest struct {
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
}

// CreateTransaction handles POST /api/transactions.
func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	t, err := h.svc.AddTransaction(r.Context(), GetUserFromContext(r), service.TransactionInput{
		Description: req.Description,
		Amount:      numberText(req.Amount),
		Type:        req.Type,
		Category:    req.Category,
		Date:        req.Date,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

// ListTransactions handles GET /api/transactions.
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListTransactions(r.Context(), GetUserFromContext(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
