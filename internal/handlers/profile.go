package handlers

import (
	"net/http"

	"finance-tracker/internal/models"
)

// GetProfile handles GET /api/profile.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProfile(r.Context(), GetUserFromContext(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProfile handles PUT /api/profile. Fields left out of the body keep
// their stored values.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update models.ProfileUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.svc.UpdateProfile(r.Context(), GetUserFromContext(r), update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
