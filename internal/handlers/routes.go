package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes registers the API endpoints on a new router.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Get("/transactions", h.ListTransactions)
			r.Post("/transactions", h.CreateTransaction)
			r.Get("/reports", h.Report)
			r.Get("/budget", h.GetBudget)
			r.Post("/budget", h.SetBudget)
			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not_found", "No such endpoint")
	})

	return r
}
