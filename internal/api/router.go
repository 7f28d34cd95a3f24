package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tome/internal/kbservice"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *kbservice.Service, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	th := NewTransferHandler(svc)
	aiEnabled := func() bool { return svc.AIStatus().Enabled }

	r := chi.NewRouter()

	// Items CRUD.
	r.Get("/items", h.ListItems)
	r.Post("/items", h.CreateItem)
	r.Get("/items/{id}", h.GetItem)
	r.Patch("/items/{id}", h.UpdateItem)
	r.Delete("/items/{id}", h.DeleteItem)
	r.Get("/categories", h.ListCategories)

	// Generative-text features.
	r.Get("/ai/status", h.AIStatus)
	r.Group(func(r chi.Router) {
		r.Use(RequireAI(aiEnabled))
		r.Post("/items/{id}/summary", h.SummarizeItem)
		r.Post("/ask", h.Ask)
	})

	// Import and export.
	r.Post("/import", th.Import)
	r.Get("/export", th.Export)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
