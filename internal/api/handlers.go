package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tome/internal/kbservice"
	"github.com/starford/tome/internal/store"
)

const maxJSONBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *kbservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *kbservice.Service) *Handler {
	return &Handler{svc: svc}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListItems handles GET /api/items.
//
//	@Summary		List items, optionally filtered
//	@Tags			items
//	@Produce		json
//	@Param			q			query		string	false	"Case-insensitive text match"
//	@Param			category	query		string	false	"Filter by category"
//	@Param			tag			query		string	false	"Filter by tag"
//	@Success		200			{object}	ItemListResponse
//	@Router			/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items := h.svc.List(r.Context(), store.Query{
		Text:     q.Get("q"),
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
	})
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)})
}

// ListCategories handles GET /api/categories.
//
//	@Summary		List categories in use
//	@Tags			items
//	@Produce		json
//	@Success		200	{object}	map[string][]string
//	@Router			/categories [get]
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": h.svc.Categories(r.Context()),
	})
}

// GetItem handles GET /api/items/{id}.
//
//	@Summary		Get a single item
//	@Tags			items
//	@Produce		json
//	@Param			id	path		string	true	"Item ID"
//	@Success		200	{object}	KnowledgeItem
//	@Failure		404	{object}	errResponse
//	@Router			/items/{id} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get item", err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// CreateItem handles POST /api/items.
//
//	@Summary		Create an item
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateItemRequest	true	"Item to create"
//	@Success		201		{object}	KnowledgeItem
//	@Failure		400		{object}	errResponse
//	@Router			/items [post]
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, h.svc.Create(r.Context(), req.Input()))
}

// UpdateItem handles PATCH /api/items/{id}.
//
//	@Summary		Partially update an item
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Item ID"
//	@Param			body	body		UpdateItemRequest	true	"Fields to change"
//	@Success		200		{object}	KnowledgeItem
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/items/{id} [patch]
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	item, err := h.svc.Update(r.Context(), req.Patch(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, "update item", err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteItem handles DELETE /api/items/{id}. Unknown ids succeed.
//
//	@Summary		Delete an item
//	@Tags			items
//	@Param			id	path	string	true	"Item ID"
//	@Success		204	"Item deleted"
//	@Router			/items/{id} [delete]
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	h.svc.Delete(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// SummarizeItem handles POST /api/items/{id}/summary.
//
//	@Summary		Generate and store an AI summary
//	@Tags			ai
//	@Produce		json
//	@Param			id	path		string	true	"Item ID"
//	@Success		200	{object}	KnowledgeItem
//	@Failure		404	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Router			/items/{id}/summary [post]
func (h *Handler) SummarizeItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Summarize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "summarize item", err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Ask handles POST /api/ask.
//
//	@Summary		Answer a question from the knowledge base
//	@Tags			ai
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AskRequest	true	"Question"
//	@Success		200		{object}	AskResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Router			/ask [post]
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	answer, err := h.svc.Ask(r.Context(), req.Question)
	if err != nil {
		writeError(w, "ask", err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{Question: req.Question, Answer: answer})
}

// AIStatus handles GET /api/ai/status.
//
//	@Summary		Report AI availability
//	@Tags			ai
//	@Produce		json
//	@Success		200	{object}	AIStatusResponse
//	@Router			/ai/status [get]
func (h *Handler) AIStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.AIStatus())
}
