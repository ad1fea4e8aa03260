package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(deps Deps, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(deps)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Debounced editor drafts.
	r.Put("/notes/{id}/draft", h.StageDraft)
	r.Post("/notes/{id}/draft/flush", h.FlushDraft)

	// Per-note chat.
	r.Get("/notes/{id}/chat", h.GetChatHistory)
	r.Post("/notes/{id}/chat", h.AppendChatMessage)
	r.Delete("/notes/{id}/chat", h.ClearChatHistory)
	r.Post("/notes/{id}/chat/stream", h.StreamChat)

	// AI text operations.
	r.Post("/improve", h.Improve)
	r.Post("/notes/{id}/apply", h.Apply)

	// Session-scoped chat references.
	r.Get("/references", h.ListReferences)
	r.Post("/references", h.AddReference)
	r.Delete("/references/{refID}", h.RemoveReference)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
