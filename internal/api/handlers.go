package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/assist"
	"github.com/starford/quill/internal/autosave"
	"github.com/starford/quill/internal/chatservice"
	"github.com/starford/quill/internal/chatstore"
	"github.com/starford/quill/internal/index"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/notestore"
)

// Deps bundles the services the API surfaces.
type Deps struct {
	Notes  *notestore.Store
	Chats  *chatstore.Store
	Saver  *autosave.Manager
	Chat   *chatservice.Service
	Assist *assist.Service
	Index  index.NoteIndex
}

// Handler holds API route handlers.
type Handler struct {
	notes  *notestore.Store
	chats  *chatstore.Store
	saver  *autosave.Manager
	chat   *chatservice.Service
	assist *assist.Service
	idx    index.NoteIndex
	refs   *chatservice.RefSet
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		notes:  d.Notes,
		chats:  d.Chats,
		saver:  d.Saver,
		chat:   d.Chat,
		assist: d.Assist,
		idx:    d.Index,
		refs:   chatservice.NewRefSet(),
	}
}

func noteID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes ordered by most recently updated
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.List(r.Context())
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// GetNote handles GET /api/notes/{id}. Opening a note also makes it the
// autosave target: pending edits for the previously open note are flushed
// first, so the response never races a stale draft.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	note, err := h.notes.Get(r.Context(), id)
	if err == nil {
		if openErr := h.saver.Open(r.Context(), id); openErr != nil {
			slog.Warn("flush on note switch failed", slog.String("id", id), slog.String("error", openErr.Error()))
		}
		// Re-read: the switch may have flushed pending edits for this note.
		note, err = h.notes.Get(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	patch := models.NotePatch{Content: req.Content}
	if req.Title != "" {
		patch.Title = &req.Title
	}
	note, err := h.notes.Create(r.Context(), patch)
	if err != nil {
		slog.Error("create note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if err := h.chats.Init(r.Context(), note.ID); err != nil {
		slog.Warn("init chat log failed", slog.String("id", note.ID), slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}. This is the direct write path;
// editor keystrokes go through the draft endpoints instead.
//
//	@Summary		Update a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"Fields to change"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := noteID(r)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	patch := models.NotePatch{Title: req.Title, Content: req.Content}
	if patch.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorBody("no fields to update"))
		return
	}
	note, err := h.notes.Update(r.Context(), id, patch)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("update note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}. Staged draft edits for the
// note are discarded, and its chat log goes with it.
//
//	@Summary		Delete a note and its chat history
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	h.saver.Forget(id)
	if err := h.notes.Delete(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if err := h.chats.Delete(r.Context(), id); err != nil {
		slog.Warn("delete chat log failed", slog.String("id", id), slog.String("error", err.Error()))
	}
	w.WriteHeader(http.StatusNoContent)
}

// StageDraft handles PUT /api/notes/{id}/draft. The patch is buffered in
// memory and written to disk after the debounce interval, or earlier via
// FlushDraft.
//
//	@Summary		Stage editor changes for debounced persistence
//	@Tags			notes
//	@Accept			json
//	@Param			id		path	string				true	"Note id"
//	@Param			body	body	UpdateNoteRequest	true	"Fields to stage"
//	@Success		202		"Draft staged"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/draft [put]
func (h *Handler) StageDraft(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := noteID(r)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	patch := models.NotePatch{Title: req.Title, Content: req.Content}
	if patch.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorBody("no fields to stage"))
		return
	}
	if err := h.saver.Stage(r.Context(), id, patch); err != nil {
		slog.Error("stage draft failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// FlushDraft handles POST /api/notes/{id}/draft/flush, forcing pending
// staged edits to disk immediately (window close, app quit).
//
//	@Summary		Flush staged edits to disk now
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Flushed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/draft/flush [post]
func (h *Handler) FlushDraft(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if err := h.saver.Flush(r.Context()); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("flush draft failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.idx.Search(q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, SearchResult{ID: hit.ID, Title: hit.Title, Snippet: hit.Snippet})
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
