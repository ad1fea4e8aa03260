package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/chatservice"
	"github.com/starford/quill/internal/delta"
	"github.com/starford/quill/internal/llm"
	"github.com/starford/quill/internal/models"
)

// openaiKey extracts the per-request OpenAI credential. The key is never
// stored server-side; every AI request carries it.
func openaiKey(r *http.Request) string {
	return r.Header.Get("X-Openai-Key")
}

// GetChatHistory handles GET /api/notes/{id}/chat.
//
//	@Summary		Get the chat transcript for a note
//	@Tags			chat
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	ChatHistoryResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/chat [get]
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if _, err := h.notes.Get(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	msgs, err := h.chats.History(r.Context(), id)
	if err != nil {
		slog.Error("chat history failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ChatHistoryResponse{Messages: msgs})
}

// AppendChatMessage handles POST /api/notes/{id}/chat.
//
//	@Summary		Append one message to a note's chat transcript
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		ChatAppendRequest	true	"Message to append"
//	@Success		201		{object}	models.ChatMessage
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/chat [post]
func (h *Handler) AppendChatMessage(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	var req ChatAppendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	switch req.Role {
	case models.RoleUser, models.RoleAssistant, models.RoleSystem:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("invalid role"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	if _, err := h.notes.Get(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	msg, err := h.chats.Append(r.Context(), id, req.Role, req.Content)
	if err != nil {
		slog.Error("append chat message failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// ClearChatHistory handles DELETE /api/notes/{id}/chat.
//
//	@Summary		Clear a note's chat transcript
//	@Tags			chat
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Cleared"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/chat [delete]
func (h *Handler) ClearChatHistory(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if _, err := h.notes.Get(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.chats.Clear(r.Context(), id); err != nil {
		slog.Error("clear chat failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamChat handles POST /api/notes/{id}/chat/stream. The response is a
// Server-Sent Events stream scoped to this request: chunk events carry
// content deltas, a done event closes the exchange. Closing the request
// (client disconnect) interrupts the relay; whatever was already streamed
// stays unsaved.
//
//	@Summary		Stream a chat completion for a note
//	@Tags			chat
//	@Accept			json
//	@Param			id				path	string				true	"Note id"
//	@Param			X-Openai-Key	header	string				true	"OpenAI API key"
//	@Param			body			body	ChatStreamRequest	true	"Conversation turns"
//	@Success		200				"text/event-stream"
//	@Failure		400				{object}	errResponse
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/chat/stream [post]
func (h *Handler) StreamChat(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	key := openaiKey(r)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("X-Openai-Key header is required"))
		return
	}
	var req ChatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("messages are required"))
		return
	}
	if _, err := h.notes.Get(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody("streaming unsupported"))
		return
	}

	msgs := make([]llm.Message, 0, len(req.Messages))
	for _, turn := range req.Messages {
		msgs = append(msgs, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := h.chat.Send(r.Context(), chatservice.SendRequest{
		NoteID:     id,
		APIKey:     key,
		Messages:   msgs,
		References: req.References,
	}, func(ev chatservice.Event) {
		payload, marshalErr := json.Marshal(ev)
		if marshalErr != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
		flusher.Flush()
	})
	if err != nil {
		// The error event already went down the stream; nothing more to send.
		slog.Error("chat stream failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// Improve handles POST /api/improve. The span is identified by rune
// offsets into the submitted text; the response carries only the
// replacement for that span.
//
//	@Summary		Rewrite a span of text with AI assistance
//	@Tags			assist
//	@Accept			json
//	@Produce		json
//	@Param			X-Openai-Key	header		string			true	"OpenAI API key"
//	@Param			body			body		ImproveRequest	true	"Text and span"
//	@Success		200				{object}	ImproveResponse
//	@Failure		400				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/improve [post]
func (h *Handler) Improve(w http.ResponseWriter, r *http.Request) {
	key := openaiKey(r)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("X-Openai-Key header is required"))
		return
	}
	var req ImproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	improved, err := h.assist.Improve(r.Context(), req.Text, req.Start, req.Length, key, req.Instruction)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		} else {
			slog.Error("improve failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, ImproveResponse{Text: improved})
}

// Apply handles POST /api/notes/{id}/apply: merge an assistant message's
// suggested edits into the note's current text. The result is returned to
// the editor, not written to the note; the editor owns the buffer.
//
//	@Summary		Apply an assistant suggestion to a note's text
//	@Tags			assist
//	@Accept			json
//	@Produce		json
//	@Param			id				path		string			true	"Note id"
//	@Param			X-Openai-Key	header		string			true	"OpenAI API key"
//	@Param			body			body		ApplyRequest	true	"Assistant message"
//	@Success		200				{object}	ApplyResponse
//	@Failure		400				{object}	errResponse
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/apply [post]
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	key := openaiKey(r)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("X-Openai-Key header is required"))
		return
	}
	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("message is required"))
		return
	}
	note, err := h.notes.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	out, err := h.assist.Apply(r.Context(), delta.PlainText(note.Content), req.Message, key)
	if err != nil {
		slog.Error("apply failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ApplyResponse{Text: out})
}

// ListReferences handles GET /api/references.
//
//	@Summary		List active chat references
//	@Tags			chat
//	@Produce		json
//	@Success		200	{object}	ReferenceListResponse
//	@Security		BearerAuth
//	@Router			/references [get]
func (h *Handler) ListReferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ReferenceListResponse{References: h.refs.List()})
}

// AddReference handles POST /api/references.
//
//	@Summary		Register a highlighted excerpt for the chat session
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ReferenceRequest	true	"Excerpt"
//	@Success		201		{object}	chatservice.TextReference
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/references [post]
func (h *Handler) AddReference(w http.ResponseWriter, r *http.Request) {
	var req ReferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	writeJSON(w, http.StatusCreated, h.refs.Add(req.Text))
}

// RemoveReference handles DELETE /api/references/{refID}.
//
//	@Summary		Remove a chat reference, freeing its id
//	@Tags			chat
//	@Param			refID	path	int	true	"Reference id"
//	@Success		204		"Removed"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/references/{refID} [delete]
func (h *Handler) RemoveReference(w http.ResponseWriter, r *http.Request) {
	refID, err := strconv.Atoi(chi.URLParam(r, "refID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid reference id"))
		return
	}
	h.refs.Remove(refID)
	w.WriteHeader(http.StatusNoContent)
}
