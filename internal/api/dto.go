package api

import (
	"encoding/json"

	"github.com/starford/quill/internal/chatservice"
	"github.com/starford/quill/internal/models"
)

// CreateNoteRequest is the request body for creating a note. Both fields
// are optional; omitted fields get their defaults.
type CreateNoteRequest struct {
	Title   string          `json:"title" example:"Groceries"`
	Content json.RawMessage `json:"content"`
}

// UpdateNoteRequest is the request body for updating a note. Omitted
// fields keep their stored values.
type UpdateNoteRequest struct {
	Title   *string         `json:"title"`
	Content json.RawMessage `json:"content"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// ChatHistoryResponse wraps a note's chat transcript.
type ChatHistoryResponse struct {
	Messages []models.ChatMessage `json:"messages" validate:"required"`
}

// ChatAppendRequest appends one message to a note's chat history.
type ChatAppendRequest struct {
	Role    string `json:"role" example:"user" validate:"required"`
	Content string `json:"content" example:"What is this note about?" validate:"required"`
}

// ChatTurn is one conversation turn in a streaming request.
type ChatTurn struct {
	Role    string `json:"role" example:"user" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// ChatStreamRequest is the request body for the streaming chat endpoint.
type ChatStreamRequest struct {
	Messages   []ChatTurn                  `json:"messages" validate:"required"`
	References []chatservice.TextReference `json:"references,omitempty"`
}

// ImproveRequest asks for an improved rewrite of a span of text.
// Start and Length are rune offsets into Text.
type ImproveRequest struct {
	Text        string `json:"text" validate:"required"`
	Start       int    `json:"start" example:"10" validate:"required"`
	Length      int    `json:"length" example:"25" validate:"required"`
	Instruction string `json:"instruction,omitempty" example:"make it more formal"`
}

// ImproveResponse carries the replacement for the requested span.
type ImproveResponse struct {
	Text string `json:"text" validate:"required"`
}

// ApplyRequest asks for an assistant message's edits merged into a note.
type ApplyRequest struct {
	Message string `json:"message" validate:"required"`
}

// ApplyResponse carries the full updated note text.
type ApplyResponse struct {
	Text string `json:"text" validate:"required"`
}

// ReferenceRequest registers a highlighted excerpt for the chat session.
type ReferenceRequest struct {
	Text string `json:"text" validate:"required"`
}

// ReferenceListResponse wraps the active references.
type ReferenceListResponse struct {
	References []chatservice.TextReference `json:"references" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	ID      string `json:"id" validate:"required"`
	Title   string `json:"title" example:"Groceries" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
