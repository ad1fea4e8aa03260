// Package chatservice bridges UI chat requests to the LLM provider and
// the per-note chat history.
package chatservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/chatstore"
	"github.com/starford/quill/internal/llm"
	"github.com/starford/quill/internal/models"
)

// Event types relayed to the caller during a streaming send.
const (
	EventChunk = "chunk"
	EventDone  = "done"
	EventError = "error"
)

// Event is one normalized unit relayed to the caller: an incremental
// content delta, stream completion, or a human-readable error.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// SendRequest carries one streaming chat request. NoteID is optional;
// when present the conversation is persisted against that note.
type SendRequest struct {
	NoteID     string
	APIKey     string
	Messages   []llm.Message
	References []TextReference
}

// Service streams chat completions and persists the conversation.
type Service struct {
	provider llm.Provider
	history  *chatstore.Store
	logger   *slog.Logger
}

// New creates a chat service.
func New(provider llm.Provider, history *chatstore.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, history: history, logger: logger}
}

// Send streams one chat completion, invoking emit for every event.
//
// The trailing user message is persisted before the request goes out; the
// accumulated assistant reply is persisted once the stream completes.
// Cancelling ctx interrupts the relay at the next chunk boundary — the
// provider may already have produced that chunk, it is simply not
// forwarded. An interrupted or empty reply is not persisted.
func (s *Service) Send(ctx context.Context, req SendRequest, emit func(Event)) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("chat: %w: no messages", apperr.ErrValidation)
	}

	if req.NoteID != "" {
		last := req.Messages[len(req.Messages)-1]
		if last.Role == models.RoleUser {
			if _, err := s.history.Append(ctx, req.NoteID, last.Role, last.Content); err != nil {
				s.logger.Warn("persist user message failed",
					slog.String("note_id", req.NoteID), slog.String("error", err.Error()))
			}
		}
	}

	messages := req.Messages
	if preamble := Preamble(req.References); preamble != "" {
		messages = append([]llm.Message{{Role: models.RoleSystem, Content: preamble}}, messages...)
	}

	stream, err := s.provider.Stream(ctx, llm.Request{
		APIKey:   req.APIKey,
		Messages: messages,
	})
	if err != nil {
		emit(Event{Type: EventError, Content: err.Error()})
		return fmt.Errorf("chat: %w", err)
	}
	defer stream.Close()

	var reply strings.Builder
	aborted := false
	for {
		if ctx.Err() != nil {
			aborted = true
			break
		}
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				aborted = true
				break
			}
			emit(Event{Type: EventError, Content: err.Error()})
			return fmt.Errorf("chat: stream: %w", err)
		}
		if delta == "" {
			continue
		}
		reply.WriteString(delta)
		emit(Event{Type: EventChunk, Content: delta})
	}

	if req.NoteID != "" && !aborted && reply.Len() > 0 {
		if _, err := s.history.Append(context.WithoutCancel(ctx), req.NoteID, models.RoleAssistant, reply.String()); err != nil {
			s.logger.Warn("persist assistant message failed",
				slog.String("note_id", req.NoteID), slog.String("error", err.Error()))
		}
	}
	if aborted {
		s.logger.Info("chat stream interrupted", slog.String("note_id", req.NoteID))
	}
	emit(Event{Type: EventDone})
	return nil
}
