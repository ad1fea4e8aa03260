// Package chatstore persists the per-note chat log, one JSON array
// document per note id, separate from the note content itself.
package chatstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/notestore"
	"github.com/starford/quill/internal/storage"
)

// Store persists chat histories and keeps the parent note's updatedAt in
// step with chat activity.
type Store struct {
	files  storage.Provider
	notes  *notestore.Store
	logger *slog.Logger
}

// New creates a chat history store. notes may be nil in tests that do not
// care about parent-note touches.
func New(files storage.Provider, notes *notestore.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{files: files, notes: notes, logger: logger}
}

// Init creates an empty chat log for a freshly created note.
func (s *Store) Init(_ context.Context, noteID string) error {
	if noteID == "" {
		return fmt.Errorf("chatstore: %w: note id is required", apperr.ErrValidation)
	}
	return s.write(noteID, []models.ChatMessage{})
}

// History returns the ordered message log for a note, lazily creating an
// empty log on first access. A missing or unparsable log is an empty log,
// not an error.
func (s *Store) History(_ context.Context, noteID string) ([]models.ChatMessage, error) {
	if noteID == "" {
		return nil, fmt.Errorf("chatstore: %w: note id is required", apperr.ErrValidation)
	}
	msgs, ok := s.read(noteID)
	if !ok {
		if err := s.write(noteID, []models.ChatMessage{}); err != nil {
			return nil, err
		}
		return []models.ChatMessage{}, nil
	}
	return msgs, nil
}

// Append timestamps the message, appends it to the log, and touches the
// parent note's updatedAt. The log file is rewritten atomically so a
// reader never sees a partial append.
func (s *Store) Append(ctx context.Context, noteID, role, content string) (models.ChatMessage, error) {
	if noteID == "" {
		return models.ChatMessage{}, fmt.Errorf("chatstore: %w: note id is required", apperr.ErrValidation)
	}
	msg := models.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	msgs, _ := s.read(noteID)
	msgs = append(msgs, msg)
	if err := s.write(noteID, msgs); err != nil {
		return models.ChatMessage{}, err
	}
	s.touchParent(ctx, noteID)
	return msg, nil
}

// Clear resets the log to empty and touches the parent note. Clearing an
// already-empty log is a no-op that still succeeds.
func (s *Store) Clear(ctx context.Context, noteID string) error {
	if noteID == "" {
		return fmt.Errorf("chatstore: %w: note id is required", apperr.ErrValidation)
	}
	if err := s.write(noteID, []models.ChatMessage{}); err != nil {
		return err
	}
	s.touchParent(ctx, noteID)
	return nil
}

// Delete removes the log document. Missing logs are fine: the note may
// never have had a chat.
func (s *Store) Delete(_ context.Context, noteID string) error {
	if noteID == "" {
		return fmt.Errorf("chatstore: %w: note id is required", apperr.ErrValidation)
	}
	if err := s.files.Delete(noteID); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) touchParent(ctx context.Context, noteID string) {
	if s.notes == nil {
		return
	}
	if err := s.notes.Touch(ctx, noteID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("touch parent note failed",
			slog.String("note_id", noteID), slog.String("error", err.Error()))
	}
}

func (s *Store) read(noteID string) ([]models.ChatMessage, bool) {
	data, err := s.files.Read(noteID)
	if err != nil {
		return nil, false
	}
	var msgs []models.ChatMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		s.logger.Warn("unparsable chat log treated as empty",
			slog.String("note_id", noteID), slog.String("error", err.Error()))
		return nil, false
	}
	return msgs, true
}

func (s *Store) write(noteID string, msgs []models.ChatMessage) error {
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("chatstore: marshal %s: %w", noteID, err)
	}
	if err := s.files.Write(noteID, data); err != nil {
		return fmt.Errorf("chatstore: persist %s: %w", noteID, err)
	}
	return nil
}
