// Package notestore implements CRUD over per-note JSON documents.
package notestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

// Store persists notes as one JSON document per id.
type Store struct {
	files  storage.Provider
	logger *slog.Logger
}

// New creates a note store over the given document provider.
func New(files storage.Provider, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{files: files, logger: logger}
}

// List returns all notes sorted by updatedAt descending. Documents that
// cannot be read or parsed are skipped so one corrupt file does not take
// the whole sidebar down.
func (s *Store) List(_ context.Context) ([]models.Note, error) {
	infos, err := s.files.List()
	if err != nil {
		return nil, fmt.Errorf("notestore: list: %w", err)
	}
	notes := make([]models.Note, 0, len(infos))
	for _, info := range infos {
		n, err := s.read(info.ID)
		if err != nil {
			s.logger.Warn("skipping unreadable note",
				slog.String("id", info.ID), slog.String("error", err.Error()))
			continue
		}
		notes = append(notes, *n)
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	return notes, nil
}

// Get returns the note with the given id. Missing or unparsable documents
// are reported as apperr.ErrNotFound.
func (s *Store) Get(_ context.Context, id string) (*models.Note, error) {
	if id == "" {
		return nil, fmt.Errorf("notestore: %w: id is required", apperr.ErrValidation)
	}
	n, err := s.read(id)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	return n, nil
}

// Create assigns an id and timestamps, persists the note, and returns it.
// A missing or empty title falls back to the default placeholder.
func (s *Store) Create(_ context.Context, patch models.NotePatch) (*models.Note, error) {
	now := time.Now().UTC()
	n := &models.Note{
		ID:        uuid.NewString(),
		Title:     models.DefaultTitle,
		Content:   json.RawMessage(`""`),
		CreatedAt: now,
		UpdatedAt: now,
	}
	patch.ApplyTo(n)
	if err := s.write(n); err != nil {
		return nil, err
	}
	return n, nil
}

// Update merges the patch over the stored note, advances updatedAt, and
// persists. Fields absent from the patch are preserved.
func (s *Store) Update(_ context.Context, id string, patch models.NotePatch) (*models.Note, error) {
	n, err := s.read(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	patch.ApplyTo(n)
	n.UpdatedAt = touchAfter(n.UpdatedAt)
	if err := s.write(n); err != nil {
		return nil, err
	}
	return n, nil
}

// Touch advances updatedAt without changing any other field. Used when a
// note's chat log changes.
func (s *Store) Touch(_ context.Context, id string) error {
	n, err := s.read(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	n.UpdatedAt = touchAfter(n.UpdatedAt)
	return s.write(n)
}

// Delete removes the note document.
func (s *Store) Delete(_ context.Context, id string) error {
	if err := s.files.Delete(id); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) read(id string) (*models.Note, error) {
	data, err := s.files.Read(id)
	if err != nil {
		return nil, err
	}
	var n models.Note
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("notestore: parse %s: %w", id, err)
	}
	if n.Title == "" {
		n.Title = models.DefaultTitle
	}
	return &n, nil
}

func (s *Store) write(n *models.Note) error {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return fmt.Errorf("notestore: marshal %s: %w", n.ID, err)
	}
	if err := s.files.Write(n.ID, data); err != nil {
		return fmt.Errorf("notestore: persist %s: %w", n.ID, err)
	}
	return nil
}

// touchAfter returns the current time, nudged forward when the clock has
// not advanced past prev so updatedAt strictly increases.
func touchAfter(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}
