// Package autosave buffers editor edits for the currently open note and
// flushes them to the note store on a debounce interval. Pushing every
// keystroke straight to disk would hammer I/O and force the editor to
// re-sync from canonical content mid-typing; the overlay defers writes
// and the store is only reconciled on flush.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/notestore"
)

// DefaultInterval is the debounce delay between the first staged edit and
// the scheduled flush.
const DefaultInterval = 5 * time.Second

// Manager holds the unflushed overlay for the currently open note.
//
// State machine per open note: Clean (no overlay) ↔ Dirty (overlay
// pending) → Flushing (store update in flight) → Clean, or back to Dirty
// when edits arrived mid-flush.
type Manager struct {
	notes   *notestore.Store
	delay   time.Duration
	logger  *slog.Logger
	onFlush func(noteID string)

	mu       sync.Mutex
	noteID   string
	overlay  models.NotePatch
	dirty    bool
	flushing bool
	timer    *time.Timer
}

// New creates a manager flushing through the given note store.
func New(notes *notestore.Store, delay time.Duration, logger *slog.Logger) *Manager {
	if delay <= 0 {
		delay = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{notes: notes, delay: delay, logger: logger}
}

// OnFlush registers a callback invoked after each successful flush.
// Must be called before the manager is in use.
func (m *Manager) OnFlush(fn func(noteID string)) { m.onFlush = fn }

// Open makes id the current note. Any pending overlay for the previously
// open note is force-flushed first and only discarded once that flush
// completes, so switching never loses buffered edits.
func (m *Manager) Open(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("autosave: %w: note id is required", apperr.ErrValidation)
	}
	m.mu.Lock()
	if m.noteID == id {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.Flush(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	m.noteID = id
	m.overlay = models.NotePatch{}
	m.dirty = false
	return nil
}

// Stage merges a partial edit into the overlay for id and, if no flush is
// already scheduled, schedules one after the debounce delay. Staging for
// a note other than the current one switches to it first.
func (m *Manager) Stage(ctx context.Context, id string, patch models.NotePatch) error {
	if id == "" {
		return fmt.Errorf("autosave: %w: note id is required", apperr.ErrValidation)
	}
	if patch.IsZero() {
		return nil
	}

	m.mu.Lock()
	current := m.noteID
	m.mu.Unlock()
	if current != id {
		if err := m.Open(ctx, id); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlay.Merge(patch)
	m.dirty = true
	if !m.flushing {
		m.scheduleLocked()
	}
	return nil
}

// Flush synchronously persists the pending overlay, if any. Callers use
// it before destructive or note-switching operations; the background
// timer funnels through it as well.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	m.stopTimerLocked()
	if !m.dirty || m.noteID == "" {
		m.mu.Unlock()
		return nil
	}
	id := m.noteID
	patch := m.overlay
	m.overlay = models.NotePatch{}
	m.dirty = false
	m.flushing = true
	m.mu.Unlock()

	_, err := m.notes.Update(ctx, id, patch)

	m.mu.Lock()
	m.flushing = false
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// The note vanished underneath us (deleted); edits are moot.
			m.mu.Unlock()
			m.logger.Warn("dropping overlay for deleted note", slog.String("note_id", id))
			return err
		}
		// Restore the unflushed patch underneath any edits staged while
		// the write was in flight, then retry on the next tick instead
		// of dropping the edit.
		restored := patch
		restored.Merge(m.overlay)
		if m.noteID == id {
			m.overlay = restored
			m.dirty = true
			m.scheduleLocked()
		}
		m.mu.Unlock()
		m.logger.Warn("flush failed, retry scheduled",
			slog.String("note_id", id), slog.String("error", err.Error()))
		return err
	}
	if m.dirty && m.noteID == id {
		// Re-dirtied during the flush.
		m.scheduleLocked()
	}
	m.mu.Unlock()

	if m.onFlush != nil {
		m.onFlush(id)
	}
	return nil
}

// Forget discards the overlay for id without flushing. Called when the
// note is being deleted.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.noteID != id {
		return
	}
	m.stopTimerLocked()
	m.overlay = models.NotePatch{}
	m.dirty = false
}

// Dirty reports whether an unflushed edit is pending.
func (m *Manager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// Close drains any pending overlay. Called on shutdown.
func (m *Manager) Close(ctx context.Context) error {
	return m.Flush(ctx)
}

func (m *Manager) scheduleLocked() {
	if m.timer != nil {
		return
	}
	m.timer = time.AfterFunc(m.delay, func() {
		m.mu.Lock()
		m.timer = nil
		m.mu.Unlock()
		// Failures are logged inside Flush and retried on the next tick.
		_ = m.Flush(context.Background())
	})
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
