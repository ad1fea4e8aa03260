package index

import (
	"encoding/json"
	"log/slog"

	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/delta"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

// Sync walks the note directory and brings the index up to date:
//   - new/changed documents are parsed and upserted
//   - documents removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	infos, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		disk[info.ID] = struct{}{}

		if checksums[info.ID] == info.Checksum {
			continue
		}

		data, err := store.Read(info.ID)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("id", info.ID), slog.String("error", err.Error()))
			continue
		}
		if err := indexDoc(db, info.ID, data); err != nil {
			logger.Warn("sync: index failed", slog.String("id", info.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("id", info.ID))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteNote(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("id", id))
			}
		}
	}

	return nil
}

// indexDoc parses a raw note document and upserts it into the DB. The
// searchable body is the plain text extracted from the rich content.
func indexDoc(db *DB, id string, data []byte) error {
	var note models.Note
	if err := json.Unmarshal(data, &note); err != nil {
		return err
	}
	title := note.Title
	if title == "" {
		title = models.DefaultTitle
	}

	row := NoteRow{
		ID:        id,
		Title:     title,
		Checksum:  checksum.Sum(data),
		UpdatedAt: note.UpdatedAt,
	}
	return db.UpsertNote(row, delta.PlainText(note.Content))
}
