package chatstore

import (
	"encoding/json"
	"log/slog"

	"github.com/starford/quill/internal/storage"
)

// Migrate splits legacy embedded chat history out of note documents into
// the chats directory. Older versions stored a chatHistory array inside
// each note file; this runs once at startup and is safe to re-run.
func Migrate(notes, chats storage.Provider, logger *slog.Logger) error {
	infos, err := notes.List()
	if err != nil {
		return err
	}
	for _, info := range infos {
		data, err := notes.Read(info.ID)
		if err != nil {
			logger.Warn("migrate: read failed",
				slog.String("id", info.ID), slog.String("error", err.Error()))
			continue
		}

		var doc map[string]json.RawMessage
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		history, ok := doc["chatHistory"]
		if !ok {
			continue
		}

		// Move a non-empty history into its own document, unless one
		// already exists (an interrupted earlier migration wins).
		var msgs []json.RawMessage
		if err := json.Unmarshal(history, &msgs); err == nil && len(msgs) > 0 && !chats.Exists(info.ID) {
			if err := chats.Write(info.ID, history); err != nil {
				logger.Warn("migrate: write chat log failed",
					slog.String("id", info.ID), slog.String("error", err.Error()))
				continue
			}
		}

		delete(doc, "chatHistory")
		stripped, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			continue
		}
		if err := notes.Write(info.ID, stripped); err != nil {
			logger.Warn("migrate: rewrite note failed",
				slog.String("id", info.ID), slog.String("error", err.Error()))
			continue
		}
		logger.Info("migrated embedded chat history", slog.String("id", info.ID))
	}
	return nil
}
