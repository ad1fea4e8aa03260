// Package models defines the domain types for Quill.
package models

import (
	"encoding/json"
	"time"
)

// DefaultTitle is used when a caller supplies no usable title.
const DefaultTitle = "Untitled Note"

// Note is a single rich-text note. Content is an opaque editor document
// (an ordered sequence of insert/format operations); the server never
// interprets it beyond plain-text extraction for search and AI prompts.
type Note struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NotePatch is a sparse update layered over an existing note. A nil field
// leaves the stored value untouched; a set field wins. The precedence is
// an explicit contract here rather than an artifact of map-merge order.
type NotePatch struct {
	Title   *string         `json:"title,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// IsZero reports whether the patch carries no fields.
func (p NotePatch) IsZero() bool {
	return p.Title == nil && p.Content == nil
}

// Merge overlays next onto p: fields set in next win.
func (p *NotePatch) Merge(next NotePatch) {
	if next.Title != nil {
		p.Title = next.Title
	}
	if next.Content != nil {
		p.Content = next.Content
	}
}

// ApplyTo writes the set fields of p onto n. An empty-string title keeps
// the existing one (the editor sends empty when the field is untouched).
func (p NotePatch) ApplyTo(n *Note) {
	if p.Title != nil && *p.Title != "" {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = p.Content
	}
}
