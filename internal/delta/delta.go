// Package delta extracts plain text from the opaque rich-text documents
// stored in note content (Quill-Delta style: {"ops":[{"insert":"…"}]}).
package delta

import (
	"encoding/json"
	"strings"
)

type document struct {
	Ops []struct {
		Insert any `json:"insert"`
	} `json:"ops"`
}

// PlainText concatenates the string inserts of a Delta document.
// Non-string inserts (embeds) are skipped. A bare JSON string is returned
// as-is; anything unparsable degrades to empty rather than erroring.
func PlainText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err == nil && doc.Ops != nil {
		var b strings.Builder
		for _, op := range doc.Ops {
			if s, ok := op.Insert.(string); ok {
				b.WriteString(s)
			}
		}
		return b.String()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// FromText wraps plain text in a minimal single-insert document.
func FromText(text string) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"ops": []map[string]any{{"insert": text}},
	})
	return raw
}
