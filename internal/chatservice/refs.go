package chatservice

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// TextReference tags a user-highlighted note excerpt attached to a chat
// turn. References are session-scoped and never persisted.
type TextReference struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Label string `json:"label"`
}

// RefSet assigns reference labels for the current UI session, reusing the
// lowest freed id first so labels stay small and stable.
type RefSet struct {
	mu   sync.Mutex
	refs map[int]TextReference
}

// NewRefSet creates an empty reference set.
func NewRefSet() *RefSet {
	return &RefSet{refs: make(map[int]TextReference)}
}

// Add registers an excerpt and returns it with the lowest available id.
func (r *RefSet) Add(text string) TextReference {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := 1
	for {
		if _, taken := r.refs[id]; !taken {
			break
		}
		id++
	}
	ref := TextReference{ID: id, Text: text, Label: fmt.Sprintf("ref%d", id)}
	r.refs[id] = ref
	return ref
}

// Remove frees an id for reuse. Removing an unknown id is a no-op.
func (r *RefSet) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.refs, id)
}

// List returns the current references ordered by id.
func (r *RefSet) List() []TextReference {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TextReference, 0, len(r.refs))
	for _, ref := range r.refs {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Preamble renders the reference context block prepended to a chat turn,
// or empty when there are no references.
func Preamble(refs []TextReference) string {
	if len(refs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Following are highlighted excerpts from the note that the user is referring to. ")
	b.WriteString("When references are present, use them to answer the user's question instead of the whole note.\n")
	for _, ref := range refs {
		fmt.Fprintf(&b, "\nref%d:\n%s\n", ref.ID, ref.Text)
	}
	return b.String()
}
