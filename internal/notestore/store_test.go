package notestore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	files, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return New(files, nil)
}

func strptr(s string) *string { return &s }

func TestCreateDefaults(t *testing.T) {
	s := tempStore(t)
	n, err := s.Create(context.Background(), models.NotePatch{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.ID == "" {
		t.Error("empty id")
	}
	if n.Title != models.DefaultTitle {
		t.Errorf("title = %q, want %q", n.Title, models.DefaultTitle)
	}
	if n.CreatedAt.IsZero() || !n.CreatedAt.Equal(n.UpdatedAt) {
		t.Errorf("createdAt %v must equal updatedAt %v", n.CreatedAt, n.UpdatedAt)
	}
}

func TestCreateUniqueIDs(t *testing.T) {
	s := tempStore(t)
	seen := map[string]bool{}
	for range 20 {
		n, err := s.Create(context.Background(), models.NotePatch{Title: strptr("x")})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[n.ID] {
			t.Fatalf("duplicate id %s", n.ID)
		}
		seen[n.ID] = true
	}
}

func TestRoundTrip(t *testing.T) {
	s := tempStore(t)
	doc := json.RawMessage(`{"ops":[{"insert":"hello"}]}`)
	created, err := s.Create(context.Background(), models.NotePatch{Title: strptr("A"), Content: doc})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "A" || string(got.Content) != string(doc) {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("createdAt changed: %v != %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestUpdateMergesNotReplaces(t *testing.T) {
	s := tempStore(t)
	doc := json.RawMessage(`{"ops":[{"insert":"body"}]}`)
	n, _ := s.Create(context.Background(), models.NotePatch{Title: strptr("A"), Content: doc})

	updated, err := s.Update(context.Background(), n.ID, models.NotePatch{Title: strptr("B")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "B" {
		t.Errorf("title = %q", updated.Title)
	}
	if string(updated.Content) != string(doc) {
		t.Errorf("content dropped by title-only update: %s", updated.Content)
	}
	if !updated.UpdatedAt.After(n.UpdatedAt) {
		t.Errorf("updatedAt did not advance: %v <= %v", updated.UpdatedAt, n.UpdatedAt)
	}
}

func TestUpdateContentThenGet(t *testing.T) {
	s := tempStore(t)
	n, _ := s.Create(context.Background(), models.NotePatch{Title: strptr("A")})
	doc := json.RawMessage(`{"ops":[{"insert":"doc1"}]}`)

	u1, err := s.Update(context.Background(), n.ID, models.NotePatch{Content: doc})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := s.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "A" || string(got.Content) != string(doc) {
		t.Errorf("got %+v", got)
	}
	if !u1.UpdatedAt.After(n.UpdatedAt) {
		t.Error("second updatedAt must be later than the first")
	}
}

func TestEmptyTitlePatchKeepsExisting(t *testing.T) {
	s := tempStore(t)
	n, _ := s.Create(context.Background(), models.NotePatch{Title: strptr("Keep")})
	updated, err := s.Update(context.Background(), n.ID, models.NotePatch{Title: strptr("")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Keep" {
		t.Errorf("title = %q, want Keep", updated.Title)
	}
}

func TestGetNotFound(t *testing.T) {
	s := tempStore(t)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListSortedByUpdatedAtDesc(t *testing.T) {
	s := tempStore(t)
	a, _ := s.Create(context.Background(), models.NotePatch{Title: strptr("old")})
	b, _ := s.Create(context.Background(), models.NotePatch{Title: strptr("new")})
	if _, err := s.Update(context.Background(), b.ID, models.NotePatch{Title: strptr("newer")}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	notes, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("len = %d", len(notes))
	}
	if notes[0].ID != b.ID || notes[1].ID != a.ID {
		t.Errorf("order = [%s %s], want [%s %s]", notes[0].ID, notes[1].ID, b.ID, a.ID)
	}
}

func TestListSkipsCorruptDocuments(t *testing.T) {
	files, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := New(files, nil)
	_, _ = s.Create(context.Background(), models.NotePatch{Title: strptr("good")})
	_ = files.Write("broken", []byte("not json at all"))

	notes, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(notes) != 1 {
		t.Errorf("len = %d, want 1 (corrupt doc skipped)", len(notes))
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	n, _ := s.Create(context.Background(), models.NotePatch{})
	if err := s.Delete(context.Background(), n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(context.Background(), n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(context.Background(), n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestTouchAdvancesUpdatedAt(t *testing.T) {
	s := tempStore(t)
	n, _ := s.Create(context.Background(), models.NotePatch{})
	if err := s.Touch(context.Background(), n.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	got, _ := s.Get(context.Background(), n.ID)
	if !got.UpdatedAt.After(n.UpdatedAt) {
		t.Errorf("updatedAt did not advance")
	}
}
