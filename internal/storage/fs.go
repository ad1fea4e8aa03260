package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/quill/internal/checksum"
)

// FS implements Provider backed by a flat directory of JSON files.
type FS struct {
	root string // absolute path to the document directory
}

// NewFS creates a new FS provider rooted at the given directory,
// creating it if necessary.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute directory this provider operates on.
func (f *FS) Root() string { return f.root }

// docPath maps an id to its file path, rejecting ids that would escape
// the root directory (separators, traversal, hidden prefixes).
func (f *FS) docPath(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("storage: empty id")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("storage: invalid id: %s", id)
	}
	return filepath.Join(f.root, id+".json"), nil
}

// List returns metadata for every .json document in the directory.
func (f *FS) List() ([]DocInfo, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []DocInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.root, name))
		if err != nil {
			continue
		}
		out = append(out, DocInfo{
			ID:        strings.TrimSuffix(name, ".json"),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	return out, nil
}

// Read returns the raw bytes of a document.
func (f *FS) Read(id string) ([]byte, error) {
	path, err := f.docPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", id, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename. A reader
// never observes a partially written document.
func (f *FS) Write(id string, content []byte) error {
	path, err := f.docPath(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".quill-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a document.
func (f *FS) Delete(id string) error {
	path, err := f.docPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	return nil
}

// Exists reports whether a document is present.
func (f *FS) Exists(id string) bool {
	path, err := f.docPath(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
