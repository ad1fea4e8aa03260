// Package storage defines the JSON-document file-system abstraction.
// Each document lives in a flat directory as <id>.json.
package storage

import "time"

// DocInfo is lightweight metadata returned by list operations.
type DocInfo struct {
	ID        string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for document file operations.
type Provider interface {
	// List returns metadata for every .json document in the directory.
	List() ([]DocInfo, error)
	// Read returns the raw bytes of the document with the given id.
	Read(id string) ([]byte, error)
	// Write atomically persists content under the given id.
	Write(id string, content []byte) error
	// Delete removes the document with the given id.
	Delete(id string) error
	// Exists reports whether a document with the given id is present.
	Exists(id string) bool
}
