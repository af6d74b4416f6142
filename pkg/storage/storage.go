// Package storage abstracts raw document file storage behind a small
// interface with local filesystem and MinIO implementations.
package storage

import (
	"io"
)

// FileInfo describes a stored file.
type FileInfo struct {
	ID       string // unique file identifier
	Name     string // original file name
	Size     int64  // size in bytes
	MimeType string // MIME type, best effort
	Path     string // implementation specific storage path
}

// Storage stores and retrieves uploaded document files.
type Storage interface {
	// Save stores the file content and returns its info.
	Save(reader io.Reader, filename string) (FileInfo, error)

	// Get returns the file content.
	Get(id string) (io.ReadCloser, error)

	// Delete removes the file.
	Delete(id string) error

	// List enumerates all stored files.
	List() ([]FileInfo, error)

	// Exists reports whether the file is stored.
	Exists(id string) (bool, error)
}

// Factory builds a storage backend from its configuration.
type Factory func(cfg interface{}) (Storage, error)
