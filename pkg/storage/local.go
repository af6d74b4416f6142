package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrFileNotFound is returned when no stored file matches the requested id.
var ErrFileNotFound = errors.New("file not found")

// LocalStorage keeps uploaded files on the local filesystem, sharded into
// year/month/day directories under a base path. File ids are uuids and the
// stored name is id plus the original extension.
type LocalStorage struct {
	basePath string
}

// LocalConfig configures local storage.
type LocalConfig struct {
	Path string // base storage directory
}

// NewLocalStorage creates the base directory if needed and returns a store
// rooted at its absolute path.
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	base, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{basePath: base}, nil
}

// Save stores the content under a fresh uuid and returns its info.
func (s *LocalStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	id := uuid.New().String()
	shard := time.Now().Format("2006/01/02")
	relPath := filepath.Join(shard, id+filepath.Ext(filename))

	if err := os.MkdirAll(filepath.Join(s.basePath, shard), 0755); err != nil {
		return FileInfo{}, fmt.Errorf("create shard directory: %w", err)
	}

	out, err := os.Create(filepath.Join(s.basePath, relPath))
	if err != nil {
		return FileInfo{}, fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	size, err := io.Copy(out, reader)
	if err != nil {
		return FileInfo{}, fmt.Errorf("write file: %w", err)
	}

	return FileInfo{
		ID:       id,
		Name:     filename,
		Size:     size,
		MimeType: getMimeType(filename),
		Path:     relPath,
	}, nil
}

// Get returns the file content. The caller closes the reader.
func (s *LocalStorage) Get(id string) (io.ReadCloser, error) {
	path, err := s.locate(id)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return file, nil
}

// Delete removes the file.
func (s *LocalStorage) Delete(id string) error {
	path, err := s.locate(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// List enumerates all stored files.
func (s *LocalStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		name := d.Name()
		files = append(files, FileInfo{
			ID:       strings.TrimSuffix(name, filepath.Ext(name)),
			Name:     name,
			Size:     info.Size(),
			MimeType: getMimeType(name),
			Path:     relPath,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// Exists reports whether a file with the id is stored.
func (s *LocalStorage) Exists(id string) (bool, error) {
	_, err := s.locate(id)
	if errors.Is(err, ErrFileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// locate walks the shard tree for the file whose basename matches id.
func (s *LocalStorage) locate(id string) (string, error) {
	var found string

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name := d.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) == id {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search for file %s: %w", id, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	return found, nil
}

// getMimeType maps a file extension to a MIME type.
func getMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	default:
		return "application/octet-stream"
	}
}
