// Package artifact stores produced audio on the local filesystem and maps it
// to the URLs served by the HTTP layer.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ErrNotFound is returned when an artifact file is missing.
var ErrNotFound = errors.New("artifact not found")

// Ref points at a stored artifact.
type Ref struct {
	// Path is the local filesystem location.
	Path string
	// URL is the client-facing retrieval path, e.g. /audio/<id>.wav.
	URL string
	// ContentType is the MIME type for serving the bytes.
	ContentType string
}

// Store writes audio artifacts under a single directory. Each job writes its
// own artifact exactly once; deletion is idempotent so the deferred timer and
// the staleness sweep can race without harm.
type Store struct {
	dir string
}

// NewStore creates the artifact directory if needed and returns a store.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("artifact directory not configured")
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the artifact directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists audio bytes for a job and returns its reference.
func (s *Store) Save(jobID string, data []byte, format string) (Ref, error) {
	if len(data) == 0 {
		return Ref{}, errors.New("empty artifact data")
	}

	ext := format
	if ext == "" {
		ext = "wav"
	}
	name := jobID + "." + ext
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, filePermissions); err != nil {
		return Ref{}, fmt.Errorf("failed to write artifact: %w", err)
	}

	return Ref{
		Path:        path,
		URL:         "/audio/" + name,
		ContentType: ContentTypeFor(path),
	}, nil
}

// ContentTypeFor maps a stored artifact path to its MIME type by extension.
// Engines emit wav by default; the remote provider may return mp3.
func ContentTypeFor(path string) string {
	if filepath.Ext(path) == ".mp3" {
		return "audio/mpeg"
	}
	return "audio/wav"
}

// Open returns a reader over a stored artifact.
func (s *Store) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	return f, nil
}

// Delete removes an artifact file. A missing file is a no-op: deletion runs
// from both the per-job timer and the sweep, whichever fires first wins.
func (s *Store) Delete(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}
