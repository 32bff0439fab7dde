package artifact

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreSaveAndOpen(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ref, err := store.Save("job-1", []byte("RIFF audio"), "wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ref.URL != "/audio/job-1.wav" {
		t.Errorf("unexpected URL: %s", ref.URL)
	}
	if ref.ContentType != "audio/wav" {
		t.Errorf("unexpected content type: %s", ref.ContentType)
	}

	r, err := store.Open(ref.Path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "RIFF audio" {
		t.Errorf("unexpected data: %q", data)
	}
}

func TestStoreSaveEmptyData(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.Save("job-1", nil, "wav"); err == nil {
		t.Error("expected error for empty data")
	}
}

func TestStoreSaveMP3ContentType(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ref, err := store.Save("job-1", []byte("mp3 bytes"), "mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ContentType != "audio/mpeg" {
		t.Errorf("unexpected content type: %s", ref.ContentType)
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/audio/job-1.wav", "audio/wav"},
		{"/audio/job-1.mp3", "audio/mpeg"},
		{"/audio/job-1", "audio/wav"},
	}

	for _, tt := range tests {
		if got := ContentTypeFor(tt.path); got != tt.want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestStoreDeleteIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ref, err := store.Save("job-1", []byte("RIFF audio"), "wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Delete(ref.Path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Second delete of the same path must be a no-op.
	if err := store.Delete(ref.Path); err != nil {
		t.Errorf("second delete returned error: %v", err)
	}
	// Empty path is also a no-op.
	if err := store.Delete(""); err != nil {
		t.Errorf("empty path delete returned error: %v", err)
	}

	if _, err := os.Stat(ref.Path); !os.IsNotExist(err) {
		t.Error("artifact still exists after delete")
	}
}

func TestStoreOpenMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = store.Open(filepath.Join(store.Dir(), "missing.wav"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNewStoreCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "audio")

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(store.Dir())
	if err != nil || !info.IsDir() {
		t.Errorf("expected directory to exist: %v", err)
	}
}

func TestNewStoreEmptyDir(t *testing.T) {
	if _, err := NewStore(""); err == nil {
		t.Error("expected error for empty directory")
	}
}
