package synth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoModel is returned when a voices directory holds no usable model.
var ErrNoModel = errors.New("no voice models found")

// DiscoverModel scans a voices directory for piper ONNX models and returns
// the path of the first one, in lexical order. Used when no explicit model
// path is configured.
func DiscoverModel(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read voices directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".onnx") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("%w in %s", ErrNoModel, dir)
}
