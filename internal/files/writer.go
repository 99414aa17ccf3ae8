package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UniqueFilename returns a path in dir that does not collide with an
// existing file, appending " (1)", " (2)", ... before the extension the way
// browsers name duplicate downloads.
func UniqueFilename(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// WriteReceived persists an assembled incoming file to dir without
// clobbering anything already there. Returns the path actually written.
func WriteReceived(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := UniqueFilename(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
