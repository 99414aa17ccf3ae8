package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileInfo describes one local file queued for sending.
type FileInfo struct {
	// Path is the absolute path to the file.
	Path string

	// Name is the filename without directory.
	Name string

	// Size is the file size in bytes. Zero-byte files are valid.
	Size int64
}

// ValidateFiles checks that every path exists, is a regular file, and is
// readable. It collects all failures so the user sees every problem at once.
func ValidateFiles(paths []string) ([]FileInfo, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files specified")
	}

	var infos []FileInfo
	var problems []string

	for _, path := range paths {
		info, err := validateSingleFile(path)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		infos = append(infos, info)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("file validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}

	return infos, nil
}

func validateSingleFile(path string) (FileInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: resolve path: %w", path, err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, fmt.Errorf("%s: file does not exist", path)
		}
		return FileInfo{}, fmt.Errorf("%s: stat: %w", path, err)
	}

	if stat.IsDir() {
		return FileInfo{}, fmt.Errorf("%s: is a directory (directories not supported)", path)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: cannot open file (check permissions): %w", path, err)
	}
	f.Close()

	return FileInfo{
		Path: absPath,
		Name: filepath.Base(absPath),
		Size: stat.Size(),
	}, nil
}

// TotalSize sums the sizes of all files.
func TotalSize(infos []FileInfo) int64 {
	var total int64
	for _, f := range infos {
		total += f.Size
	}
	return total
}
