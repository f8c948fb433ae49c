package receipt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions are the file suffixes processed when none are configured
var DefaultExtensions = []string{".jpg"}

var (
	// ErrDirectoryNotFound is returned when the input directory is missing
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrEmptyBatch is matched by every error meaning nothing was recorded
	ErrEmptyBatch = errors.New("empty batch")

	// ErrNoInputFiles is returned when no file in the directory matches
	ErrNoInputFiles = fmt.Errorf("%w: no matching image files", ErrEmptyBatch)

	// ErrNoRecords is returned when files were found but none could be extracted
	ErrNoRecords = fmt.Errorf("%w: no receipts could be extracted", ErrEmptyBatch)
)

// ListImages returns the files in dir ending in one of exts, in directory
// listing order. Suffix matching is case-sensitive.
func ListImages(dir string, exts []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, fmt.Errorf("accessing directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}

	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !hasExtension(entry.Name(), exts) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s (extensions: %s)", ErrNoInputFiles, dir, strings.Join(exts, ", "))
	}
	return paths, nil
}

func hasExtension(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
