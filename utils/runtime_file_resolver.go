package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RuntimeFileResolver finds dataset files under a list of data directories.
// Names must be relative and may not climb out of a data directory.
type RuntimeFileResolver struct {
	DataDirs []string
}

// NewRuntimeFileResolver takes a colon separated search path.
func NewRuntimeFileResolver(searchPath string) *RuntimeFileResolver {
	resolver := &RuntimeFileResolver{}
	for _, dataDir := range strings.Split(searchPath, ":") {
		dataDir = strings.TrimSpace(dataDir)
		if len(dataDir) == 0 {
			continue
		}
		resolver.DataDirs = append(resolver.DataDirs, dataDir)
	}
	return resolver
}

// Resolve returns the first existing match for name in the search path.
func (r *RuntimeFileResolver) Resolve(name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: input %q must be relative to the data directory", ErrBadParam, name)
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: input %q must be relative to the data directory", ErrBadParam, name)
		}
	}

	for _, dataDir := range r.DataDirs {
		path := filepath.Join(dataDir, filepath.Clean(name))
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
}
