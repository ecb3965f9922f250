package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultFileResolver implements FileResolver for the local filesystem.
type DefaultFileResolver struct {
	// BaseDir anchors relative paths; empty means the working directory.
	BaseDir string
}

// NewDefaultFileResolver creates a standard filesystem resolver.
func NewDefaultFileResolver() *DefaultFileResolver {
	return &DefaultFileResolver{}
}

// Resolve handles filesystem paths.
func (r *DefaultFileResolver) Resolve(path string) (io.ReadCloser, string, error) {
	resolvedPath := path
	if !filepath.IsAbs(path) && r.BaseDir != "" {
		resolvedPath = filepath.Join(r.BaseDir, path)
	}

	// Get the absolute path to use as the canonical path
	canonicalPath, err := filepath.Abs(resolvedPath)
	if err != nil {
		return nil, "", fmt.Errorf("could not get absolute path for '%s': %w", resolvedPath, err)
	}

	file, err := os.Open(canonicalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("file not found: %s", canonicalPath)
		}
		return nil, "", fmt.Errorf("could not open file '%s': %w", canonicalPath, err)
	}
	return file, canonicalPath, nil
}

// MemoryResolver serves documents from memory, keyed by path.  Tests and
// embedding hosts use it in place of the filesystem.
type MemoryResolver struct {
	Files map[string][]byte
}

func NewMemoryResolver(files map[string][]byte) *MemoryResolver {
	if files == nil {
		files = map[string][]byte{}
	}
	return &MemoryResolver{Files: files}
}

func (m *MemoryResolver) Resolve(path string) (io.ReadCloser, string, error) {
	content, ok := m.Files[path]
	if !ok {
		return nil, "", fmt.Errorf("file not found: %s", path)
	}
	return io.NopCloser(bytes.NewReader(content)), path, nil
}
