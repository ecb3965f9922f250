package loader

import (
	"io"
)

// Parser defines the interface for reading PFA documents.
type Parser interface {
	// Parse reads from the input reader and returns the untyped engine AST.
	// sourceName is used for context in error messages (e.g., file path).
	Parse(input io.Reader, sourceName string) (*EngineConfig, error)
}

// FileResolver defines the interface for locating and reading documents.
type FileResolver interface {
	// Resolve returns the content of the document at path along with its
	// canonical path, used for caching.
	Resolve(path string) (content io.ReadCloser, canonicalPath string, err error)
}
