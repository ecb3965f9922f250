package loader

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/panyam/pfa/decl"
)

// LoadResult holds the outcome of a loading operation.
type LoadResult struct {
	Path   string
	Config *EngineConfig // nil when the document could not be read
	Errors []error       // Syntax, schema and semantic errors, in the order found.
}

// Loader reads documents and type checks them against a function catalog.
type Loader struct {
	parser   Parser
	resolver FileResolver
	lib      Signatures
	names    *decl.NameAllocator

	mutex  sync.Mutex
	loaded map[string]*LoadResult
}

// NewLoader creates a new loader.  A nil parser reads JSON or YAML; a nil
// resolver reads the local filesystem.
func NewLoader(parser Parser, resolver FileResolver, lib Signatures) *Loader {
	if parser == nil {
		parser = DocumentParser{}
	}
	if resolver == nil {
		resolver = NewDefaultFileResolver()
	}
	return &Loader{
		parser:   parser,
		resolver: resolver,
		lib:      lib,
		names:    decl.DefaultNames,
		loaded:   make(map[string]*LoadResult),
	}
}

// WithNames sets the allocator used to name anonymous types.
func (l *Loader) WithNames(names *decl.NameAllocator) *Loader {
	l.names = names
	return l
}

// LoadFile reads and checks the document at path.  Results are cached by
// canonical path.  The returned error is the first error found; all of them
// are in the result.
func (l *Loader) LoadFile(path string) (*LoadResult, error) {
	content, canonicalPath, err := l.resolver.Resolve(path)
	if err != nil {
		return &LoadResult{Path: path, Errors: []error{err}}, err
	}
	defer content.Close()

	l.mutex.Lock()
	if res, found := l.loaded[canonicalPath]; found {
		l.mutex.Unlock()
		return res, res.firstError()
	}
	l.mutex.Unlock()

	cfg, err := l.parser.Parse(content, canonicalPath)
	if err != nil {
		res := &LoadResult{Path: canonicalPath, Errors: []error{fmt.Errorf("parsing error in '%s': %w", canonicalPath, err)}}
		return res, res.firstError()
	}
	res := l.Check(cfg)
	res.Path = canonicalPath

	l.mutex.Lock()
	l.loaded[canonicalPath] = res
	l.mutex.Unlock()
	return res, res.firstError()
}

// LoadBytes reads and checks an in-memory document.
func (l *Loader) LoadBytes(src []byte, sourceName string) (*LoadResult, error) {
	cfg, err := l.parser.Parse(bytes.NewReader(src), sourceName)
	if err != nil {
		return &LoadResult{Path: sourceName, Errors: []error{err}}, err
	}
	res := l.Check(cfg)
	res.Path = sourceName
	return res, res.firstError()
}

// Check type checks an already read document.
func (l *Loader) Check(cfg *EngineConfig) *LoadResult {
	inf := NewInference(cfg, l.lib, l.names)
	inf.Eval()
	return &LoadResult{Config: cfg, Errors: inf.Errors}
}

func (r *LoadResult) HasErrors() bool { return len(r.Errors) > 0 }

func (r *LoadResult) firstError() error {
	if len(r.Errors) > 0 {
		return r.Errors[0]
	}
	return nil
}
