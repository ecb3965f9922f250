package loader

import (
	"fmt"

	"github.com/panyam/pfa/decl"
)

// TypeScope tracks the static types of symbols during inference.  A sealed
// scope may declare and modify its own symbols but may not modify symbols
// declared outside it.
type TypeScope struct {
	env    *Env[*Type]
	outer  *TypeScope
	sealed bool
}

// NewRootTypeScope creates a top-level scope pre-populated with symbols.
func NewRootTypeScope(symbols map[string]*Type) *TypeScope {
	env := decl.NewEnv[*Type](nil)
	env.SetMany(symbols)
	return &TypeScope{env: env, sealed: true}
}

// Push opens a nested lexical scope.
func (ts *TypeScope) Push() *TypeScope {
	return &TypeScope{env: ts.env.Push(), outer: ts}
}

// PushSealed opens a nested scope whose body may only modify its own symbols.
func (ts *TypeScope) PushSealed() *TypeScope {
	return &TypeScope{env: ts.env.Push(), outer: ts, sealed: true}
}

func (ts *TypeScope) Get(name string) (*Type, bool) {
	return ts.env.Get(name)
}

// Let declares a new symbol; shadowing anything visible is an error.
func (ts *TypeScope) Let(name string, t *Type) error {
	return ts.env.Let(name, t)
}

// Settable returns the type of a symbol that a "set" in this scope may
// modify.
func (ts *TypeScope) Settable(name string) (*Type, error) {
	for s := ts; s != nil; s = s.outer {
		if s.env.HasLocal(name) {
			t, _ := s.env.Get(name)
			return t, nil
		}
		if s.sealed {
			if ts.env.Has(name) {
				return nil, fmt.Errorf("symbol %q is declared outside a sealed scope and cannot be modified here", name)
			}
			break
		}
	}
	return nil, fmt.Errorf("symbol %q is not defined", name)
}
