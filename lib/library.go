// Package lib is the catalog of built-in functions: each name maps to an
// overload set used by the type checker and an implementation used by the
// engine once a call site is resolved.
package lib

import (
	"fmt"
	"slices"
	"sync"

	"github.com/panyam/pfa/decl"
)

// Call describes one resolved call site.
type Call struct {
	Name       string
	Overload   int // index of the signature that matched
	ParamTypes []*decl.Type
	RetType    *decl.Type
}

// Impl evaluates a function on arguments already coerced to ParamTypes.
type Impl func(call *Call, args []decl.Value) decl.Value

// LazyImpl receives its arguments unevaluated, for functions that short
// circuit.
type LazyImpl func(call *Call, args []func() decl.Value) decl.Value

// LibFcn is one built-in function.  Exactly one of Impl and Lazy is set.
type LibFcn struct {
	Name string
	Sigs decl.Sigs
	Impl Impl
	Lazy LazyImpl
	Doc  string
}

// NewCall builds the Call for a resolution of this function.
func (f *LibFcn) NewCall(res *decl.Resolution) *Call {
	return &Call{
		Name:       f.Name,
		Overload:   slices.Index(f.Sigs, res.Signature),
		ParamTypes: res.ParamTypes,
		RetType:    res.RetType,
	}
}

// Library is a registry of functions keyed by name.
type Library struct {
	mu    sync.RWMutex
	fcns  map[string]*LibFcn
	names []string
}

func NewLibrary() *Library {
	return &Library{fcns: map[string]*LibFcn{}}
}

// Register adds functions, replacing any already registered under the same
// name.
func (l *Library) Register(fcns ...*LibFcn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range fcns {
		if len(f.Sigs) == 0 || (f.Impl == nil) == (f.Lazy == nil) {
			return fmt.Errorf("function %q needs signatures and exactly one implementation", f.Name)
		}
		if _, exists := l.fcns[f.Name]; !exists {
			l.names = append(l.names, f.Name)
		}
		l.fcns[f.Name] = f
	}
	return nil
}

func (l *Library) Lookup(name string) (*LibFcn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.fcns[name]
	return f, ok
}

// Signatures implements loader.Signatures.
func (l *Library) Signatures(name string) (decl.Sigs, bool) {
	f, ok := l.Lookup(name)
	if !ok {
		return nil, false
	}
	return f.Sigs, true
}

// Names lists the registered functions in registration order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.names)
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
)

// Default returns the shared library holding every built-in function.
func Default() *Library {
	defaultOnce.Do(func() {
		defaultLib = NewLibrary()
		for _, group := range [][]*LibFcn{coreFcns(), stringFcns(), arrayFcns(), mapFcns(), mathFcns(), imputeFcns()} {
			if err := defaultLib.Register(group...); err != nil {
				panic(err)
			}
		}
	})
	return defaultLib
}

// shorthands for signatures
func p(name string, pat *decl.Pattern) decl.Param { return decl.Param{Name: name, Pattern: pat} }

func wild(label string, oneOf ...*decl.Type) *decl.Pattern { return decl.PWildcard(label, oneOf...) }

func num(label string) *decl.Pattern { return decl.PWildcard(label, decl.AnyNumber...) }
