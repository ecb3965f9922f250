package decl

import (
	"fmt"
)

// Slot holds the value of one binding.  Closures over a frame see later
// assignments through it.
type Slot[T any] struct {
	Value T
}

// Env[T] is one frame of a lexical scope chain.  Lookups walk the outer
// frames; the compiler uses Env[*Type] for symbol types and the engine
// Env[Value] for symbol values.
type Env[T any] struct {
	store map[string]*Slot[T]
	outer *Env[T]
}

// NewEnv[T] creates a new environment nested within an outer one.
// If outer is nil then returns a fresh top-level environment.
func NewEnv[T any](outer *Env[T]) *Env[T] {
	return &Env[T]{store: make(map[string]*Slot[T]), outer: outer}
}

// GetSlot returns the slot holding name in the nearest frame that defines it.
func (e *Env[T]) GetSlot(name string) *Slot[T] {
	for env := e; env != nil; env = env.outer {
		if ref, ok := env.store[name]; ok && ref != nil {
			return ref
		}
	}
	return nil
}

func (e *Env[T]) Get(name string) (out T, found bool) {
	ref := e.GetSlot(name)
	if ref != nil {
		out = ref.Value
		found = true
	}
	return
}

// Has reports whether name is bound anywhere in the chain.
func (e *Env[T]) Has(name string) bool {
	return e.GetSlot(name) != nil
}

// HasLocal reports whether name is bound in this frame itself.
func (e *Env[T]) HasLocal(name string) bool {
	_, ok := e.store[name]
	return ok
}

// Set binds key in this frame, replacing any binding it already had here.
func (e *Env[T]) Set(key string, value T) {
	e.store[key] = &Slot[T]{Value: value}
}

// Let introduces a new symbol.  Symbols may not shadow one another so it is an
// error if name is bound in this frame or any outer one.
func (e *Env[T]) Let(name string, value T) error {
	if e.Has(name) {
		return fmt.Errorf("symbol %q is already defined", name)
	}
	e.Set(name, value)
	return nil
}

// Assign updates the nearest existing binding of name.
func (e *Env[T]) Assign(name string, value T) error {
	ref := e.GetSlot(name)
	if ref == nil {
		return fmt.Errorf("symbol %q is not defined", name)
	}
	ref.Value = value
	return nil
}

// Set multiple key/values at once.
func (e *Env[T]) SetMany(kvpairs map[string]T) {
	for k, v := range kvpairs {
		e.Set(k, v)
	}
}

// Push opens a child frame.
func (e *Env[T]) Push() *Env[T] {
	return NewEnv(e)
}

// Outer returns the enclosing frame or nil.
func (e *Env[T]) Outer() *Env[T] {
	return e.outer
}

// Extends our environment by creating a new environment and setting values in it
func (e *Env[T]) Extend(kvpairs map[string]T) *Env[T] {
	out := e.Push()
	out.SetMany(kvpairs)
	return out
}

// String representation for debugging
func (e *Env[T]) String() string {
	return fmt.Sprintf("Env[T]{store: %v, outer: %v}", e.Keys(), e.outer != nil)
}

// Keys returns all keys in this environment (not including outer environments)
func (e *Env[T]) Keys() []string {
	return sortedKeys(e.store)
}

// All returns all key-value pairs in this environment (not including outer environments)
func (e *Env[T]) All() map[string]T {
	result := make(map[string]T)
	for k, ref := range e.store {
		if ref != nil {
			result[k] = ref.Value
		}
	}
	return result
}
