package decl

import (
	"fmt"
	"sort"
	"strings"
)

// --- Interfaces ---

// Node represents any node in the Abstract Syntax Tree.
type Node interface {
	Pos() string    // Dotted path of the node within the document (for error reporting)
	String() string // String representation for debugging/printing
}

// --- Base Struct ---

// NodeInfo embeddable struct for position tracking.  Documents are JSON trees so
// a position is the path of keys and indexes leading to the node, eg
// "action.2.if.then.0".
type NodeInfo struct{ At string }

func (n *NodeInfo) Pos() string    { return n.At }
func (n *NodeInfo) String() string { return "{Node}" }

// TypeDecl is a type written in a document.  The reader only keeps the JSON
// text; the loader resolves all of them together since named types may be
// declared in any order.
type TypeDecl struct {
	NodeInfo
	Original     string
	resolvedType *Type
}

func (t *TypeDecl) ResolvedType() *Type     { return t.resolvedType }
func (t *TypeDecl) SetResolvedType(r *Type) { t.resolvedType = r }
func (t *TypeDecl) String() string {
	if t.resolvedType != nil {
		return t.resolvedType.String()
	}
	return t.Original
}

// Binding is one name = expression pair of a let/set/new/for/step block.
type Binding struct {
	Name string
	Expr Expr

	// Slot is the static type of the symbol or field being assigned, filled
	// in by the type checker.
	Slot *Type
}

// SortBindings orders bindings by name so evaluation order does not depend on
// how a JSON object happened to be decoded.
func SortBindings(b []Binding) []Binding {
	sort.SliceStable(b, func(i, j int) bool { return b[i].Name < b[j].Name })
	return b
}

// --- Top Level declarations ---

// CellDecl declares a single persistent value.
type CellDecl struct {
	NodeInfo
	Name     string
	Type     *TypeDecl
	Init     any // JSON datum
	Shared   bool
	Rollback bool
}

func (c *CellDecl) String() string {
	return fmt.Sprintf("cell %s: %s (shared=%v, rollback=%v)", c.Name, c.Type, c.Shared, c.Rollback)
}

// PoolDecl declares a keyed persistent collection.  Type is the type of one
// entry.
type PoolDecl struct {
	NodeInfo
	Name     string
	Type     *TypeDecl
	Init     map[string]any
	Shared   bool
	Rollback bool
}

func (p *PoolDecl) String() string {
	return fmt.Sprintf("pool %s: %s (shared=%v, rollback=%v)", p.Name, p.Type, p.Shared, p.Rollback)
}

// Methods an engine may implement.
const (
	MethodMap  = "map"
	MethodFold = "fold"
)

// EngineConfig is the top-level node of a document.
type EngineConfig struct {
	NodeInfo
	Name   string
	Method string
	Input  *TypeDecl
	Output *TypeDecl

	Begin  []Expr
	Action []Expr
	End    []Expr

	Fcns  map[string]*FcnDef
	Cells map[string]*CellDecl
	Pools map[string]*PoolDecl

	// Fold only: the JSON datum the tally starts from
	Zero any

	Doc      string
	Version  *int64
	Metadata map[string]string
	Options  map[string]any
}

func (e *EngineConfig) String() string {
	return fmt.Sprintf("engine %s (%s): %s -> %s", e.Name, e.Method, e.Input, e.Output)
}

// TypeDecls lists every type placeholder in the document, in a stable order.
func (e *EngineConfig) TypeDecls() []*TypeDecl {
	var out []*TypeDecl
	add := func(t *TypeDecl) {
		if t != nil {
			out = append(out, t)
		}
	}
	add(e.Input)
	add(e.Output)
	for _, name := range sortedKeys(e.Cells) {
		add(e.Cells[name].Type)
	}
	for _, name := range sortedKeys(e.Pools) {
		add(e.Pools[name].Type)
	}
	for _, name := range sortedKeys(e.Fcns) {
		out = append(out, CollectTypeDecls(e.Fcns[name])...)
	}
	for _, block := range [][]Expr{e.Begin, e.Action, e.End} {
		for _, x := range block {
			out = append(out, CollectTypeDecls(x)...)
		}
	}
	return out
}

// CollectTypeDecls walks an expression tree and returns its type placeholders.
func CollectTypeDecls(root Expr) (out []*TypeDecl) {
	Walk(root, func(x Expr) {
		switch n := x.(type) {
		case *TypedLiteral:
			out = append(out, n.Type)
		case *NewObject:
			out = append(out, n.Type)
		case *NewArray:
			out = append(out, n.Type)
		case *FcnDef:
			for _, p := range n.Params {
				out = append(out, p.Type)
			}
			out = append(out, n.Ret)
		case *CastBlock:
			for _, c := range n.Cases {
				out = append(out, c.Type)
			}
		case *Upcast:
			out = append(out, n.Type)
		}
	})
	return
}

func describeBlock(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, x := range exprs {
		parts[i] = x.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
