package decl

import (
	"fmt"
	"strings"

	gfn "github.com/panyam/goutils/fn"
)

// Expr represents an expression node.  Every construct in an action is an
// expression and evaluates to a value.
type Expr interface {
	Node
	exprNode() // Marker method for expressions
	InferredType() *Type
	SetInferredType(*Type)
}

type ExprBase struct {
	NodeInfo
	inferredType *Type
}

func (e *ExprBase) SetInferredType(t *Type) {
	e.inferredType = t
}

func (e *ExprBase) InferredType() *Type {
	return e.inferredType
}

func (me *ExprBase) exprNode() {}

// --- Literals ---

// Literal is a primitive constant.  Value holds the Go representation for Tag
// (nil, bool, int64, float64, string or []byte).
type Literal struct {
	ExprBase
	Tag   TypeTag
	Value any
}

func (l *Literal) String() string {
	if l.Tag == TypeTagBytes {
		return fmt.Sprintf("base64(%d bytes)", len(l.Value.([]byte)))
	}
	return fmt.Sprintf("%v", Value{PrimitiveType(l.Tag), l.Value})
}

// TypedLiteral is a JSON datum interpreted with an explicit type.
type TypedLiteral struct {
	ExprBase
	Type  *TypeDecl
	Datum any
}

func (l *TypedLiteral) String() string { return fmt.Sprintf("(%v as %s)", l.Datum, l.Type) }

// NewObject builds a record or a map depending on Type.
type NewObject struct {
	ExprBase
	Type   *TypeDecl
	Fields []Binding
}

func (n *NewObject) String() string {
	return fmt.Sprintf("new %s {%s}", n.Type, describeBindings(n.Fields))
}

type NewArray struct {
	ExprBase
	Type  *TypeDecl
	Items []Expr
}

func (n *NewArray) String() string { return fmt.Sprintf("new %s %s", n.Type, describeBlock(n.Items)) }

// --- Symbols ---

// Ref reads a symbol from the enclosing scopes.
type Ref struct {
	ExprBase
	Name string
}

func (r *Ref) String() string { return r.Name }

type Do struct {
	ExprBase
	Body []Expr
}

func (d *Do) String() string { return "do " + describeBlock(d.Body) }

// Let declares new symbols in the current scope.
type Let struct {
	ExprBase
	Bindings []Binding
}

func (l *Let) String() string { return fmt.Sprintf("let {%s}", describeBindings(l.Bindings)) }

// Set reassigns existing symbols.
type Set struct {
	ExprBase
	Bindings []Binding
}

func (s *Set) String() string { return fmt.Sprintf("set {%s}", describeBindings(s.Bindings)) }

// --- Functions ---

// Call invokes a library function or a user function ("u.name").
type Call struct {
	ExprBase
	Name string
	Args []Expr

	resolution *Resolution
}

func (c *Call) Resolution() *Resolution     { return c.resolution }
func (c *Call) SetResolution(r *Resolution) { c.resolution = r }
func (c *Call) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(gfn.Map(c.Args, Expr.String), ", "))
}

// FcnRef names a function to pass as a callback.
type FcnRef struct {
	ExprBase
	Name string

	resolution *Resolution // set when Name is an overloaded library function
}

func (f *FcnRef) Resolution() *Resolution     { return f.resolution }
func (f *FcnRef) SetResolution(r *Resolution) { f.resolution = r }
func (f *FcnRef) String() string              { return "fcnref " + f.Name }

type FcnParam struct {
	Name string
	Type *TypeDecl
}

// FcnDef is a function literal, or the body of a user function.
type FcnDef struct {
	ExprBase
	Params []FcnParam
	Ret    *TypeDecl
	Body   []Expr
}

func (f *FcnDef) String() string {
	params := gfn.Map(f.Params, func(p FcnParam) string { return p.Name + ": " + p.Type.String() })
	return fmt.Sprintf("fcn(%s) -> %s", strings.Join(params, ", "), f.Ret)
}

// FcnType is the function type of a definition once its TypeDecls are resolved.
func (f *FcnDef) FcnType() *Type {
	return FunctionType(gfn.Map(f.Params, func(p FcnParam) *Type { return p.Type.ResolvedType() }), f.Ret.ResolvedType())
}

// --- Paths and storage ---

// PathStep is one index into a nested value.  Container is the type being
// indexed, filled in by the type checker.
type PathStep struct {
	Index     Expr
	Container *Type
}

// Attr reads (To == nil) or returns an updated copy of (To != nil) a nested
// part of a value.
type Attr struct {
	ExprBase
	Expr Expr
	Path []*PathStep
	To   Expr
}

func (a *Attr) String() string { return fmt.Sprintf("attr %s%s", a.Expr, describeAccess(a.Path, a.To)) }

// CellAccess reads or updates a cell.
type CellAccess struct {
	ExprBase
	Cell string
	Path []*PathStep
	To   Expr
}

func (c *CellAccess) String() string {
	return fmt.Sprintf("cell %s%s", c.Cell, describeAccess(c.Path, c.To))
}

// PoolAccess reads or updates a pool entry.  The first path step is the key.
// Init supplies the entry for a key being updated for the first time.
type PoolAccess struct {
	ExprBase
	Pool string
	Path []*PathStep
	To   Expr
	Init Expr
}

func (p *PoolAccess) String() string {
	return fmt.Sprintf("pool %s%s", p.Pool, describeAccess(p.Path, p.To))
}

// --- Control flow ---

type If struct {
	ExprBase
	Cond Expr
	Then []Expr
	Else []Expr // nil when absent
}

func (i *If) String() string {
	out := fmt.Sprintf("if %s then %s", i.Cond, describeBlock(i.Then))
	if i.Else != nil {
		out += " else " + describeBlock(i.Else)
	}
	return out
}

type Cond struct {
	ExprBase
	Ifs  []*If
	Else []Expr // nil when absent
}

func (c *Cond) String() string {
	parts := gfn.Map(c.Ifs, (*If).String)
	if c.Else != nil {
		parts = append(parts, "else "+describeBlock(c.Else))
	}
	return "cond {" + strings.Join(parts, "; ") + "}"
}

type While struct {
	ExprBase
	Cond Expr
	Body []Expr
}

func (w *While) String() string { return fmt.Sprintf("while %s %s", w.Cond, describeBlock(w.Body)) }

// DoUntil runs Body at least once, stopping when Cond becomes true.
type DoUntil struct {
	ExprBase
	Body []Expr
	Cond Expr
}

func (d *DoUntil) String() string { return fmt.Sprintf("do %s until %s", describeBlock(d.Body), d.Cond) }

// For runs Init once, then loops over Cond, Body and Step.  With Until set the
// loop stops when Cond becomes true instead of when it becomes false.
type For struct {
	ExprBase
	Init  []Binding
	Cond  Expr
	Until bool
	Step  []Binding
	Body  []Expr
}

func (f *For) String() string {
	return fmt.Sprintf("for {%s} while %s step {%s} %s", describeBindings(f.Init), f.Cond,
		describeBindings(f.Step), describeBlock(f.Body))
}

// Foreach binds Name to each element of Array.  Unless Seq is set the body may
// not reassign symbols declared outside the loop.
type Foreach struct {
	ExprBase
	Name  string
	Array Expr
	Body  []Expr
	Seq   bool
}

func (f *Foreach) String() string {
	return fmt.Sprintf("foreach %s in %s %s", f.Name, f.Array, describeBlock(f.Body))
}

// Forkeyval binds Key and Val to each entry of Map.
type Forkeyval struct {
	ExprBase
	Key  string
	Val  string
	Map  Expr
	Body []Expr
}

func (f *Forkeyval) String() string {
	return fmt.Sprintf("forkey %s forval %s in %s %s", f.Key, f.Val, f.Map, describeBlock(f.Body))
}

type CastCase struct {
	Type *TypeDecl
	Name string
	Body []Expr
}

// CastBlock narrows a union value to the first case whose type matches.
type CastBlock struct {
	ExprBase
	Expr    Expr
	Cases   []*CastCase
	Partial bool
}

func (c *CastBlock) String() string {
	cases := gfn.Map(c.Cases, func(cc *CastCase) string { return fmt.Sprintf("as %s %s", cc.Type, cc.Name) })
	return fmt.Sprintf("cast %s {%s}", c.Expr, strings.Join(cases, "; "))
}

// Upcast widens the static type of an expression.
type Upcast struct {
	ExprBase
	Expr Expr
	Type *TypeDecl
}

func (u *Upcast) String() string { return fmt.Sprintf("upcast %s as %s", u.Expr, u.Type) }

// Doc is a comment that evaluates to null.
type Doc struct {
	ExprBase
	Text string
}

func (d *Doc) String() string { return fmt.Sprintf("doc %q", d.Text) }

// Error raises a user failure.
type Error struct {
	ExprBase
	Message string
	Code    *int64
}

func (e *Error) String() string { return fmt.Sprintf("error %q", e.Message) }

// Log writes values to the engine's log sink.
type Log struct {
	ExprBase
	Exprs     []Expr
	Namespace string
}

func (l *Log) String() string { return "log " + describeBlock(l.Exprs) }

// --- Traversal ---

// Children returns the direct sub-expressions of a node.
func Children(x Expr) []Expr {
	var out []Expr
	bindings := func(bs []Binding) {
		for _, b := range bs {
			out = append(out, b.Expr)
		}
	}
	path := func(steps []*PathStep) {
		for _, s := range steps {
			out = append(out, s.Index)
		}
	}
	switch n := x.(type) {
	case *NewObject:
		bindings(n.Fields)
	case *NewArray:
		out = append(out, n.Items...)
	case *Do:
		out = append(out, n.Body...)
	case *Let:
		bindings(n.Bindings)
	case *Set:
		bindings(n.Bindings)
	case *Call:
		out = append(out, n.Args...)
	case *FcnDef:
		out = append(out, n.Body...)
	case *Attr:
		out = append(out, n.Expr)
		path(n.Path)
		if n.To != nil {
			out = append(out, n.To)
		}
	case *CellAccess:
		path(n.Path)
		if n.To != nil {
			out = append(out, n.To)
		}
	case *PoolAccess:
		path(n.Path)
		if n.To != nil {
			out = append(out, n.To)
		}
		if n.Init != nil {
			out = append(out, n.Init)
		}
	case *If:
		out = append(out, n.Cond)
		out = append(out, n.Then...)
		out = append(out, n.Else...)
	case *Cond:
		for _, i := range n.Ifs {
			out = append(out, i)
		}
		out = append(out, n.Else...)
	case *While:
		out = append(out, n.Cond)
		out = append(out, n.Body...)
	case *DoUntil:
		out = append(out, n.Body...)
		out = append(out, n.Cond)
	case *For:
		bindings(n.Init)
		out = append(out, n.Cond)
		bindings(n.Step)
		out = append(out, n.Body...)
	case *Foreach:
		out = append(out, n.Array)
		out = append(out, n.Body...)
	case *Forkeyval:
		out = append(out, n.Map)
		out = append(out, n.Body...)
	case *CastBlock:
		out = append(out, n.Expr)
		for _, c := range n.Cases {
			out = append(out, c.Body...)
		}
	case *Upcast:
		out = append(out, n.Expr)
	case *Log:
		out = append(out, n.Exprs...)
	}
	return out
}

// Walk visits root and all its descendants in pre-order.
func Walk(root Expr, visit func(Expr)) {
	if root == nil {
		return
	}
	visit(root)
	for _, c := range Children(root) {
		Walk(c, visit)
	}
}

func describeBindings(bs []Binding) string {
	return strings.Join(gfn.Map(bs, func(b Binding) string { return b.Name + ": " + b.Expr.String() }), ", ")
}

func describeAccess(path []*PathStep, to Expr) string {
	out := ""
	for _, s := range path {
		out += "[" + s.Index.String() + "]"
	}
	if to != nil {
		out += " to " + to.String()
	}
	return out
}
