package loader

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/panyam/pfa/decl"
)

// Signatures is the view of the function catalog the type checker needs.
type Signatures interface {
	// Signatures returns the overload set of a library function.
	Signatures(name string) (decl.Sigs, bool)
}

// UserPrefix marks calls to functions defined in the document's "fcns".
const UserPrefix = "u."

// Types of the symbols every routine can see.
var (
	MetadataType = decl.MapType(decl.StringType)
	routineSyms  = map[string]*Type{
		"name":            decl.StringType,
		"instance":        decl.IntType,
		"metadata":        MetadataType,
		"actionsStarted":  decl.LongType,
		"actionsFinished": decl.LongType,
	}
)

// Inference resolves the type placeholders of a document and annotates every
// expression with its static type, every call with its resolved overload and
// every path step with the type it indexes.
type Inference struct {
	ErrorCollector

	config *EngineConfig
	lib    Signatures
	names  *decl.NameAllocator

	cells map[string]*Type
	pools map[string]*Type
	fcns  map[string]*Type
}

func NewInference(cfg *EngineConfig, lib Signatures, names *decl.NameAllocator) *Inference {
	if names == nil {
		names = decl.DefaultNames
	}
	return &Inference{
		config: cfg,
		lib:    lib,
		names:  names,
		cells:  map[string]*Type{},
		pools:  map[string]*Type{},
		fcns:   map[string]*Type{},
	}
}

// Eval runs the whole check and reports whether the document is valid.
// Errors are left in i.Errors.
func (i *Inference) Eval() bool {
	cfg := i.config
	if !i.ResolveTypes(cfg.TypeDecls()) {
		return false
	}

	if cfg.Method != decl.MethodMap && cfg.Method != decl.MethodFold {
		i.Errorf("method", "unknown method %q (expected %q or %q)", cfg.Method, decl.MethodMap, decl.MethodFold)
	}
	output := cfg.Output.ResolvedType()
	if cfg.Method == decl.MethodFold {
		if cfg.Zero == nil && output.Tag != decl.TypeTagNull {
			i.Errorf("zero", "a fold engine needs a \"zero\"")
		} else if _, err := decl.FromJSON(output, cfg.Zero); err != nil {
			i.Errorf("zero", "zero does not match the output type: %v", err)
		}
	} else if cfg.Zero != nil {
		i.Errorf("zero", "only fold engines have a \"zero\"")
	}

	for _, name := range sortedNames(cfg.Cells) {
		c := cfg.Cells[name]
		t := c.Type.ResolvedType()
		if _, err := decl.FromJSON(t, c.Init); err != nil {
			i.Errorf(c.Pos(), "init of cell %q does not match its type: %v", name, err)
		}
		i.cells[name] = t
	}
	for _, name := range sortedNames(cfg.Pools) {
		p := cfg.Pools[name]
		t := p.Type.ResolvedType()
		for key, datum := range p.Init {
			if _, err := decl.FromJSON(t, datum); err != nil {
				i.Errorf(p.Pos(), "init of pool %q key %q does not match its type: %v", name, key, err)
			}
		}
		i.pools[name] = t
	}

	// every user function is callable from every other, so types go in first
	for _, name := range sortedNames(cfg.Fcns) {
		i.fcns[UserPrefix+name] = cfg.Fcns[name].FcnType()
	}
	for _, name := range sortedNames(cfg.Fcns) {
		i.EvalForFcnDef(cfg.Fcns[name], nil)
	}

	symbols := func(withInput bool) map[string]*Type {
		out := make(map[string]*Type, len(routineSyms)+2)
		for k, v := range routineSyms {
			out[k] = v
		}
		if withInput {
			out["input"] = cfg.Input.ResolvedType()
		}
		if cfg.Method == decl.MethodFold {
			out["tally"] = output
		}
		return out
	}

	i.EvalForBlock(cfg.Begin, NewRootTypeScope(symbols(false)).Push())
	result := i.EvalForBlock(cfg.Action, NewRootTypeScope(symbols(true)).Push())
	if result != nil && !decl.Accepts(output, result) {
		i.Errorf("action", "action returns %s but the output type is %s", result, output)
	}
	i.EvalForBlock(cfg.End, NewRootTypeScope(symbols(false)).Push())
	return !i.HasErrors()
}

// ResolveTypes resolves every placeholder together so they may refer to each
// other's named types in any order.
func (i *Inference) ResolveTypes(decls []*TypeDecl) bool {
	originals := make([]string, len(decls))
	for idx, td := range decls {
		originals[idx] = td.Original
	}
	parsed, err := NewForwardDeclarationParser().Parse(originals)
	if err != nil {
		i.AddErrors(err)
		return false
	}
	for _, td := range decls {
		td.SetResolvedType(parsed[td.Original])
	}
	return true
}

// EvalForFcnDef checks a function body.  A top-level function (scope nil)
// sees only its parameters.  A function literal may read the symbols of the
// scope it is written in but may not modify them.
func (i *Inference) EvalForFcnDef(f *decl.FcnDef, scope *TypeScope) *Type {
	params := map[string]*Type{}
	for _, p := range f.Params {
		if _, dup := params[p.Name]; dup {
			i.Errorf(f.Pos(), "duplicate parameter %q", p.Name)
		}
		params[p.Name] = p.Type.ResolvedType()
	}
	ret := f.Ret.ResolvedType()
	var inner *TypeScope
	if scope == nil {
		inner = NewRootTypeScope(params)
	} else {
		inner = scope.PushSealed()
		inner.env.SetMany(params)
	}
	body := i.EvalForBlock(f.Body, inner.Push())
	if body != nil && !decl.Accepts(ret, body) {
		i.Errorf(f.Pos(), "function body returns %s but is declared to return %s", body, ret)
	}
	t := f.FcnType()
	f.SetInferredType(t)
	return t
}

// EvalForBlock checks a sequence of expressions in scope and returns the type
// of the last one (null for an empty block).  nil means an error was
// reported.
func (i *Inference) EvalForBlock(body []Expr, scope *TypeScope) (out *Type) {
	out = decl.NullType
	for _, x := range body {
		out = i.EvalForExpr(x, scope)
	}
	return
}

func (i *Inference) EvalForExpr(expr Expr, scope *TypeScope) *Type {
	t := i.evalForExpr(expr, scope)
	if t != nil {
		expr.SetInferredType(t)
	}
	return t
}

func (i *Inference) evalForExpr(expr Expr, scope *TypeScope) *Type {
	switch e := expr.(type) {
	case *decl.Literal:
		return decl.PrimitiveType(e.Tag)

	case *decl.TypedLiteral:
		t := e.Type.ResolvedType()
		if _, err := decl.FromJSON(t, e.Datum); err != nil {
			i.Errorf(e.Pos(), "literal does not match %s: %v", t, err)
			return nil
		}
		return t

	case *decl.NewObject:
		return i.evalForNewObject(e, scope)

	case *decl.NewArray:
		t := e.Type.ResolvedType()
		if t.Tag != decl.TypeTagArray {
			i.Errorf(e.Pos(), "\"new\" with an array needs an array type, got %s", t)
			return nil
		}
		for _, item := range e.Items {
			if it := i.EvalForExpr(item, scope); it != nil && !decl.Accepts(t.Items, it) {
				i.Errorf(item.Pos(), "array item of type %s is not a %s", it, t.Items)
			}
		}
		return t

	case *decl.Ref:
		t, ok := scope.Get(e.Name)
		if !ok {
			i.Errorf(e.Pos(), "unknown symbol %q", e.Name)
			return nil
		}
		return t

	case *decl.Do:
		return i.EvalForBlock(e.Body, scope.Push())

	case *decl.Let:
		return i.evalForLet(e.Bindings, scope, e.Pos())

	case *decl.Set:
		return i.evalForSet(e.Bindings, scope)

	case *decl.Call:
		return i.evalForCall(e, scope)

	case *decl.FcnRef:
		return i.evalForFcnRef(e)

	case *decl.FcnDef:
		return i.EvalForFcnDef(e, scope)

	case *decl.Attr:
		base := i.EvalForExpr(e.Expr, scope)
		if base == nil {
			return nil
		}
		last := i.evalForPath(e.Path, base, scope, e.Pos())
		if last == nil {
			return nil
		}
		if e.To == nil {
			return last
		}
		if !i.checkUpdate(e.To, last, scope) {
			return nil
		}
		return base

	case *decl.CellAccess:
		t, ok := i.cells[e.Cell]
		if !ok {
			i.Errorf(e.Pos(), "unknown cell %q", e.Cell)
			return nil
		}
		last := i.evalForPath(e.Path, t, scope, e.Pos())
		if last == nil {
			return nil
		}
		if e.To == nil {
			return last
		}
		if !i.checkUpdate(e.To, last, scope) {
			return nil
		}
		return t

	case *decl.PoolAccess:
		return i.evalForPool(e, scope)

	case *decl.If:
		if !i.checkCondition(e.Cond, scope) {
			return nil
		}
		then := i.EvalForBlock(e.Then, scope.Push())
		if e.Else == nil {
			return decl.NullType
		}
		return i.unify(e.Pos(), then, i.EvalForBlock(e.Else, scope.Push()))

	case *decl.Cond:
		var branches []*Type
		for _, clause := range e.Ifs {
			if !i.checkCondition(clause.Cond, scope) {
				return nil
			}
			branches = append(branches, i.EvalForBlock(clause.Then, scope.Push()))
			clause.SetInferredType(decl.NullType)
		}
		if e.Else == nil {
			return decl.NullType
		}
		branches = append(branches, i.EvalForBlock(e.Else, scope.Push()))
		return i.unify(e.Pos(), branches...)

	case *decl.While:
		i.checkCondition(e.Cond, scope.Push())
		i.EvalForBlock(e.Body, scope.Push())
		return decl.NullType

	case *decl.DoUntil:
		i.EvalForBlock(e.Body, scope.Push())
		i.checkCondition(e.Cond, scope.Push())
		return decl.NullType

	case *decl.For:
		loop := scope.Push()
		i.evalForLet(e.Init, loop, e.Pos())
		i.checkCondition(e.Cond, loop.Push())
		i.evalForSet(e.Step, loop.Push())
		i.EvalForBlock(e.Body, loop.Push())
		return decl.NullType

	case *decl.Foreach:
		at := i.EvalForExpr(e.Array, scope)
		if at == nil {
			return nil
		}
		if at.Tag != decl.TypeTagArray {
			i.Errorf(e.Array.Pos(), "foreach needs an array, got %s", at)
			return nil
		}
		loop := scope.PushSealed()
		if e.Seq {
			loop = scope.Push()
		}
		if err := loop.Let(e.Name, at.Items); err != nil {
			i.Errorf(e.Pos(), "%v", err)
		}
		i.EvalForBlock(e.Body, loop.Push())
		return decl.NullType

	case *decl.Forkeyval:
		mt := i.EvalForExpr(e.Map, scope)
		if mt == nil {
			return nil
		}
		if mt.Tag != decl.TypeTagMap {
			i.Errorf(e.Map.Pos(), "forkey/forval needs a map, got %s", mt)
			return nil
		}
		loop := scope.PushSealed()
		if err := loop.Let(e.Key, decl.StringType); err != nil {
			i.Errorf(e.Pos(), "%v", err)
		}
		if err := loop.Let(e.Val, mt.Values); err != nil {
			i.Errorf(e.Pos(), "%v", err)
		}
		i.EvalForBlock(e.Body, loop.Push())
		return decl.NullType

	case *decl.CastBlock:
		return i.evalForCast(e, scope)

	case *decl.Upcast:
		from := i.EvalForExpr(e.Expr, scope)
		to := e.Type.ResolvedType()
		if from != nil && !decl.Accepts(to, from) {
			i.Errorf(e.Pos(), "cannot upcast %s to %s", from, to)
			return nil
		}
		return to

	case *decl.Doc:
		return decl.NullType

	case *decl.Error:
		return decl.ExceptionType

	case *decl.Log:
		for _, x := range e.Exprs {
			i.EvalForExpr(x, scope)
		}
		return decl.NullType
	}
	i.Errorf(expr.Pos(), "unexpected expression %T", expr)
	return nil
}

func (i *Inference) checkCondition(cond Expr, scope *TypeScope) bool {
	t := i.EvalForExpr(cond, scope)
	if t == nil {
		return false
	}
	if t.Tag != decl.TypeTagBoolean {
		return i.Errorf(cond.Pos(), "condition must be boolean, got %s", t)
	}
	return true
}

// unify finds the type of an expression whose value comes from one of
// several branches.  Branches that always raise do not contribute.
func (i *Inference) unify(pos string, branches ...*Type) *Type {
	var live []*Type
	for _, b := range branches {
		if b == nil {
			return nil
		}
		if b.Tag != decl.TypeTagException {
			live = append(live, b)
		}
	}
	if len(live) == 0 {
		return decl.ExceptionType
	}
	t, err := decl.BroadestType(live)
	if err != nil {
		i.AddErrors(&SemanticError{Pos: pos, Msg: "branches have incompatible types", Cause: err})
		return nil
	}
	return t
}

// evalForLet evaluates every binding before declaring any of them.
func (i *Inference) evalForLet(bindings []Binding, scope *TypeScope, pos string) *Type {
	types := make([]*Type, len(bindings))
	for idx, b := range bindings {
		types[idx] = i.EvalForExpr(b.Expr, scope)
	}
	for idx := range bindings {
		b := &bindings[idx]
		t := types[idx]
		if t == nil {
			continue
		}
		if t.Tag == decl.TypeTagException {
			i.Errorf(b.Expr.Pos(), "cannot bind %q to an expression that always fails", b.Name)
			continue
		}
		b.Slot = t
		if err := scope.Let(b.Name, t); err != nil {
			i.Errorf(pos, "%v", err)
		}
	}
	return decl.NullType
}

func (i *Inference) evalForSet(bindings []Binding, scope *TypeScope) *Type {
	for idx := range bindings {
		b := &bindings[idx]
		vt := i.EvalForExpr(b.Expr, scope)
		slot, err := scope.Settable(b.Name)
		if err != nil {
			i.Errorf(b.Expr.Pos(), "%v", err)
			continue
		}
		b.Slot = slot
		if vt != nil && !decl.Accepts(slot, vt) {
			i.Errorf(b.Expr.Pos(), "cannot set %q of type %s to %s", b.Name, slot, vt)
		}
	}
	return decl.NullType
}

func (i *Inference) evalForNewObject(e *decl.NewObject, scope *TypeScope) *Type {
	t := e.Type.ResolvedType()
	switch t.Tag {
	case decl.TypeTagMap:
		for idx := range e.Fields {
			f := &e.Fields[idx]
			f.Slot = t.Values
			if vt := i.EvalForExpr(f.Expr, scope); vt != nil && !decl.Accepts(t.Values, vt) {
				i.Errorf(f.Expr.Pos(), "map value %q of type %s is not a %s", f.Name, vt, t.Values)
			}
		}
		return t

	case decl.TypeTagRecord:
		given := map[string]bool{}
		for idx := range e.Fields {
			f := &e.Fields[idx]
			given[f.Name] = true
			vt := i.EvalForExpr(f.Expr, scope)
			field := t.Field(f.Name)
			if field == nil {
				i.Errorf(f.Expr.Pos(), "record %s has no field %q", t.FullName(), f.Name)
				continue
			}
			f.Slot = field.Type
			if vt != nil && !decl.Accepts(field.Type, vt) {
				i.Errorf(f.Expr.Pos(), "field %q of type %s is not a %s", f.Name, vt, field.Type)
			}
		}
		for _, field := range t.Fields {
			if !given[field.Name] && !field.HasDefault {
				i.Errorf(e.Pos(), "missing field %q of record %s", field.Name, t.FullName())
			}
		}
		return t
	}
	i.Errorf(e.Pos(), "\"new\" with an object needs a record or map type, got %s", t)
	return nil
}

func (i *Inference) argTypes(args []Expr, scope *TypeScope) ([]*Type, bool) {
	types := make([]*Type, len(args))
	ok := true
	for idx, a := range args {
		types[idx] = i.EvalForExpr(a, scope)
		ok = ok && types[idx] != nil
	}
	return types, ok
}

func (i *Inference) sigsFor(name string) (decl.Sigs, bool) {
	if strings.HasPrefix(name, UserPrefix) {
		ft, ok := i.fcns[name]
		if !ok {
			return nil, false
		}
		params := make([]decl.Param, len(ft.Params))
		for idx, p := range ft.Params {
			params[idx] = decl.Param{Name: fmt.Sprintf("p%d", idx), Pattern: decl.PatternFromType(p)}
		}
		return decl.Sigs{decl.Sig(decl.PatternFromType(ft.Ret), params...)}, true
	}
	if i.lib == nil {
		return nil, false
	}
	return i.lib.Signatures(name)
}

func (i *Inference) evalForCall(e *decl.Call, scope *TypeScope) *Type {
	args, ok := i.argTypes(e.Args, scope)
	if !ok {
		return nil
	}
	sigs, found := i.sigsFor(e.Name)
	if !found {
		i.Errorf(e.Pos(), "unknown function %q", e.Name)
		return nil
	}
	res, err := sigs.Resolve(e.Name, args, i.names)
	if err != nil {
		i.AddErrors(&SemanticError{Pos: e.Pos(), Msg: err.Error(), Cause: err})
		return nil
	}
	e.SetResolution(res)
	return res.RetType
}

// evalForFcnRef types a function passed by name.  Library functions must have
// a single signature without wildcards so that the reference has one type.
func (i *Inference) evalForFcnRef(e *decl.FcnRef) *Type {
	if ft, ok := i.fcns[e.Name]; ok {
		return ft
	}
	sigs, found := i.sigsFor(e.Name)
	if !found {
		i.Errorf(e.Pos(), "unknown function %q", e.Name)
		return nil
	}
	if len(sigs) != 1 || !concrete(sigs[0].Ret) || !allConcrete(sigs[0].Params) {
		i.Errorf(e.Pos(), "function %q is generic or overloaded and cannot be referenced with \"fcn\"", e.Name)
		return nil
	}
	sig := sigs[0]
	params := make([]*Type, len(sig.Params))
	for idx, p := range sig.Params {
		params[idx] = p.Pattern.ToType(i.names)
	}
	e.SetResolution(&decl.Resolution{Signature: sig, ParamTypes: params, RetType: sig.Ret.ToType(i.names)})
	return decl.FunctionType(params, e.Resolution().RetType)
}

func allConcrete(params []decl.Param) bool {
	for _, p := range params {
		if !concrete(p.Pattern) {
			return false
		}
	}
	return true
}

// concrete reports whether a pattern has no labels.
func concrete(p *decl.Pattern) bool {
	if p == nil {
		return true
	}
	switch p.Tag {
	case decl.TypeTagWildcard, decl.TypeTagWildRecord:
		return false
	}
	if !concrete(p.Items) || !concrete(p.Values) || !concrete(p.Ret) {
		return false
	}
	for _, m := range p.Members {
		if !concrete(m) {
			return false
		}
	}
	for _, m := range p.Params {
		if !concrete(m) {
			return false
		}
	}
	for _, f := range p.Fields {
		if !concrete(f.Pattern) {
			return false
		}
	}
	return true
}

// evalForPath walks a path from the type t, recording the container type on
// each step, and returns the type at the end of the path.
func (i *Inference) evalForPath(path []*PathStep, t *Type, scope *TypeScope, pos string) *Type {
	for _, step := range path {
		step.Container = t
		it := i.EvalForExpr(step.Index, scope)
		if it == nil {
			return nil
		}
		switch t.Tag {
		case decl.TypeTagArray:
			if it.Tag != decl.TypeTagInt && it.Tag != decl.TypeTagLong {
				i.Errorf(step.Index.Pos(), "array index must be int or long, got %s", it)
				return nil
			}
			t = t.Items
		case decl.TypeTagMap:
			if it.Tag != decl.TypeTagString {
				i.Errorf(step.Index.Pos(), "map key must be a string, got %s", it)
				return nil
			}
			t = t.Values
		case decl.TypeTagRecord:
			lit, ok := step.Index.(*decl.Literal)
			if !ok || lit.Tag != decl.TypeTagString {
				i.Errorf(step.Index.Pos(), "record field must be a string literal")
				return nil
			}
			field := t.Field(lit.Value.(string))
			if field == nil {
				i.Errorf(step.Index.Pos(), "record %s has no field %q", t.FullName(), lit.Value)
				return nil
			}
			t = field.Type
		default:
			i.Errorf(pos, "cannot index into %s", t)
			return nil
		}
	}
	return t
}

// checkUpdate verifies a "to" clause: either a replacement value of the
// target type or a function from the old value to the new one.
func (i *Inference) checkUpdate(to Expr, target *Type, scope *TypeScope) bool {
	tt := i.EvalForExpr(to, scope)
	if tt == nil {
		return false
	}
	if tt.Tag == decl.TypeTagFunction && target.Tag != decl.TypeTagFunction {
		if len(tt.Params) != 1 || !decl.Accepts(tt.Params[0], target) || !decl.Accepts(target, tt.Ret) {
			return i.Errorf(to.Pos(), "updater of type %s does not map %s to itself", tt, target)
		}
		return true
	}
	if !decl.Accepts(target, tt) {
		return i.Errorf(to.Pos(), "cannot replace a %s with a %s", target, tt)
	}
	return true
}

func (i *Inference) evalForPool(e *decl.PoolAccess, scope *TypeScope) *Type {
	t, ok := i.pools[e.Pool]
	if !ok {
		i.Errorf(e.Pos(), "unknown pool %q", e.Pool)
		return nil
	}
	if len(e.Path) == 0 {
		i.Errorf(e.Pos(), "a pool path must start with the key")
		return nil
	}
	key := e.Path[0]
	key.Container = decl.MapType(t)
	if kt := i.EvalForExpr(key.Index, scope); kt == nil || kt.Tag != decl.TypeTagString {
		i.Errorf(key.Index.Pos(), "pool key must be a string")
		return nil
	}
	last := i.evalForPath(e.Path[1:], t, scope, e.Pos())
	if last == nil {
		return nil
	}
	if e.To == nil {
		if e.Init != nil {
			i.Errorf(e.Pos(), "\"init\" is only allowed with \"to\"")
		}
		return last
	}
	if !i.checkUpdate(e.To, last, scope) {
		return nil
	}
	if e.Init != nil {
		if it := i.EvalForExpr(e.Init, scope); it != nil && !decl.Accepts(t, it) {
			i.Errorf(e.Init.Pos(), "pool init of type %s is not a %s", it, t)
		}
	}
	return t
}

func (i *Inference) evalForCast(e *decl.CastBlock, scope *TypeScope) *Type {
	from := i.EvalForExpr(e.Expr, scope)
	if from == nil {
		return nil
	}
	var branches []*Type
	for _, c := range e.Cases {
		ct := c.Type.ResolvedType()
		if !decl.Accepts(from, ct) {
			i.Errorf(c.Type.Pos(), "cast case %s can never match a %s", ct, from)
		}
		inner := scope.Push()
		if err := inner.Let(c.Name, ct); err != nil {
			i.Errorf(c.Type.Pos(), "%v", err)
		}
		branches = append(branches, i.EvalForBlock(c.Body, inner.Push()))
	}

	if !e.Partial {
		members := []*Type{from}
		if from.Tag == decl.TypeTagUnion {
			members = from.Members
		}
		for _, m := range members {
			covered := false
			for _, c := range e.Cases {
				if decl.Accepts(c.Type.ResolvedType(), m) {
					covered = true
					break
				}
			}
			if !covered {
				i.Errorf(e.Pos(), "cast cases do not cover %s (use \"partial\" to allow this)", m)
			}
		}
		return i.unify(e.Pos(), branches...)
	}
	return decl.NullType
}

// IsSemantic reports whether err came from type checking rather than from
// reading the document.
func IsSemantic(err error) bool {
	var se *SemanticError
	return errors.As(err, &se)
}

func sortedNames[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
