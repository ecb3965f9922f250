package runtime

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/panyam/pfa/decl"
	"github.com/panyam/pfa/lib"
	"github.com/panyam/pfa/loader"
)

// Scope holds symbol values.  Each block pushes a frame; closures keep a
// pointer to the frame they were created in.
type Scope = Env[Value]

// evalFn is a compiled expression.  The type checker has already run so the
// closures trust the annotations on the tree and only fail on conditions
// that depend on data.
type evalFn func(sc *Scope, st *execState) Value

// compiledFcn is a user function or function literal.  body is filled in
// after every function has been declared so they may call each other.
type compiledFcn struct {
	name       string
	pos        string
	params     []string
	paramTypes []*Type
	ret        *Type
	body       evalFn
}

// invoke runs the function with its parameters bound in a frame nested in
// outer.  Top-level functions have no outer frame and see only their
// parameters; function literals close over the frame they were created in.
func (f *compiledFcn) invoke(st *execState, pos string, outer *Scope, args []Value) (out Value) {
	st.enter(pos)
	defer st.leave()
	if t := st.engine.tracer; t != nil {
		shown := make([]string, len(args))
		for i, a := range args {
			shown[i] = a.String()
		}
		t.Enter(f.name, shown...)
		returned := false
		defer func() {
			if returned {
				t.Exit(f.name, out, nil)
			} else {
				t.Exit(f.name, Value{}, errUnwound)
			}
		}()
		sc := f.bind(outer, args)
		out = store(f.body(sc.Push(), st), f.ret)
		returned = true
		return out
	}
	sc := f.bind(outer, args)
	return store(f.body(sc.Push(), st), f.ret)
}

func (f *compiledFcn) bind(outer *Scope, args []Value) *Scope {
	var sc *Scope
	if outer == nil {
		sc = decl.NewEnv[Value](nil)
	} else {
		sc = outer.Push()
	}
	for i, name := range f.params {
		sc.Set(name, store(args[i], f.paramTypes[i]))
	}
	return sc
}

func (f *compiledFcn) value(st *execState, pos string, t *Type, outer *Scope) Value {
	return decl.FcnOf(t, f.name, func(args []Value) Value {
		return f.invoke(st, pos, outer, args)
	})
}

// compiler turns checked expressions into closures.
type compiler struct {
	lib  *lib.Library
	fcns map[string]*compiledFcn
}

// store moves a value into a slot of type t.  The type checker guarantees
// this succeeds.
func store(v Value, t *Type) Value {
	if t == nil || t.Tag == decl.TypeTagException {
		return v
	}
	out, ok := decl.Coerce(v, t)
	if !ok {
		panic(internalError{fmt.Errorf("cannot store %s (%s) as %s", v, v.Type, t)})
	}
	return out
}

// widen moves a branch result to the type of its construct when it can.
func widen(v Value, t *Type) Value {
	if t == nil || t.Tag == decl.TypeTagException {
		return v
	}
	if out, ok := decl.Coerce(v, t); ok {
		return out
	}
	return v
}

func constant(v Value) evalFn {
	return func(*Scope, *execState) Value { return v }
}

func (c *compiler) compileFcnDef(name string, f *decl.FcnDef) *compiledFcn {
	out := &compiledFcn{
		name: name,
		pos:  f.Pos(),
		ret:  f.Ret.ResolvedType(),
	}
	for _, p := range f.Params {
		out.params = append(out.params, p.Name)
		out.paramTypes = append(out.paramTypes, p.Type.ResolvedType())
	}
	return out
}

// compileBlock evaluates exprs in order in the given scope; the value of a
// block is the value of its last expression, or null when it is empty.
func (c *compiler) compileBlock(exprs []Expr) evalFn {
	fns := make([]evalFn, len(exprs))
	for i, x := range exprs {
		fns[i] = c.compileExpr(x)
	}
	switch len(fns) {
	case 0:
		return constant(decl.NullValue)
	case 1:
		return fns[0]
	}
	return func(sc *Scope, st *execState) Value {
		out := decl.NullValue
		for _, fn := range fns {
			out = fn(sc, st)
		}
		return out
	}
}

// compileScoped is compileBlock in a fresh child scope.
func (c *compiler) compileScoped(exprs []Expr) evalFn {
	body := c.compileBlock(exprs)
	return func(sc *Scope, st *execState) Value {
		return body(sc.Push(), st)
	}
}

func (c *compiler) compileExpr(expr Expr) evalFn {
	switch e := expr.(type) {
	case *decl.Literal:
		return constant(Value{Type: decl.PrimitiveType(e.Tag), Value: e.Value})

	case *decl.TypedLiteral:
		v, err := decl.FromJSON(e.Type.ResolvedType(), e.Datum)
		ensureNoErr(err)
		return constant(v)

	case *decl.NewObject:
		return c.compileNewObject(e)

	case *decl.NewArray:
		t := e.Type.ResolvedType()
		items := make([]evalFn, len(e.Items))
		for i, x := range e.Items {
			items[i] = c.compileExpr(x)
		}
		return func(sc *Scope, st *execState) Value {
			out := make([]Value, len(items))
			for i, item := range items {
				out[i] = store(item(sc, st), t.Items)
			}
			return decl.ArrayValue(t, out)
		}

	case *decl.Ref:
		name := e.Name
		return func(sc *Scope, st *execState) Value {
			v, ok := sc.Get(name)
			if !ok {
				ensureNoErr(fmt.Errorf("%s: symbol %q is not bound", e.Pos(), name))
			}
			return v
		}

	case *decl.Do:
		return c.compileScoped(e.Body)

	case *decl.Let:
		return c.compileBindings(e.Bindings, func(sc *Scope, name string, v Value) {
			sc.Set(name, v)
		})

	case *decl.Set:
		return c.compileBindings(e.Bindings, func(sc *Scope, name string, v Value) {
			ensureNoErr(sc.Assign(name, v))
		})

	case *decl.Call:
		return c.compileCall(e)

	case *decl.FcnRef:
		return c.compileFcnRef(e)

	case *decl.FcnDef:
		f := c.compileFcnDef("fcn", e)
		f.body = c.compileBlock(e.Body)
		t := e.InferredType()
		pos := e.Pos()
		return func(sc *Scope, st *execState) Value {
			return f.value(st, pos, t, sc)
		}

	case *decl.Attr:
		return c.compileAttr(e)

	case *decl.CellAccess:
		return c.compileCell(e)

	case *decl.PoolAccess:
		return c.compilePool(e)

	case *decl.If:
		cond := c.compileExpr(e.Cond)
		then := c.compileScoped(e.Then)
		if e.Else == nil {
			return func(sc *Scope, st *execState) Value {
				if cond(sc, st).Bool() {
					then(sc, st)
				}
				return decl.NullValue
			}
		}
		els := c.compileScoped(e.Else)
		t := e.InferredType()
		return func(sc *Scope, st *execState) Value {
			if cond(sc, st).Bool() {
				return widen(then(sc, st), t)
			}
			return widen(els(sc, st), t)
		}

	case *decl.Cond:
		conds := make([]evalFn, len(e.Ifs))
		thens := make([]evalFn, len(e.Ifs))
		for i, clause := range e.Ifs {
			conds[i] = c.compileExpr(clause.Cond)
			thens[i] = c.compileScoped(clause.Then)
		}
		var els evalFn
		if e.Else != nil {
			els = c.compileScoped(e.Else)
		}
		t := e.InferredType()
		return func(sc *Scope, st *execState) Value {
			for i, cond := range conds {
				if cond(sc, st).Bool() {
					v := thens[i](sc, st)
					if els == nil {
						return decl.NullValue
					}
					return widen(v, t)
				}
			}
			if els == nil {
				return decl.NullValue
			}
			return widen(els(sc, st), t)
		}

	case *decl.While:
		cond := c.compileExpr(e.Cond)
		body := c.compileBlock(e.Body)
		return func(sc *Scope, st *execState) Value {
			condScope, bodyScope := sc.Push(), sc.Push()
			for {
				st.checkDeadline()
				if !cond(condScope, st).Bool() {
					break
				}
				body(bodyScope, st)
			}
			return decl.NullValue
		}

	case *decl.DoUntil:
		cond := c.compileExpr(e.Cond)
		body := c.compileBlock(e.Body)
		return func(sc *Scope, st *execState) Value {
			condScope, bodyScope := sc.Push(), sc.Push()
			for {
				st.checkDeadline()
				body(bodyScope, st)
				if cond(condScope, st).Bool() {
					break
				}
			}
			return decl.NullValue
		}

	case *decl.For:
		return c.compileFor(e)

	case *decl.Foreach:
		array := c.compileExpr(e.Array)
		body := c.compileBlock(e.Body)
		name := e.Name
		return func(sc *Scope, st *execState) Value {
			for _, item := range array(sc, st).Array() {
				st.checkDeadline()
				loop := sc.Push()
				loop.Set(name, item)
				body(loop.Push(), st)
			}
			return decl.NullValue
		}

	case *decl.Forkeyval:
		m := c.compileExpr(e.Map)
		body := c.compileBlock(e.Body)
		key, val := e.Key, e.Val
		return func(sc *Scope, st *execState) Value {
			entries := m(sc, st).Map()
			keys := make([]string, 0, len(entries))
			for k := range entries {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				st.checkDeadline()
				loop := sc.Push()
				loop.Set(key, decl.StringValue(k))
				loop.Set(val, entries[k])
				body(loop.Push(), st)
			}
			return decl.NullValue
		}

	case *decl.CastBlock:
		return c.compileCast(e)

	case *decl.Upcast:
		inner := c.compileExpr(e.Expr)
		t := e.Type.ResolvedType()
		return func(sc *Scope, st *execState) Value {
			return widen(inner(sc, st), t)
		}

	case *decl.Doc:
		return constant(decl.NullValue)

	case *decl.Error:
		err := &userError{message: e.Message, pos: e.Pos()}
		if e.Code != nil {
			err.code = int(*e.Code)
		}
		return func(*Scope, *execState) Value {
			panic(err)
		}

	case *decl.Log:
		return c.compileLog(e)
	}
	panic(internalError{fmt.Errorf("%s: cannot compile %T", expr.Pos(), expr)})
}

// compileBindings evaluates every binding before binding any of them.
func (c *compiler) compileBindings(bindings []Binding, bind func(sc *Scope, name string, v Value)) evalFn {
	exprs := make([]evalFn, len(bindings))
	for i, b := range bindings {
		exprs[i] = c.compileExpr(b.Expr)
	}
	return func(sc *Scope, st *execState) Value {
		values := make([]Value, len(exprs))
		for i, x := range exprs {
			values[i] = store(x(sc, st), bindings[i].Slot)
		}
		for i, b := range bindings {
			bind(sc, b.Name, values[i])
		}
		return decl.NullValue
	}
}

func (c *compiler) compileNewObject(e *decl.NewObject) evalFn {
	t := e.Type.ResolvedType()
	exprs := make([]evalFn, len(e.Fields))
	for i, f := range e.Fields {
		exprs[i] = c.compileExpr(f.Expr)
	}
	fields := e.Fields
	if t.Tag == decl.TypeTagMap {
		return func(sc *Scope, st *execState) Value {
			out := make(map[string]Value, len(exprs))
			for i, x := range exprs {
				out[fields[i].Name] = store(x(sc, st), t.Values)
			}
			return decl.MapValue(t, out)
		}
	}

	defaults := map[string]Value{}
	for _, f := range t.Fields {
		if f.HasDefault && !slices.ContainsFunc(fields, func(b Binding) bool { return b.Name == f.Name }) {
			v, err := decl.FromJSON(f.Type, f.Default)
			ensureNoErr(err)
			defaults[f.Name] = v
		}
	}
	return func(sc *Scope, st *execState) Value {
		out := make(map[string]Value, len(t.Fields))
		for k, v := range defaults {
			out[k] = v
		}
		for i, x := range exprs {
			out[fields[i].Name] = store(x(sc, st), fields[i].Slot)
		}
		return decl.RecordOf(t, out)
	}
}

func (c *compiler) compileArgs(args []Expr) []evalFn {
	out := make([]evalFn, len(args))
	for i, a := range args {
		out[i] = c.compileExpr(a)
	}
	return out
}

func (c *compiler) compileCall(e *decl.Call) evalFn {
	res := e.Resolution()
	if res == nil {
		panic(internalError{fmt.Errorf("%s: call to %q was not resolved", e.Pos(), e.Name)})
	}
	args := c.compileArgs(e.Args)
	pos := e.Pos()

	if strings.HasPrefix(e.Name, loader.UserPrefix) {
		f, ok := c.fcns[e.Name]
		if !ok {
			panic(internalError{fmt.Errorf("%s: unknown function %q", pos, e.Name)})
		}
		return func(sc *Scope, st *execState) Value {
			values := make([]Value, len(args))
			for i, a := range args {
				values[i] = store(a(sc, st), res.ParamTypes[i])
			}
			return f.invoke(st, pos, nil, values)
		}
	}

	fcn, ok := c.lib.Lookup(e.Name)
	if !ok {
		panic(internalError{fmt.Errorf("%s: unknown function %q", pos, e.Name)})
	}
	call := fcn.NewCall(res)
	if fcn.Lazy != nil {
		return func(sc *Scope, st *execState) Value {
			thunks := make([]func() Value, len(args))
			for i, a := range args {
				a, pt := a, call.ParamTypes[i]
				thunks[i] = func() Value { return store(a(sc, st), pt) }
			}
			return widen(fcn.Lazy(call, thunks), call.RetType)
		}
	}
	return func(sc *Scope, st *execState) Value {
		values := make([]Value, len(args))
		for i, a := range args {
			values[i] = store(a(sc, st), call.ParamTypes[i])
		}
		return widen(fcn.Impl(call, values), call.RetType)
	}
}

func (c *compiler) compileFcnRef(e *decl.FcnRef) evalFn {
	t := e.InferredType()
	pos := e.Pos()
	if f, ok := c.fcns[e.Name]; ok {
		return func(sc *Scope, st *execState) Value {
			return f.value(st, pos, t, nil)
		}
	}

	fcn, ok := c.lib.Lookup(e.Name)
	if !ok || e.Resolution() == nil {
		panic(internalError{fmt.Errorf("%s: unknown function %q", pos, e.Name)})
	}
	call := fcn.NewCall(e.Resolution())
	v := decl.FcnOf(t, e.Name, func(args []Value) Value {
		values := make([]Value, len(args))
		for i, a := range args {
			values[i] = store(a, call.ParamTypes[i])
		}
		if fcn.Lazy != nil {
			thunks := make([]func() Value, len(values))
			for i, x := range values {
				thunks[i] = func() Value { return x }
			}
			return widen(fcn.Lazy(call, thunks), call.RetType)
		}
		return widen(fcn.Impl(call, values), call.RetType)
	})
	return constant(v)
}

type compiledPath struct {
	indexes    []evalFn
	containers []*Type
	target     *Type
}

func (c *compiler) compilePath(path []*PathStep, root *Type) compiledPath {
	out := compiledPath{target: root}
	for _, step := range path {
		out.indexes = append(out.indexes, c.compileExpr(step.Index))
		out.containers = append(out.containers, step.Container)
		switch step.Container.Tag {
		case decl.TypeTagArray:
			out.target = step.Container.Items
		case decl.TypeTagMap:
			out.target = step.Container.Values
		case decl.TypeTagRecord:
			lit := step.Index.(*decl.Literal)
			out.target = step.Container.Field(lit.Value.(string)).Type
		}
	}
	return out
}

func (p compiledPath) eval(sc *Scope, st *execState) []pathIndex {
	out := make([]pathIndex, len(p.indexes))
	for i, index := range p.indexes {
		out[i] = pathIndex{key: index(sc, st), container: p.containers[i]}
	}
	return out
}

// compileUpdate compiles a "to" clause into a function of the old value.
// A function-typed clause is an updater unless the target is itself a
// function.
func (c *compiler) compileUpdate(to Expr, target *Type) func(sc *Scope, st *execState) func(Value) Value {
	fn := c.compileExpr(to)
	if tt := to.InferredType(); tt.Tag == decl.TypeTagFunction && target.Tag != decl.TypeTagFunction {
		return func(sc *Scope, st *execState) func(Value) Value {
			updater := fn(sc, st).Fcn()
			return func(old Value) Value {
				return store(updater.Call([]Value{old}), target)
			}
		}
	}
	return func(sc *Scope, st *execState) func(Value) Value {
		v := store(fn(sc, st), target)
		return func(Value) Value { return v }
	}
}

func (c *compiler) compileAttr(e *decl.Attr) evalFn {
	base := c.compileExpr(e.Expr)
	path := c.compilePath(e.Path, e.Expr.InferredType())
	pos := e.Pos()
	if e.To == nil {
		return func(sc *Scope, st *execState) Value {
			v := base(sc, st)
			return getPath(v, path.eval(sc, st), pos)
		}
	}
	update := c.compileUpdate(e.To, path.target)
	return func(sc *Scope, st *execState) Value {
		v := base(sc, st)
		indexes := path.eval(sc, st)
		return updatePath(v, indexes, update(sc, st), pos)
	}
}

func (c *compiler) compileCell(e *decl.CellAccess) evalFn {
	name := e.Cell
	pos := e.Pos()
	var root *Type
	if len(e.Path) > 0 {
		root = e.Path[0].Container
	} else {
		root = e.InferredType()
	}
	path := c.compilePath(e.Path, root)
	if e.To == nil {
		return func(sc *Scope, st *execState) Value {
			indexes := path.eval(sc, st)
			return st.engine.cell(name).Get(st, indexes, pos)
		}
	}
	update := c.compileUpdate(e.To, path.target)
	return func(sc *Scope, st *execState) Value {
		indexes := path.eval(sc, st)
		return st.engine.cell(name).Update(st, indexes, update(sc, st), pos)
	}
}

func (c *compiler) compilePool(e *decl.PoolAccess) evalFn {
	name := e.Pool
	pos := e.Pos()
	key := c.compileExpr(e.Path[0].Index)
	entryType := e.Path[0].Container.Values
	path := c.compilePath(e.Path[1:], entryType)
	if e.To == nil {
		return func(sc *Scope, st *execState) Value {
			k := key(sc, st).Str()
			indexes := path.eval(sc, st)
			return st.engine.pool(name).Get(st, k, indexes, pos)
		}
	}
	update := c.compileUpdate(e.To, path.target)
	var init evalFn
	if e.Init != nil {
		init = c.compileExpr(e.Init)
	}
	return func(sc *Scope, st *execState) Value {
		k := key(sc, st).Str()
		indexes := path.eval(sc, st)
		var initFn func() Value
		if init != nil {
			initFn = func() Value { return store(init(sc, st), entryType) }
		}
		return st.engine.pool(name).Update(st, k, indexes, initFn, update(sc, st), pos)
	}
}

func (c *compiler) compileFor(e *decl.For) evalFn {
	init := c.compileBindings(e.Init, func(sc *Scope, name string, v Value) { sc.Set(name, v) })
	cond := c.compileExpr(e.Cond)
	step := c.compileBindings(e.Step, func(sc *Scope, name string, v Value) {
		ensureNoErr(sc.Assign(name, v))
	})
	body := c.compileBlock(e.Body)
	until := e.Until
	return func(sc *Scope, st *execState) Value {
		loop := sc.Push()
		init(loop, st)
		condScope, stepScope, bodyScope := loop.Push(), loop.Push(), loop.Push()
		for {
			st.checkDeadline()
			if cond(condScope, st).Bool() == until {
				break
			}
			body(bodyScope, st)
			step(stepScope, st)
		}
		return decl.NullValue
	}
}

func (c *compiler) compileCast(e *decl.CastBlock) evalFn {
	src := c.compileExpr(e.Expr)
	type castCase struct {
		t    *Type
		name string
		body evalFn
	}
	cases := make([]castCase, len(e.Cases))
	for i, cc := range e.Cases {
		cases[i] = castCase{cc.Type.ResolvedType(), cc.Name, c.compileBlock(cc.Body)}
	}
	partial := e.Partial
	t := e.InferredType()
	return func(sc *Scope, st *execState) Value {
		v := src(sc, st)
		// the branch of the value's own type wins over a wider one listed first
		match := slices.IndexFunc(cases, func(cc castCase) bool { return cc.t.Equals(v.Type) })
		if match < 0 {
			match = slices.IndexFunc(cases, func(cc castCase) bool { return decl.Accepts(cc.t, v.Type) })
		}
		if match >= 0 {
			cc := cases[match]
			inner := sc.Push()
			inner.Set(cc.name, store(v, cc.t))
			out := cc.body(inner.Push(), st)
			if partial {
				return decl.NullValue
			}
			return widen(out, t)
		}
		return decl.NullValue
	}
}

func (c *compiler) compileLog(e *decl.Log) evalFn {
	exprs := c.compileArgs(e.Exprs)
	types := make([]*Type, len(e.Exprs))
	for i, x := range e.Exprs {
		types[i] = x.InferredType()
	}
	namespace := e.Namespace
	return func(sc *Scope, st *execState) Value {
		parts := make([]string, len(exprs))
		for i, x := range exprs {
			encoded, err := json.Marshal(decl.ToJSON(types[i], x(sc, st)))
			ensureNoErr(err)
			parts[i] = string(encoded)
		}
		st.engine.log(namespace, strings.Join(parts, " "))
		return decl.NullValue
	}
}
