package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/panyam/pfa/decl"
	"gopkg.in/yaml.v3"
)

// DocumentParser reads JSON or YAML documents into an EngineConfig.
type DocumentParser struct{}

func (DocumentParser) Parse(input io.Reader, sourceName string) (*EngineConfig, error) {
	src, err := io.ReadAll(input)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sourceName, err)
	}
	return Read(src)
}

// Read parses a document, picking JSON when it looks like a JSON object and
// YAML otherwise.
func Read(src []byte) (*EngineConfig, error) {
	if trimmed := bytes.TrimSpace(src); len(trimmed) > 0 && trimmed[0] == '{' {
		return ReadJSON(src)
	}
	return ReadYAML(src)
}

func ReadJSON(src []byte) (*EngineConfig, error) {
	var datum any
	dec := json.NewDecoder(bytes.NewReader(src))
	dec.UseNumber()
	if err := dec.Decode(&datum); err != nil {
		return nil, &SyntaxError{Msg: err.Error()}
	}
	return ReadDatum(datum)
}

func ReadYAML(src []byte) (*EngineConfig, error) {
	var datum any
	if err := yaml.Unmarshal(src, &datum); err != nil {
		return nil, &SyntaxError{Msg: err.Error()}
	}
	return ReadDatum(normalizeYAML(datum))
}

// normalizeYAML converts what yaml.v3 produces into the shapes encoding/json
// produces with UseNumber, so the reader only deals with one representation.
func normalizeYAML(datum any) any {
	switch d := datum.(type) {
	case map[string]any:
		for k, v := range d {
			d[k] = normalizeYAML(v)
		}
		return d
	case map[any]any:
		out := make(map[string]any, len(d))
		for k, v := range d {
			out[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return out
	case []any:
		for i, v := range d {
			d[i] = normalizeYAML(v)
		}
		return d
	case int:
		return json.Number(strconv.Itoa(d))
	case int64:
		return json.Number(strconv.FormatInt(d, 10))
	case uint64:
		return json.Number(strconv.FormatUint(d, 10))
	case float64:
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return d
		}
		s := strconv.FormatFloat(d, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return json.Number(s)
	}
	return datum
}

// ReadDatum builds the AST of an already decoded document.
func ReadDatum(datum any) (*EngineConfig, error) {
	top, ok := datum.(map[string]any)
	if !ok {
		return nil, &SyntaxError{Msg: "a document must be an object"}
	}
	r := &reader{}
	cfg := r.engineConfig(top)
	if r.HasErrors() {
		return nil, r.Errors[0]
	}
	return cfg, nil
}

type reader struct {
	ErrorCollector
}

func (r *reader) syntaxf(at string, format string, args ...any) {
	r.AddErrors(&SyntaxError{Pos: at, Msg: fmt.Sprintf(format, args...)})
}

func join(at string, key any) string {
	if at == "" {
		return fmt.Sprint(key)
	}
	return fmt.Sprintf("%s.%v", at, key)
}

var topLevelKeys = []string{"name", "method", "input", "output", "begin", "action", "end",
	"fcns", "zero", "cells", "pools", "doc", "version", "metadata", "options"}

func (r *reader) engineConfig(top map[string]any) *EngineConfig {
	top = stripAnnotations(top)
	for k := range top {
		if !slices.Contains(topLevelKeys, k) {
			r.syntaxf(k, "unknown top-level field %q", k)
		}
	}

	cfg := &EngineConfig{
		Method: decl.MethodMap,
		Fcns:   map[string]*decl.FcnDef{},
		Cells:  map[string]*decl.CellDecl{},
		Pools:  map[string]*decl.PoolDecl{},
		Zero:   top["zero"],
	}
	if name, ok := top["name"]; ok {
		cfg.Name = r.str(name, "name")
	}
	if method, ok := top["method"]; ok {
		cfg.Method = r.str(method, "method")
	}
	if doc, ok := top["doc"]; ok {
		cfg.Doc = r.str(doc, "doc")
	}
	if v, ok := top["version"]; ok {
		n, err := jsonInteger(v)
		if err != nil {
			r.syntaxf("version", "version must be an integer")
		}
		cfg.Version = &n
	}
	if md, ok := top["metadata"]; ok {
		cfg.Metadata = map[string]string{}
		entries, _ := md.(map[string]any)
		for k, v := range entries {
			cfg.Metadata[k] = r.str(v, join("metadata", k))
		}
	}
	if opts, ok := top["options"]; ok {
		cfg.Options, _ = opts.(map[string]any)
	}

	if in, ok := top["input"]; ok {
		cfg.Input = r.typeDecl(in, "input")
	} else {
		r.syntaxf("", "missing \"input\"")
	}
	if out, ok := top["output"]; ok {
		cfg.Output = r.typeDecl(out, "output")
	} else {
		r.syntaxf("", "missing \"output\"")
	}

	if action, ok := top["action"]; ok {
		cfg.Action = r.block(action, "action")
	} else {
		r.syntaxf("", "missing \"action\"")
	}
	if begin, ok := top["begin"]; ok {
		cfg.Begin = r.block(begin, "begin")
	}
	if end, ok := top["end"]; ok {
		cfg.End = r.block(end, "end")
	}

	if fcns, ok := top["fcns"].(map[string]any); ok {
		for name, f := range fcns {
			at := join("fcns", name)
			if !validName.MatchString(name) {
				r.syntaxf(at, "invalid function name %q", name)
				continue
			}
			fm, _ := f.(map[string]any)
			if fm == nil || fm["params"] == nil {
				r.syntaxf(at, "a function needs params, ret and do")
				continue
			}
			cfg.Fcns[name] = r.fcnDef(stripAnnotations(fm), at)
		}
	}

	if cells, ok := top["cells"].(map[string]any); ok {
		for name, c := range cells {
			at := join("cells", name)
			cm, _ := c.(map[string]any)
			if cm == nil || cm["type"] == nil {
				r.syntaxf(at, "a cell needs a type and an init")
				continue
			}
			cfg.Cells[name] = &decl.CellDecl{
				NodeInfo: NodeInfo{At: at},
				Name:     name,
				Type:     r.typeDecl(cm["type"], join(at, "type")),
				Init:     cm["init"],
				Shared:   r.flag(cm["shared"], join(at, "shared")),
				Rollback: r.flag(cm["rollback"], join(at, "rollback")),
			}
		}
	}

	if pools, ok := top["pools"].(map[string]any); ok {
		for name, p := range pools {
			at := join("pools", name)
			pm, _ := p.(map[string]any)
			if pm == nil || pm["type"] == nil {
				r.syntaxf(at, "a pool needs a type")
				continue
			}
			init := map[string]any{}
			if raw, present := pm["init"]; present {
				if m, ok := raw.(map[string]any); ok {
					init = m
				} else {
					r.syntaxf(join(at, "init"), "pool init must be an object")
				}
			}
			cfg.Pools[name] = &decl.PoolDecl{
				NodeInfo: NodeInfo{At: at},
				Name:     name,
				Type:     r.typeDecl(pm["type"], join(at, "type")),
				Init:     init,
				Shared:   r.flag(pm["shared"], join(at, "shared")),
				Rollback: r.flag(pm["rollback"], join(at, "rollback")),
			}
		}
	}
	return cfg
}

// stripAnnotations drops "@" keys, which carry source positions and
// comments.
func stripAnnotations(m map[string]any) map[string]any {
	for k := range m {
		if strings.HasPrefix(k, "@") {
			delete(m, k)
		}
	}
	return m
}

func (r *reader) str(datum any, at string) string {
	s, ok := datum.(string)
	if !ok {
		r.syntaxf(at, "expected a string, got %v", datum)
	}
	return s
}

func (r *reader) flag(datum any, at string) bool {
	if datum == nil {
		return false
	}
	b, ok := datum.(bool)
	if !ok {
		r.syntaxf(at, "expected a boolean, got %v", datum)
	}
	return b
}

func (r *reader) name(datum any, at string) string {
	s := r.str(datum, at)
	if s != "" && !validName.MatchString(s) {
		r.syntaxf(at, "invalid symbol name %q", s)
	}
	return s
}

func (r *reader) typeDecl(datum any, at string) *TypeDecl {
	raw, err := json.Marshal(datum)
	if err != nil {
		r.syntaxf(at, "cannot encode type: %v", err)
	}
	return &TypeDecl{NodeInfo: NodeInfo{At: at}, Original: string(raw)}
}

// block reads a single expression or an array of them.
func (r *reader) block(datum any, at string) []Expr {
	items, ok := datum.([]any)
	if !ok {
		return []Expr{r.expr(datum, at)}
	}
	out := make([]Expr, len(items))
	for i, item := range items {
		out[i] = r.expr(item, join(at, i))
	}
	return out
}

func isStringLiteral(datum any) bool {
	items, ok := datum.([]any)
	if !ok || len(items) != 1 {
		return false
	}
	_, isStr := items[0].(string)
	return isStr
}

func (r *reader) bindings(datum any, at string) []Binding {
	m, ok := datum.(map[string]any)
	if !ok {
		r.syntaxf(at, "expected an object of name: expression pairs")
		return nil
	}
	out := make([]Binding, 0, len(m))
	for name, x := range m {
		bat := join(at, name)
		if !validName.MatchString(name) {
			r.syntaxf(bat, "invalid symbol name %q", name)
		}
		out = append(out, Binding{Name: name, Expr: r.expr(x, bat)})
	}
	return decl.SortBindings(out)
}

func (r *reader) path(datum any, at string) []*PathStep {
	items, ok := datum.([]any)
	if !ok {
		r.syntaxf(at, "path must be an array")
		return nil
	}
	out := make([]*PathStep, len(items))
	for i, item := range items {
		out[i] = &PathStep{Index: r.expr(item, join(at, i))}
	}
	return out
}

func (r *reader) optionalExpr(m map[string]any, key, at string) Expr {
	if x, ok := m[key]; ok {
		return r.expr(x, join(at, key))
	}
	return nil
}

func base(at string) decl.ExprBase {
	return decl.ExprBase{NodeInfo: NodeInfo{At: at}}
}

func (r *reader) expr(datum any, at string) Expr {
	switch d := datum.(type) {
	case nil:
		return &decl.Literal{ExprBase: base(at), Tag: decl.TypeTagNull}
	case bool:
		return &decl.Literal{ExprBase: base(at), Tag: decl.TypeTagBoolean, Value: d}
	case json.Number:
		return r.number(d, at)
	case float64:
		return &decl.Literal{ExprBase: base(at), Tag: decl.TypeTagDouble, Value: d}
	case string:
		if !validName.MatchString(d) {
			r.syntaxf(at, "invalid symbol reference %q (write string literals as [\"...\"])", d)
		}
		return &decl.Ref{ExprBase: base(at), Name: d}
	case []any:
		if isStringLiteral(d) {
			return &decl.Literal{ExprBase: base(at), Tag: decl.TypeTagString, Value: d[0].(string)}
		}
		r.syntaxf(at, "an array is only an expression when it holds one string")
	case map[string]any:
		return r.form(stripAnnotations(d), at)
	default:
		r.syntaxf(at, "unexpected %T", datum)
	}
	return &decl.Literal{ExprBase: base(at), Tag: decl.TypeTagNull}
}

func (r *reader) number(n json.Number, at string) Expr {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			tag := decl.TypeTagLong
			if i >= math.MinInt32 && i <= math.MaxInt32 {
				tag = decl.TypeTagInt
			}
			return &decl.Literal{ExprBase: base(at), Tag: tag, Value: i}
		}
	}
	f, err := n.Float64()
	if err != nil {
		r.syntaxf(at, "bad number %s", s)
	}
	return &decl.Literal{ExprBase: base(at), Tag: decl.TypeTagDouble, Value: f}
}

func jsonInteger(datum any) (int64, error) {
	n, ok := datum.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected an integer, got %v", datum)
	}
	return n.Int64()
}

func has(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

// allowed reports a syntax error for any key of m outside keys.
func (r *reader) allowed(m map[string]any, at string, keys ...string) {
	for k := range m {
		if !slices.Contains(keys, k) {
			r.syntaxf(at, "unexpected field %q", k)
		}
	}
}

// form reads an object expression.  The set of keys present decides which
// special form it is; any other single-key object is a function call.
func (r *reader) form(m map[string]any, at string) Expr {
	b := base(at)
	switch {
	case has(m, "int"), has(m, "long"):
		kind, tag := "int", decl.TypeTagInt
		if has(m, "long") {
			kind, tag = "long", decl.TypeTagLong
		}
		r.allowed(m, at, kind)
		n, err := jsonInteger(m[kind])
		if err != nil || (tag == decl.TypeTagInt && (n > math.MaxInt32 || n < math.MinInt32)) {
			r.syntaxf(at, "bad %s literal %v", kind, m[kind])
		}
		return &decl.Literal{ExprBase: b, Tag: tag, Value: n}

	case has(m, "float"), has(m, "double"):
		kind, tag := "float", decl.TypeTagFloat
		if has(m, "double") {
			kind, tag = "double", decl.TypeTagDouble
		}
		r.allowed(m, at, kind)
		f, err := decl.FromJSON(decl.PrimitiveType(tag), m[kind])
		if err != nil {
			r.syntaxf(at, "bad %s literal: %v", kind, err)
			return &decl.Literal{ExprBase: b, Tag: tag, Value: 0.0}
		}
		return &decl.Literal{ExprBase: b, Tag: tag, Value: f.Value}

	case has(m, "string"):
		r.allowed(m, at, "string")
		return &decl.Literal{ExprBase: b, Tag: decl.TypeTagString, Value: r.str(m["string"], at)}

	case has(m, "base64"):
		r.allowed(m, at, "base64")
		raw, err := base64.StdEncoding.DecodeString(r.str(m["base64"], at))
		if err != nil {
			r.syntaxf(at, "bad base64 literal: %v", err)
		}
		return &decl.Literal{ExprBase: b, Tag: decl.TypeTagBytes, Value: raw}

	case has(m, "type", "value"):
		r.allowed(m, at, "type", "value")
		return &decl.TypedLiteral{ExprBase: b, Type: r.typeDecl(m["type"], join(at, "type")), Datum: m["value"]}

	case has(m, "new"):
		r.allowed(m, at, "new", "type")
		if !has(m, "type") {
			r.syntaxf(at, "\"new\" needs a \"type\"")
		}
		td := r.typeDecl(m["type"], join(at, "type"))
		if items, isArray := m["new"].([]any); isArray {
			exprs := make([]Expr, len(items))
			for i, item := range items {
				exprs[i] = r.expr(item, join(join(at, "new"), i))
			}
			return &decl.NewArray{ExprBase: b, Type: td, Items: exprs}
		}
		return &decl.NewObject{ExprBase: b, Type: td, Fields: r.bindings(m["new"], join(at, "new"))}

	case has(m, "params"):
		r.allowed(m, at, "params", "ret", "do")
		return r.fcnDef(m, at)

	case has(m, "fcn"):
		r.allowed(m, at, "fcn")
		return &decl.FcnRef{ExprBase: b, Name: r.str(m["fcn"], at)}

	case has(m, "let"):
		r.allowed(m, at, "let")
		return &decl.Let{ExprBase: b, Bindings: r.bindings(m["let"], join(at, "let"))}

	case has(m, "set"):
		r.allowed(m, at, "set")
		return &decl.Set{ExprBase: b, Bindings: r.bindings(m["set"], join(at, "set"))}

	case has(m, "attr"):
		r.allowed(m, at, "attr", "path", "to")
		if !has(m, "path") {
			r.syntaxf(at, "\"attr\" needs a \"path\"")
		}
		return &decl.Attr{ExprBase: b, Expr: r.expr(m["attr"], join(at, "attr")),
			Path: r.path(m["path"], join(at, "path")), To: r.optionalExpr(m, "to", at)}

	case has(m, "cell"):
		r.allowed(m, at, "cell", "path", "to")
		var path []*PathStep
		if has(m, "path") {
			path = r.path(m["path"], join(at, "path"))
		}
		return &decl.CellAccess{ExprBase: b, Cell: r.str(m["cell"], at), Path: path, To: r.optionalExpr(m, "to", at)}

	case has(m, "pool"):
		r.allowed(m, at, "pool", "path", "to", "init")
		if !has(m, "path") {
			r.syntaxf(at, "\"pool\" needs a \"path\" starting with the key")
		}
		return &decl.PoolAccess{ExprBase: b, Pool: r.str(m["pool"], at), Path: r.path(m["path"], join(at, "path")),
			To: r.optionalExpr(m, "to", at), Init: r.optionalExpr(m, "init", at)}

	case has(m, "if"):
		r.allowed(m, at, "if", "then", "else")
		return r.ifForm(m, at)

	case has(m, "cond"):
		r.allowed(m, at, "cond", "else")
		clauses, ok := m["cond"].([]any)
		if !ok || len(clauses) == 0 {
			r.syntaxf(at, "\"cond\" needs a non-empty array of if/then clauses")
		}
		c := &decl.Cond{ExprBase: b}
		for i, clause := range clauses {
			cat := join(join(at, "cond"), i)
			cm, ok := clause.(map[string]any)
			if !ok || !has(cm, "if", "then") {
				r.syntaxf(cat, "each cond clause needs \"if\" and \"then\"")
				continue
			}
			cm = stripAnnotations(cm)
			r.allowed(cm, cat, "if", "then")
			c.Ifs = append(c.Ifs, r.ifForm(cm, cat))
		}
		if has(m, "else") {
			c.Else = r.block(m["else"], join(at, "else"))
		}
		return c

	case has(m, "for"):
		r.allowed(m, at, "for", "while", "until", "step", "do")
		f := &decl.For{ExprBase: b, Init: r.bindings(m["for"], join(at, "for")),
			Step: r.bindings(m["step"], join(at, "step")), Body: r.block(m["do"], join(at, "do"))}
		switch {
		case has(m, "while"):
			f.Cond = r.expr(m["while"], join(at, "while"))
		case has(m, "until"):
			f.Cond, f.Until = r.expr(m["until"], join(at, "until")), true
		default:
			r.syntaxf(at, "\"for\" needs \"while\" or \"until\"")
			f.Cond = &decl.Literal{ExprBase: b, Tag: decl.TypeTagBoolean, Value: false}
		}
		return f

	case has(m, "foreach"):
		r.allowed(m, at, "foreach", "in", "do", "seq")
		return &decl.Foreach{ExprBase: b, Name: r.name(m["foreach"], join(at, "foreach")),
			Array: r.expr(m["in"], join(at, "in")), Body: r.block(m["do"], join(at, "do")),
			Seq: r.flag(m["seq"], join(at, "seq"))}

	case has(m, "forkey"), has(m, "forval"):
		r.allowed(m, at, "forkey", "forval", "in", "do")
		if !has(m, "forkey", "forval", "in") {
			r.syntaxf(at, "\"forkey\" needs \"forval\" and \"in\"")
		}
		return &decl.Forkeyval{ExprBase: b, Key: r.name(m["forkey"], join(at, "forkey")),
			Val: r.name(m["forval"], join(at, "forval")), Map: r.expr(m["in"], join(at, "in")),
			Body: r.block(m["do"], join(at, "do"))}

	case has(m, "while"):
		r.allowed(m, at, "while", "do")
		return &decl.While{ExprBase: b, Cond: r.expr(m["while"], join(at, "while")), Body: r.block(m["do"], join(at, "do"))}

	case has(m, "until"):
		r.allowed(m, at, "do", "until")
		return &decl.DoUntil{ExprBase: b, Body: r.block(m["do"], join(at, "do")), Cond: r.expr(m["until"], join(at, "until"))}

	case has(m, "do"):
		r.allowed(m, at, "do")
		return &decl.Do{ExprBase: b, Body: r.block(m["do"], join(at, "do"))}

	case has(m, "cast"):
		r.allowed(m, at, "cast", "cases", "partial")
		c := &decl.CastBlock{ExprBase: b, Expr: r.expr(m["cast"], join(at, "cast")), Partial: r.flag(m["partial"], join(at, "partial"))}
		cases, ok := m["cases"].([]any)
		if !ok || len(cases) == 0 {
			r.syntaxf(at, "\"cast\" needs a non-empty \"cases\" array")
		}
		for i, raw := range cases {
			cat := join(join(at, "cases"), i)
			cm, ok := raw.(map[string]any)
			if !ok || !has(cm, "as", "named", "do") {
				r.syntaxf(cat, "each case needs \"as\", \"named\" and \"do\"")
				continue
			}
			c.Cases = append(c.Cases, &decl.CastCase{Type: r.typeDecl(cm["as"], join(cat, "as")),
				Name: r.name(cm["named"], join(cat, "named")), Body: r.block(cm["do"], join(cat, "do"))})
		}
		return c

	case has(m, "upcast"):
		r.allowed(m, at, "upcast", "as")
		return &decl.Upcast{ExprBase: b, Expr: r.expr(m["upcast"], join(at, "upcast")), Type: r.typeDecl(m["as"], join(at, "as"))}

	case has(m, "doc"):
		r.allowed(m, at, "doc")
		return &decl.Doc{ExprBase: b, Text: r.str(m["doc"], at)}

	case has(m, "error"):
		r.allowed(m, at, "error", "code")
		e := &decl.Error{ExprBase: b, Message: r.str(m["error"], at)}
		if has(m, "code") {
			code, err := jsonInteger(m["code"])
			if err != nil {
				r.syntaxf(join(at, "code"), "error code must be an integer")
			}
			e.Code = &code
		}
		return e

	case has(m, "log"):
		r.allowed(m, at, "log", "namespace")
		l := &decl.Log{ExprBase: b, Exprs: r.block(m["log"], join(at, "log"))}
		if has(m, "namespace") {
			l.Namespace = r.str(m["namespace"], join(at, "namespace"))
		}
		return l
	}

	if len(m) != 1 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		r.syntaxf(at, "unrecognized special form with fields %v", keys)
		return &decl.Literal{ExprBase: b, Tag: decl.TypeTagNull}
	}
	for name, args := range m {
		cat := join(at, name)
		call := &decl.Call{ExprBase: b, Name: name}
		if items, ok := args.([]any); ok {
			for i, item := range items {
				call.Args = append(call.Args, r.expr(item, join(cat, i)))
			}
		} else {
			call.Args = []Expr{r.expr(args, cat)}
		}
		return call
	}
	return nil
}

func (r *reader) ifForm(m map[string]any, at string) *decl.If {
	out := &decl.If{ExprBase: base(at), Cond: r.expr(m["if"], join(at, "if"))}
	if !has(m, "then") {
		r.syntaxf(at, "\"if\" needs a \"then\"")
	} else {
		out.Then = r.block(m["then"], join(at, "then"))
	}
	if has(m, "else") {
		out.Else = r.block(m["else"], join(at, "else"))
	}
	return out
}

func (r *reader) fcnDef(m map[string]any, at string) *decl.FcnDef {
	f := &decl.FcnDef{ExprBase: base(at)}
	params, ok := m["params"].([]any)
	if !ok {
		r.syntaxf(at, "\"params\" must be an array of {name: type} objects")
	}
	for i, p := range params {
		pat := join(join(at, "params"), i)
		pm, ok := p.(map[string]any)
		if !ok || len(pm) != 1 {
			r.syntaxf(pat, "each parameter must be a single {name: type} object")
			continue
		}
		for name, t := range pm {
			if !validName.MatchString(name) {
				r.syntaxf(pat, "invalid parameter name %q", name)
			}
			f.Params = append(f.Params, decl.FcnParam{Name: name, Type: r.typeDecl(t, join(pat, name))})
		}
	}
	if !has(m, "ret", "do") {
		r.syntaxf(at, "a function needs \"ret\" and \"do\"")
		f.Ret = &TypeDecl{NodeInfo: NodeInfo{At: at}, Original: `"null"`}
		return f
	}
	f.Ret = r.typeDecl(m["ret"], join(at, "ret"))
	f.Body = r.block(m["do"], join(at, "do"))
	return f
}
