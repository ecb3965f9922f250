package loader

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/panyam/pfa/decl"
)

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type unknownTypeName struct{ name string }

func (e *unknownTypeName) Error() string { return fmt.Sprintf("unknown type name %q", e.name) }

// ForwardDeclarationParser resolves a batch of type declarations that may
// refer to each other in any order.  Named types defined by one declaration
// become visible to all the others.
type ForwardDeclarationParser struct {
	names map[string]*Type
}

func NewForwardDeclarationParser() *ForwardDeclarationParser {
	return &ForwardDeclarationParser{names: map[string]*Type{}}
}

// Lookup returns a named type registered by an earlier Parse.
func (p *ForwardDeclarationParser) Lookup(fullName string) (*Type, bool) {
	t, ok := p.names[fullName]
	return t, ok
}

// Parse resolves every original (JSON text) and returns its type, keyed by
// the original text.  Each pass retries the declarations that failed; parsing
// stops when all are resolved or when a pass resolves none of the remaining
// ones, in which case each leftover is reported with its own error.
func (p *ForwardDeclarationParser) Parse(originals []string) (map[string]*Type, error) {
	out := map[string]*Type{}
	var unresolved []string
	seen := map[string]bool{}
	for _, o := range originals {
		if !seen[o] {
			seen[o] = true
			unresolved = append(unresolved, o)
		}
	}

	lastErrors := map[string]error{}
	for len(unresolved) > 0 {
		var remaining []string
		for _, original := range unresolved {
			t, err := p.attempt(original)
			if err != nil {
				lastErrors[original] = err
				remaining = append(remaining, original)
				continue
			}
			out[original] = t
		}
		if len(remaining) == len(unresolved) {
			perr := &SchemaParseError{}
			for _, original := range remaining {
				perr.Failures = append(perr.Failures, SchemaFailure{Original: original, Err: lastErrors[original]})
			}
			return out, perr
		}
		unresolved = remaining
	}
	return out, nil
}

// attempt parses one declaration.  Names it registered are withdrawn if it
// fails so that a later pass starts from a clean table.
func (p *ForwardDeclarationParser) attempt(original string) (*Type, error) {
	var datum any
	dec := json.NewDecoder(strings.NewReader(original))
	dec.UseNumber()
	if err := dec.Decode(&datum); err != nil {
		return nil, fmt.Errorf("malformed type: %w", err)
	}

	sp := &schemaParser{table: p.names}
	t, err := sp.parse(datum, "")
	if err != nil {
		for _, name := range sp.added {
			delete(p.names, name)
		}
		return nil, err
	}
	return t, nil
}

type schemaParser struct {
	table map[string]*Type
	added []string
}

func (sp *schemaParser) lookup(name, namespace string) (*Type, error) {
	if tag, ok := decl.PrimitiveTag(name); ok {
		return decl.PrimitiveType(tag), nil
	}
	if namespace != "" && !strings.Contains(name, ".") {
		if t, ok := sp.table[namespace+"."+name]; ok {
			return t, nil
		}
	}
	if t, ok := sp.table[name]; ok {
		return t, nil
	}
	return nil, &unknownTypeName{name}
}

func (sp *schemaParser) parse(datum any, namespace string) (*Type, error) {
	switch d := datum.(type) {
	case string:
		return sp.lookup(d, namespace)

	case []any:
		members := make([]*Type, len(d))
		branches := map[string]bool{}
		for i, m := range d {
			t, err := sp.parse(m, namespace)
			if err != nil {
				return nil, err
			}
			if t.Tag == decl.TypeTagUnion {
				return nil, fmt.Errorf("unions may not directly contain unions")
			}
			if branches[t.BranchName()] {
				return nil, fmt.Errorf("duplicate %s in union", t.BranchName())
			}
			branches[t.BranchName()] = true
			members[i] = t
		}
		if len(members) == 0 {
			return nil, fmt.Errorf("empty union")
		}
		return decl.UnionType(members...), nil

	case map[string]any:
		return sp.parseObject(d, namespace)
	}
	return nil, fmt.Errorf("not a type: %v", datum)
}

func (sp *schemaParser) parseObject(d map[string]any, namespace string) (*Type, error) {
	kind, ok := d["type"].(string)
	if !ok {
		if inner, present := d["type"]; present {
			return sp.parse(inner, namespace)
		}
		return nil, fmt.Errorf("type object has no \"type\"")
	}

	switch kind {
	case "array":
		items, present := d["items"]
		if !present {
			return nil, fmt.Errorf("array type needs \"items\"")
		}
		t, err := sp.parse(items, namespace)
		if err != nil {
			return nil, err
		}
		return decl.ArrayType(t), nil

	case "map":
		values, present := d["values"]
		if !present {
			return nil, fmt.Errorf("map type needs \"values\"")
		}
		t, err := sp.parse(values, namespace)
		if err != nil {
			return nil, err
		}
		return decl.MapType(t), nil

	case "record", "enum", "fixed":
		return sp.parseNamed(kind, d, namespace)
	}
	return sp.lookup(kind, namespace)
}

func (sp *schemaParser) parseNamed(kind string, d map[string]any, namespace string) (*Type, error) {
	name, _ := d["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("%s type needs a \"name\"", kind)
	}
	if ns, ok := d["namespace"].(string); ok {
		namespace = ns
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		namespace, name = name[:i], name[i+1:]
	}
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("invalid type name %q", name)
	}

	t := &Type{Name: name, Namespace: namespace}
	if doc, ok := d["doc"].(string); ok {
		t.Doc = doc
	}
	fullName := t.FullName()
	existing, redefined := sp.table[fullName]
	if !redefined {
		// reserve the name so the body may refer to it
		sp.table[fullName] = t
		sp.added = append(sp.added, fullName)
	}

	var err error
	switch kind {
	case "record":
		t.Tag = decl.TypeTagRecord
		err = sp.parseFields(t, d["fields"], namespace)
	case "enum":
		t.Tag = decl.TypeTagEnum
		err = parseSymbols(t, d["symbols"])
	case "fixed":
		t.Tag = decl.TypeTagFixed
		var size int64
		size, err = jsonSize(d["size"])
		t.Size = int(size)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", kind, fullName, err)
	}

	if redefined {
		if !decl.SameStructure(existing, t) {
			return nil, fmt.Errorf("type %s is defined twice with different structure", fullName)
		}
		return existing, nil
	}
	return t, nil
}

func (sp *schemaParser) parseFields(t *Type, raw any, namespace string) error {
	fields, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("record needs a \"fields\" array")
	}
	seen := map[string]bool{}
	for _, rf := range fields {
		fd, ok := rf.(map[string]any)
		if !ok {
			return fmt.Errorf("record field must be an object, got %v", rf)
		}
		name, _ := fd["name"].(string)
		if !validName.MatchString(name) {
			return fmt.Errorf("invalid field name %q", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate field %q", name)
		}
		seen[name] = true
		ft, err := sp.parse(fd["type"], namespace)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		field := &decl.Field{Name: name, Type: ft}
		if doc, ok := fd["doc"].(string); ok {
			field.Doc = doc
		}
		if def, present := fd["default"]; present {
			field.Default, field.HasDefault = def, true
		}
		t.Fields = append(t.Fields, field)
	}
	for _, f := range t.Fields {
		if f.HasDefault {
			if _, err := decl.FromJSON(f.Type, f.Default); err != nil {
				return fmt.Errorf("default of field %q: %w", f.Name, err)
			}
		}
	}
	return nil
}

func parseSymbols(t *Type, raw any) error {
	symbols, ok := raw.([]any)
	if !ok || len(symbols) == 0 {
		return fmt.Errorf("enum needs a non-empty \"symbols\" array")
	}
	for _, s := range symbols {
		name, _ := s.(string)
		if !validName.MatchString(name) {
			return fmt.Errorf("invalid enum symbol %v", s)
		}
		if t.SymbolIndex(name) >= 0 {
			return fmt.Errorf("duplicate enum symbol %q", name)
		}
		t.Symbols = append(t.Symbols, name)
	}
	return nil
}

func jsonSize(raw any) (int64, error) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("fixed needs an integer \"size\"")
	}
	size, err := n.Int64()
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("invalid fixed size %v", raw)
	}
	return size, nil
}
