package decl

import (
	"fmt"
	"strings"

	gfn "github.com/panyam/goutils/fn"
)

// PatternField is a named field requirement inside a record pattern.
type PatternField struct {
	Name    string
	Pattern *Pattern
}

// Pattern mirrors Type for use in library signatures, with two extra variants:
// Wildcard (any type, optionally restricted to OneOf) and WildRecord (any record
// carrying at least the given fields).  Both bind their Label to the concrete
// type they matched.
type Pattern struct {
	Tag TypeTag

	Items    *Pattern
	Values   *Pattern
	Members  []*Pattern
	FullName string // Fixed/Enum/Record: empty means "match by shape"
	Size     int
	Symbols  []string
	Fields   []PatternField
	Params   []*Pattern
	Ret      *Pattern

	Label string
	OneOf []*Type
}

var (
	PNull    = &Pattern{Tag: TypeTagNull}
	PBoolean = &Pattern{Tag: TypeTagBoolean}
	PInt     = &Pattern{Tag: TypeTagInt}
	PLong    = &Pattern{Tag: TypeTagLong}
	PFloat   = &Pattern{Tag: TypeTagFloat}
	PDouble  = &Pattern{Tag: TypeTagDouble}
	PBytes   = &Pattern{Tag: TypeTagBytes}
	PString  = &Pattern{Tag: TypeTagString}
)

// AnyNumber is the usual restriction for arithmetic wildcards.
var AnyNumber = []*Type{IntType, LongType, FloatType, DoubleType}

func PArray(items *Pattern) *Pattern { return &Pattern{Tag: TypeTagArray, Items: items} }
func PMap(values *Pattern) *Pattern  { return &Pattern{Tag: TypeTagMap, Values: values} }
func PUnion(members ...*Pattern) *Pattern {
	return &Pattern{Tag: TypeTagUnion, Members: members}
}
func PFixed(size int, fullName string) *Pattern {
	return &Pattern{Tag: TypeTagFixed, Size: size, FullName: fullName}
}
func PEnum(fullName string, symbols ...string) *Pattern {
	return &Pattern{Tag: TypeTagEnum, FullName: fullName, Symbols: symbols}
}
func PRecord(fullName string, fields ...PatternField) *Pattern {
	return &Pattern{Tag: TypeTagRecord, FullName: fullName, Fields: fields}
}
func PFcn(params []*Pattern, ret *Pattern) *Pattern {
	return &Pattern{Tag: TypeTagFunction, Params: params, Ret: ret}
}
func PWildcard(label string, oneOf ...*Type) *Pattern {
	return &Pattern{Tag: TypeTagWildcard, Label: label, OneOf: oneOf}
}
func PWildRecord(label string, fields ...PatternField) *Pattern {
	return &Pattern{Tag: TypeTagWildRecord, Label: label, Fields: fields}
}

// PatternFromType turns a concrete type into the pattern matching exactly it.
func PatternFromType(t *Type) *Pattern {
	switch t.Tag {
	case TypeTagArray:
		return PArray(PatternFromType(t.Items))
	case TypeTagMap:
		return PMap(PatternFromType(t.Values))
	case TypeTagUnion:
		return PUnion(gfn.Map(t.Members, PatternFromType)...)
	case TypeTagFixed:
		return PFixed(t.Size, t.FullName())
	case TypeTagEnum:
		return PEnum(t.FullName(), t.Symbols...)
	case TypeTagRecord:
		fields := make([]PatternField, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = PatternField{f.Name, PatternFromType(f.Type)}
		}
		return PRecord(t.FullName(), fields...)
	case TypeTagFunction:
		return PFcn(gfn.Map(t.Params, PatternFromType), PatternFromType(t.Ret))
	case TypeTagException:
		return &Pattern{Tag: TypeTagException}
	}
	return &Pattern{Tag: t.Tag}
}

// ToType materializes a label-free pattern.  Anonymous named types get fresh
// names from the allocator.
func (p *Pattern) ToType(names *NameAllocator) *Type {
	if names == nil {
		names = DefaultNames
	}
	switch p.Tag {
	case TypeTagArray:
		return ArrayType(p.Items.ToType(names))
	case TypeTagMap:
		return MapType(p.Values.ToType(names))
	case TypeTagUnion:
		return UnionType(gfn.Map(p.Members, func(m *Pattern) *Type { return m.ToType(names) })...)
	case TypeTagFixed:
		name, ns := splitFullName(p.FullName, names, "Fixed")
		return FixedType(name, ns, p.Size)
	case TypeTagEnum:
		name, ns := splitFullName(p.FullName, names, "Enum")
		return EnumType(name, ns, p.Symbols...)
	case TypeTagRecord:
		name, ns := splitFullName(p.FullName, names, "Record")
		fields := make([]*Field, len(p.Fields))
		for i, f := range p.Fields {
			fields[i] = &Field{Name: f.Name, Type: f.Pattern.ToType(names)}
		}
		return RecordType(name, ns, fields...)
	case TypeTagFunction:
		return FunctionType(gfn.Map(p.Params, func(m *Pattern) *Type { return m.ToType(names) }), p.Ret.ToType(names))
	case TypeTagException:
		return ExceptionType
	case TypeTagWildcard, TypeTagWildRecord:
		panic(fmt.Sprintf("cannot materialize unbound label %s", p.Label))
	}
	return PrimitiveType(p.Tag)
}

func splitFullName(fullName string, names *NameAllocator, class string) (name, namespace string) {
	if fullName == "" {
		return names.NextID(class), ""
	}
	if i := strings.LastIndex(fullName, "."); i >= 0 {
		return fullName[i+1:], fullName[:i]
	}
	return fullName, ""
}

func (p *Pattern) String() string {
	if name, ok := primitiveNames[p.Tag]; ok {
		return name
	}
	switch p.Tag {
	case TypeTagArray:
		return fmt.Sprintf("array of %s", p.Items)
	case TypeTagMap:
		return fmt.Sprintf("map of %s", p.Values)
	case TypeTagUnion:
		return fmt.Sprintf("union of {%s}", strings.Join(gfn.Map(p.Members, (*Pattern).String), ", "))
	case TypeTagFixed:
		if p.FullName != "" {
			return p.FullName
		}
		return fmt.Sprintf("fixed(%d)", p.Size)
	case TypeTagEnum:
		if p.FullName != "" {
			return p.FullName
		}
		return fmt.Sprintf("enum(%s)", strings.Join(p.Symbols, ", "))
	case TypeTagRecord, TypeTagWildRecord:
		fields := gfn.Map(p.Fields, func(f PatternField) string { return f.Name + ": " + f.Pattern.String() })
		if p.Tag == TypeTagWildRecord {
			return fmt.Sprintf("any record %s with {%s}", p.Label, strings.Join(fields, ", "))
		}
		if p.FullName != "" {
			return p.FullName
		}
		return fmt.Sprintf("record {%s}", strings.Join(fields, ", "))
	case TypeTagFunction:
		return fmt.Sprintf("function of (%s) -> %s", strings.Join(gfn.Map(p.Params, (*Pattern).String), ", "), p.Ret)
	case TypeTagWildcard:
		if len(p.OneOf) > 0 {
			return fmt.Sprintf("any %s of {%s}", p.Label, strings.Join(gfn.Map(p.OneOf, (*Type).String), ", "))
		}
		return "any " + p.Label
	case TypeTagException:
		return "exception"
	}
	return "unknown"
}

func (p *Pattern) IsNumeric() bool {
	return p.Tag >= TypeTagInt && p.Tag <= TypeTagDouble
}
