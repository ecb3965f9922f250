package decl

import (
	"fmt"
	"strconv"
	"strings"

	gfn "github.com/panyam/goutils/fn"
)

type TypeTag int

const (
	TypeTagUnknown TypeTag = iota
	TypeTagNull
	TypeTagBoolean
	TypeTagInt
	TypeTagLong
	TypeTagFloat
	TypeTagDouble
	TypeTagBytes
	TypeTagString
	TypeTagArray
	TypeTagMap
	TypeTagRecord
	TypeTagEnum
	TypeTagFixed
	TypeTagUnion
	TypeTagFunction

	// The type of an expression that never produces a value (an "error" node).
	// It is accepted by every reader and dropped when branch types are unified.
	TypeTagException

	// Only valid inside a Pattern
	TypeTagWildcard
	TypeTagWildRecord
)

var primitiveNames = map[TypeTag]string{
	TypeTagNull:    "null",
	TypeTagBoolean: "boolean",
	TypeTagInt:     "int",
	TypeTagLong:    "long",
	TypeTagFloat:   "float",
	TypeTagDouble:  "double",
	TypeTagBytes:   "bytes",
	TypeTagString:  "string",
}

// PrimitiveTag returns the tag for an Avro primitive type name.
func PrimitiveTag(name string) (TypeTag, bool) {
	for tag, n := range primitiveNames {
		if n == name {
			return tag, true
		}
	}
	return TypeTagUnknown, false
}

// Field is a single field of a record type.
type Field struct {
	Name       string
	Type       *Type
	Default    any // JSON datum, only meaningful when HasDefault is set
	HasDefault bool
	Doc        string
}

// Type is the structural schema type of a value.  Records, enums and fixed types
// are identified by their full name; everything else is compared by shape.
// Types are immutable once the resolver has handed them out.
type Type struct {
	Tag       TypeTag
	Name      string
	Namespace string
	Doc       string

	Items   *Type    // Array
	Values  *Type    // Map
	Fields  []*Field // Record
	Symbols []string // Enum
	Size    int      // Fixed
	Members []*Type  // Union
	Params  []*Type  // Function
	Ret     *Type    // Function
}

// --- Factory functions ---

var (
	// Singletons for the primitive types
	NullType      = &Type{Tag: TypeTagNull}
	BooleanType   = &Type{Tag: TypeTagBoolean}
	IntType       = &Type{Tag: TypeTagInt}
	LongType      = &Type{Tag: TypeTagLong}
	FloatType     = &Type{Tag: TypeTagFloat}
	DoubleType    = &Type{Tag: TypeTagDouble}
	BytesType     = &Type{Tag: TypeTagBytes}
	StringType    = &Type{Tag: TypeTagString}
	ExceptionType = &Type{Tag: TypeTagException}
)

// PrimitiveType returns the singleton for a primitive tag.
func PrimitiveType(tag TypeTag) *Type {
	switch tag {
	case TypeTagNull:
		return NullType
	case TypeTagBoolean:
		return BooleanType
	case TypeTagInt:
		return IntType
	case TypeTagLong:
		return LongType
	case TypeTagFloat:
		return FloatType
	case TypeTagDouble:
		return DoubleType
	case TypeTagBytes:
		return BytesType
	case TypeTagString:
		return StringType
	}
	panic(fmt.Sprintf("not a primitive type tag: %d", tag))
}

func ArrayType(items *Type) *Type {
	if items == nil {
		panic("Array items type cannot be nil")
	}
	return &Type{Tag: TypeTagArray, Items: items}
}

func MapType(values *Type) *Type {
	if values == nil {
		panic("Map values type cannot be nil")
	}
	return &Type{Tag: TypeTagMap, Values: values}
}

func UnionType(members ...*Type) *Type {
	if len(members) == 0 {
		panic("Union must have at least one member")
	}
	return &Type{Tag: TypeTagUnion, Members: members}
}

func FunctionType(params []*Type, ret *Type) *Type {
	return &Type{Tag: TypeTagFunction, Params: params, Ret: ret}
}

func RecordType(name, namespace string, fields ...*Field) *Type {
	return &Type{Tag: TypeTagRecord, Name: name, Namespace: namespace, Fields: fields}
}

func EnumType(name, namespace string, symbols ...string) *Type {
	return &Type{Tag: TypeTagEnum, Name: name, Namespace: namespace, Symbols: symbols}
}

func FixedType(name, namespace string, size int) *Type {
	return &Type{Tag: TypeTagFixed, Name: name, Namespace: namespace, Size: size}
}

// --- Queries ---

// FullName is the namespace qualified name of a named type.
func (t *Type) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

func (t *Type) IsNamed() bool {
	return t.Tag == TypeTagRecord || t.Tag == TypeTagEnum || t.Tag == TypeTagFixed
}

func (t *Type) IsNumeric() bool {
	return t.Tag >= TypeTagInt && t.Tag <= TypeTagDouble
}

// numericRank orders Int < Long < Float < Double.
func numericRank(tag TypeTag) int {
	return int(tag - TypeTagInt)
}

// Field returns the record field with the given name or nil.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// SymbolIndex returns the position of an enum symbol or -1.
func (t *Type) SymbolIndex(symbol string) int {
	for i, s := range t.Symbols {
		if s == symbol {
			return i
		}
	}
	return -1
}

// HasMember reports whether a union (or a plain type) contains a member of the given tag.
func (t *Type) HasMember(tag TypeTag) bool {
	if t.Tag != TypeTagUnion {
		return t.Tag == tag
	}
	for _, m := range t.Members {
		if m.Tag == tag {
			return true
		}
	}
	return false
}

// BranchName is the name used for this type as a union branch in the JSON encoding.
func (t *Type) BranchName() string {
	if name, ok := primitiveNames[t.Tag]; ok {
		return name
	}
	switch t.Tag {
	case TypeTagArray:
		return "array"
	case TypeTagMap:
		return "map"
	case TypeTagRecord, TypeTagEnum, TypeTagFixed:
		return t.FullName()
	}
	return "unknown"
}

// Equals checks if two types are equivalent.  Named types compare by full name.
func (t *Type) Equals(other *Type) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil || t.Tag != other.Tag {
		return false
	}
	switch t.Tag {
	case TypeTagArray:
		return t.Items.Equals(other.Items)
	case TypeTagMap:
		return t.Values.Equals(other.Values)
	case TypeTagRecord, TypeTagEnum, TypeTagFixed:
		return t.FullName() == other.FullName()
	case TypeTagUnion:
		if len(t.Members) != len(other.Members) {
			return false
		}
		for i, m := range t.Members {
			if !m.Equals(other.Members[i]) {
				return false
			}
		}
		return true
	case TypeTagFunction:
		if len(t.Params) != len(other.Params) || !t.Ret.Equals(other.Ret) {
			return false
		}
		for i, p := range t.Params {
			if !p.Equals(other.Params[i]) {
				return false
			}
		}
		return true
	}
	return true
}

// SameStructure checks that two definitions carrying the same name describe the
// same type.  Nested named types are compared by name only, which keeps the
// check finite for recursive records.
func SameStructure(a, b *Type) bool {
	if a.Tag != b.Tag || a.FullName() != b.FullName() {
		return false
	}
	switch a.Tag {
	case TypeTagEnum:
		if len(a.Symbols) != len(b.Symbols) {
			return false
		}
		for i, s := range a.Symbols {
			if b.Symbols[i] != s {
				return false
			}
		}
		return true
	case TypeTagFixed:
		return a.Size == b.Size
	case TypeTagRecord:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i, f := range a.Fields {
			g := b.Fields[i]
			if f.Name != g.Name || !f.Type.Equals(g.Type) {
				return false
			}
		}
		return true
	}
	return a.Equals(b)
}

// String renders the type in its Avro JSON form.  A named type is written out in
// full the first time it appears and by name afterwards.
func (t *Type) String() string {
	var sb strings.Builder
	t.render(&sb, map[string]bool{})
	return sb.String()
}

func (t *Type) render(sb *strings.Builder, seen map[string]bool) {
	if t == nil {
		sb.WriteString(`"<nil_type>"`)
		return
	}
	if name, ok := primitiveNames[t.Tag]; ok {
		sb.WriteString(strconv.Quote(name))
		return
	}
	switch t.Tag {
	case TypeTagArray:
		sb.WriteString(`{"type": "array", "items": `)
		t.Items.render(sb, seen)
		sb.WriteString("}")
	case TypeTagMap:
		sb.WriteString(`{"type": "map", "values": `)
		t.Values.render(sb, seen)
		sb.WriteString("}")
	case TypeTagRecord, TypeTagEnum, TypeTagFixed:
		if seen[t.FullName()] {
			sb.WriteString(strconv.Quote(t.FullName()))
			return
		}
		seen[t.FullName()] = true
		fmt.Fprintf(sb, `{"type": %q, "name": %q`, t.BranchKind(), t.Name)
		if t.Namespace != "" {
			fmt.Fprintf(sb, `, "namespace": %q`, t.Namespace)
		}
		switch t.Tag {
		case TypeTagFixed:
			fmt.Fprintf(sb, `, "size": %d}`, t.Size)
		case TypeTagEnum:
			sb.WriteString(`, "symbols": [`)
			sb.WriteString(strings.Join(gfn.Map(t.Symbols, strconv.Quote), ", "))
			sb.WriteString("]}")
		default:
			sb.WriteString(`, "fields": [`)
			for i, f := range t.Fields {
				if i > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(sb, `{"name": %q, "type": `, f.Name)
				f.Type.render(sb, seen)
				sb.WriteString("}")
			}
			sb.WriteString("]}")
		}
	case TypeTagUnion:
		sb.WriteString("[")
		for i, m := range t.Members {
			if i > 0 {
				sb.WriteString(", ")
			}
			m.render(sb, seen)
		}
		sb.WriteString("]")
	case TypeTagFunction:
		sb.WriteString(`{"type": "function", "params": [`)
		for i, p := range t.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			p.render(sb, seen)
		}
		sb.WriteString(`], "ret": `)
		t.Ret.render(sb, seen)
		sb.WriteString("}")
	case TypeTagException:
		sb.WriteString(`{"type": "exception"}`)
	default:
		sb.WriteString(`"unknown"`)
	}
}

// BranchKind is the Avro "type" keyword for a complex type.
func (t *Type) BranchKind() string {
	switch t.Tag {
	case TypeTagRecord:
		return "record"
	case TypeTagEnum:
		return "enum"
	case TypeTagFixed:
		return "fixed"
	case TypeTagArray:
		return "array"
	case TypeTagMap:
		return "map"
	case TypeTagFunction:
		return "function"
	}
	return t.BranchName()
}
