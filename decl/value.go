package decl

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
)

// EnumSymbol is the runtime form of an enum value.
type EnumSymbol string

// RecordValue holds the fields of a record by name.  The field order is
// given by the record's type.
type RecordValue struct {
	Fields map[string]Value
}

// FcnValue is a callable: a user function, a function literal or a
// reference to a library function.
type FcnValue struct {
	Name string
	Call func(args []Value) Value
}

// Value wraps a Go value with its type definition.  The type is always the
// concrete runtime type, never a union: a value stored in a union slot keeps
// the type of the branch it belongs to.
type Value struct {
	Type  *Type
	Value any // The underlying Go value
}

// NewValue creates a new boxed value, optionally initializing and type-checking.
// If initialValue is provided, Set() is called. Only the first initialValue is used.
func NewValue(t *Type, initialValue ...any) (Value, error) {
	if t == nil {
		panic("Value type cannot be nil")
	}
	rv := Value{Type: t}
	if len(initialValue) > 0 {
		if err := rv.Set(initialValue[0]); err != nil {
			return rv, fmt.Errorf("failed to initialize Value: %w", err)
		}
	}
	return rv, nil
}

func (r Value) IsNil() bool {
	return r.Value == nil
}

// Set checks that v is the Go representation for r.Type and stores it.
func (r *Value) Set(v any) error {
	if r.Type == nil {
		return fmt.Errorf("internal error: Value has nil type")
	}
	mismatch := func() error {
		return fmt.Errorf("type mismatch: expected %s, got %T", r.Type.BranchName(), v)
	}

	switch r.Type.Tag {
	case TypeTagNull:
		if v != nil {
			return mismatch()
		}
	case TypeTagBoolean:
		if _, ok := v.(bool); !ok {
			return mismatch()
		}
	case TypeTagInt, TypeTagLong:
		switch n := v.(type) {
		case int64:
		case int:
			v = int64(n)
		case int32:
			v = int64(n)
		default:
			return mismatch()
		}
		if r.Type.Tag == TypeTagInt && (v.(int64) > math.MaxInt32 || v.(int64) < math.MinInt32) {
			return fmt.Errorf("int out of range: %d", v)
		}
	case TypeTagFloat, TypeTagDouble:
		switch n := v.(type) {
		case float64:
			if r.Type.Tag == TypeTagFloat {
				v = float64(float32(n))
			}
		case float32:
			v = float64(n)
		default:
			return mismatch()
		}
	case TypeTagString:
		if _, ok := v.(string); !ok {
			return mismatch()
		}
	case TypeTagBytes:
		if _, ok := v.([]byte); !ok {
			return mismatch()
		}
	case TypeTagFixed:
		b, ok := v.([]byte)
		if !ok {
			return mismatch()
		}
		if len(b) != r.Type.Size {
			return fmt.Errorf("fixed %s needs %d bytes, got %d", r.Type.FullName(), r.Type.Size, len(b))
		}
	case TypeTagEnum:
		s, ok := v.(EnumSymbol)
		if !ok {
			str, isStr := v.(string)
			if !isStr {
				return mismatch()
			}
			s = EnumSymbol(str)
		}
		if r.Type.SymbolIndex(string(s)) < 0 {
			return fmt.Errorf("%q is not a symbol of enum %s", s, r.Type.FullName())
		}
		v = s
	case TypeTagArray:
		if _, ok := v.([]Value); !ok {
			return mismatch()
		}
	case TypeTagMap:
		if _, ok := v.(map[string]Value); !ok {
			return mismatch()
		}
	case TypeTagRecord:
		if _, ok := v.(*RecordValue); !ok {
			return mismatch()
		}
	case TypeTagFunction:
		if _, ok := v.(*FcnValue); !ok {
			return mismatch()
		}
	default:
		return fmt.Errorf("internal error: cannot hold a value of type %s", r.Type)
	}
	r.Value = v
	return nil
}

// String representation of the runtime value
func (r Value) String() string {
	if r.Type == nil {
		return "<nil Value>"
	}
	switch v := r.Value.(type) {
	case nil:
		return "null"
	case []Value:
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = x.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]Value:
		keys := sortedKeys(v)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%q: %s", k, v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *RecordValue:
		parts := make([]string, len(r.Type.Fields))
		for i, f := range r.Type.Fields {
			parts[i] = fmt.Sprintf("%q: %s", f.Name, v.Fields[f.Name])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *FcnValue:
		return "fcn " + v.Name
	case string:
		return fmt.Sprintf("%q", v)
	}
	return fmt.Sprintf("%v", r.Value)
}

// --- Constructors for simple values

var NullValue = Value{Type: NullType}

func BoolValue(val bool) Value      { return Value{BooleanType, val} }
func IntValue(val int64) Value      { return Value{IntType, val} }
func LongValue(val int64) Value     { return Value{LongType, val} }
func FloatValue(val float64) Value  { return Value{FloatType, float64(float32(val))} }
func DoubleValue(val float64) Value { return Value{DoubleType, val} }
func StringValue(val string) Value  { return Value{StringType, val} }
func BytesValue(val []byte) Value   { return Value{BytesType, val} }
func ArrayValue(t *Type, items []Value) Value {
	return Value{t, items}
}
func MapValue(t *Type, entries map[string]Value) Value {
	return Value{t, entries}
}
func RecordOf(t *Type, fields map[string]Value) Value {
	return Value{t, &RecordValue{Fields: fields}}
}
func EnumValue(t *Type, symbol string) Value {
	return Value{t, EnumSymbol(symbol)}
}
func FcnOf(t *Type, name string, call func(args []Value) Value) Value {
	return Value{t, &FcnValue{Name: name, Call: call}}
}

// --- Getters.  These trust the type checker and panic on misuse.

func (r Value) Bool() bool            { return r.Value.(bool) }
func (r Value) Int() int64            { return r.Value.(int64) }
func (r Value) Str() string           { return r.Value.(string) }
func (r Value) Bytes() []byte         { return r.Value.([]byte) }
func (r Value) Array() []Value        { return r.Value.([]Value) }
func (r Value) Map() map[string]Value { return r.Value.(map[string]Value) }
func (r Value) Record() *RecordValue  { return r.Value.(*RecordValue) }
func (r Value) Fcn() *FcnValue        { return r.Value.(*FcnValue) }
func (r Value) Symbol() string        { return string(r.Value.(EnumSymbol)) }

// Float returns any numeric value as a float64.
func (r Value) Float() float64 {
	switch n := r.Value.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	panic(fmt.Sprintf("not a number: %s", r))
}

// Coerce moves a value into a slot of type t: numbers widen and union slots
// pick the branch the value belongs to.  It reports false when t cannot hold
// the value.
func Coerce(v Value, t *Type) (Value, bool) {
	if v.Type == nil || t == nil {
		return v, false
	}
	if v.Type.Equals(t) {
		return v, true
	}
	switch {
	case t.Tag == TypeTagUnion:
		for _, m := range t.Members {
			if m.Equals(v.Type) {
				return v, true
			}
		}
		for _, m := range t.Members {
			if Accepts(m, v.Type) {
				return Coerce(v, m)
			}
		}
		return v, false

	case t.IsNumeric() && v.Type.IsNumeric():
		if numericRank(v.Type.Tag) > numericRank(t.Tag) {
			return v, false
		}
		switch t.Tag {
		case TypeTagLong:
			return LongValue(v.Int()), true
		case TypeTagFloat:
			return FloatValue(v.Float()), true
		case TypeTagDouble:
			return DoubleValue(v.Float()), true
		}
		return IntValue(v.Int()), true

	case t.Tag == TypeTagArray && v.Type.Tag == TypeTagArray:
		items := v.Array()
		out := make([]Value, len(items))
		for i, x := range items {
			c, ok := Coerce(x, t.Items)
			if !ok {
				return v, false
			}
			out[i] = c
		}
		return ArrayValue(t, out), true

	case t.Tag == TypeTagMap && v.Type.Tag == TypeTagMap:
		entries := v.Map()
		out := make(map[string]Value, len(entries))
		for k, x := range entries {
			c, ok := Coerce(x, t.Values)
			if !ok {
				return v, false
			}
			out[k] = c
		}
		return MapValue(t, out), true

	case t.Tag == TypeTagEnum && v.Type.Tag == TypeTagEnum && t.FullName() == v.Type.FullName():
		return Value{t, v.Value}, true

	case t.Tag == TypeTagFunction && v.Type.Tag == TypeTagFunction:
		return Value{t, v.Value}, Accepts(t, v.Type)
	}
	return v, Accepts(t, v.Type)
}

// MustCoerce is Coerce for call sites the type checker has already vetted.
func MustCoerce(v Value, t *Type) Value {
	out, ok := Coerce(v, t)
	if !ok {
		panic(fmt.Sprintf("cannot store %s (%s) as %s", v, v.Type, t))
	}
	return out
}

// Equal is deep value equality; numbers compare by value across kinds.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// Compare orders two values of compatible types.  Numbers compare by value,
// enums by symbol position, arrays lexicographically and records field by
// field in declaration order.  Maps are only tested for equality (0 or 1).
func Compare(a, b Value) int {
	if a.Type.IsNumeric() && b.Type.IsNumeric() {
		ai, aIsInt := a.Value.(int64)
		bi, bIsInt := b.Value.(int64)
		if aIsInt && bIsInt {
			return cmpOrdered(ai, bi)
		}
		x, y := a.Float(), b.Float()
		switch {
		case math.IsNaN(x) && math.IsNaN(y):
			return 0
		case math.IsNaN(x):
			return 1
		case math.IsNaN(y):
			return -1
		}
		return cmpOrdered(x, y)
	}

	switch av := a.Value.(type) {
	case nil:
		if b.Value == nil {
			return 0
		}
		return -1
	case bool:
		bv, _ := b.Value.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case string:
		bv, _ := b.Value.(string)
		return strings.Compare(av, bv)
	case []byte:
		bv, _ := b.Value.([]byte)
		return bytes.Compare(av, bv)
	case EnumSymbol:
		bv, _ := b.Value.(EnumSymbol)
		return cmpOrdered(a.Type.SymbolIndex(string(av)), b.Type.SymbolIndex(string(bv)))
	case []Value:
		bv, _ := b.Value.([]Value)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return cmpOrdered(len(av), len(bv))
	case map[string]Value:
		bv, _ := b.Value.(map[string]Value)
		if len(av) != len(bv) {
			return 1
		}
		for k, x := range av {
			y, ok := bv[k]
			if !ok || Compare(x, y) != 0 {
				return 1
			}
		}
		return 0
	case *RecordValue:
		bv, _ := b.Value.(*RecordValue)
		if bv == nil {
			return 1
		}
		for _, f := range a.Type.Fields {
			if c := Compare(av.Fields[f.Name], bv.Fields[f.Name]); c != 0 {
				return c
			}
		}
		return 0
	case *FcnValue:
		if bv, ok := b.Value.(*FcnValue); ok && bv == av {
			return 0
		}
		return 1
	}
	return 1
}

func cmpOrdered[T int | int64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// Copy is a shallow copy of the outermost container so a path update can
// replace one element without touching shared structure.
func (r Value) Copy() Value {
	switch v := r.Value.(type) {
	case []Value:
		return Value{r.Type, append([]Value(nil), v...)}
	case map[string]Value:
		out := make(map[string]Value, len(v))
		for k, x := range v {
			out[k] = x
		}
		return Value{r.Type, out}
	case *RecordValue:
		out := make(map[string]Value, len(v.Fields))
		for k, x := range v.Fields {
			out[k] = x
		}
		return Value{r.Type, &RecordValue{Fields: out}}
	}
	return r
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
