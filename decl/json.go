package decl

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FromJSON converts a decoded JSON (or YAML) datum into a Value of type t using
// the Avro JSON encoding: unions are either null or a single-key object naming
// the branch, bytes and fixed are strings of code points 0-255.
func FromJSON(t *Type, datum any) (Value, error) {
	switch t.Tag {
	case TypeTagNull:
		if datum != nil {
			return Value{}, fmt.Errorf("expected null, got %v", datum)
		}
		return NullValue, nil

	case TypeTagBoolean:
		b, ok := datum.(bool)
		if !ok {
			return Value{}, fmt.Errorf("expected boolean, got %v", datum)
		}
		return BoolValue(b), nil

	case TypeTagInt, TypeTagLong:
		n, err := jsonInt(datum)
		if err != nil {
			return Value{}, err
		}
		if t.Tag == TypeTagInt {
			if n > math.MaxInt32 || n < math.MinInt32 {
				return Value{}, fmt.Errorf("int out of range: %d", n)
			}
			return IntValue(n), nil
		}
		return LongValue(n), nil

	case TypeTagFloat, TypeTagDouble:
		f, err := jsonFloat(datum)
		if err != nil {
			return Value{}, err
		}
		if t.Tag == TypeTagFloat {
			return FloatValue(f), nil
		}
		return DoubleValue(f), nil

	case TypeTagString:
		s, ok := datum.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected string, got %v", datum)
		}
		return StringValue(s), nil

	case TypeTagBytes, TypeTagFixed:
		s, ok := datum.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected %s as a string, got %v", t.BranchName(), datum)
		}
		b, err := latin1(s)
		if err != nil {
			return Value{}, err
		}
		v := Value{Type: t}
		err = v.Set(b)
		return v, err

	case TypeTagEnum:
		s, ok := datum.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected enum symbol, got %v", datum)
		}
		v := Value{Type: t}
		err := v.Set(EnumSymbol(s))
		return v, err

	case TypeTagArray:
		items, ok := datum.([]any)
		if !ok {
			return Value{}, fmt.Errorf("expected array, got %v", datum)
		}
		out := make([]Value, len(items))
		for i, x := range items {
			v, err := FromJSON(t.Items, x)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return ArrayValue(t, out), nil

	case TypeTagMap:
		entries, ok := datum.(map[string]any)
		if !ok {
			return Value{}, fmt.Errorf("expected map, got %v", datum)
		}
		out := make(map[string]Value, len(entries))
		for k, x := range entries {
			v, err := FromJSON(t.Values, x)
			if err != nil {
				return Value{}, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = v
		}
		return MapValue(t, out), nil

	case TypeTagRecord:
		entries, ok := datum.(map[string]any)
		if !ok {
			return Value{}, fmt.Errorf("expected record %s, got %v", t.FullName(), datum)
		}
		out := make(map[string]Value, len(t.Fields))
		for _, f := range t.Fields {
			x, present := entries[f.Name]
			if !present {
				if !f.HasDefault {
					return Value{}, fmt.Errorf("record %s is missing field %q", t.FullName(), f.Name)
				}
				x = f.Default
			}
			v, err := FromJSON(f.Type, x)
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", f.Name, err)
			}
			out[f.Name] = v
		}
		return RecordOf(t, out), nil

	case TypeTagUnion:
		return unionFromJSON(t, datum)
	}
	return Value{}, fmt.Errorf("cannot decode a value of type %s", t)
}

func unionFromJSON(t *Type, datum any) (Value, error) {
	if datum == nil {
		if t.HasMember(TypeTagNull) {
			return NullValue, nil
		}
		return Value{}, fmt.Errorf("null is not a branch of %s", t)
	}
	if wrapper, ok := datum.(map[string]any); ok && len(wrapper) == 1 {
		for branch, x := range wrapper {
			for _, m := range t.Members {
				if m.BranchName() == branch {
					return FromJSON(m, x)
				}
			}
		}
	}
	// a bare datum goes to the first branch that can decode it
	for _, m := range t.Members {
		if m.Tag == TypeTagNull {
			continue
		}
		if v, err := FromJSON(m, datum); err == nil {
			return v, nil
		}
	}
	return Value{}, fmt.Errorf("%v does not match any branch of %s", datum, t)
}

// ToJSON renders v, stored in a slot of static type t, as a JSON-ready datum.
func ToJSON(t *Type, v Value) any {
	if t.Tag == TypeTagUnion {
		if v.Type.Tag == TypeTagNull {
			return nil
		}
		return map[string]any{v.Type.BranchName(): ToJSON(v.Type, v)}
	}
	switch x := v.Value.(type) {
	case nil:
		return nil
	case bool, int64, string:
		return x
	case float64:
		switch {
		case math.IsNaN(x):
			return "NaN"
		case math.IsInf(x, 1):
			return "Infinity"
		case math.IsInf(x, -1):
			return "-Infinity"
		}
		return x
	case []byte:
		var sb strings.Builder
		for _, b := range x {
			sb.WriteRune(rune(b))
		}
		return sb.String()
	case EnumSymbol:
		return string(x)
	case []Value:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = ToJSON(itemType(t, v), item)
		}
		return out
	case map[string]Value:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = ToJSON(valueType(t, v), item)
		}
		return out
	case *RecordValue:
		out := make(map[string]any, len(x.Fields))
		for _, f := range v.Type.Fields {
			out[f.Name] = ToJSON(f.Type, x.Fields[f.Name])
		}
		return out
	case *FcnValue:
		return x.Name
	}
	return fmt.Sprint(v.Value)
}

func itemType(static *Type, v Value) *Type {
	if static.Tag == TypeTagArray {
		return static.Items
	}
	return v.Type.Items
}

func valueType(static *Type, v Value) *Type {
	if static.Tag == TypeTagMap {
		return static.Values
	}
	return v.Type.Values
}

// MarshalJSON encodes a value standing in a slot of its own type.
func (r Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToJSON(r.Type, r))
}

func jsonInt(datum any) (int64, error) {
	switch n := datum.(type) {
	case json.Number:
		return n.Int64()
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("long out of range: %d", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected an integer, got %v", n)
		}
		return int64(n), nil
	}
	return 0, fmt.Errorf("expected an integer, got %v", datum)
}

func jsonFloat(datum any) (float64, error) {
	switch n := datum.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		switch n {
		case "NaN", "Infinity", "-Infinity", "inf", "-inf":
			return strconv.ParseFloat(n, 64)
		}
	}
	return 0, fmt.Errorf("expected a number, got %v", datum)
}

func latin1(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			return nil, fmt.Errorf("code point %U does not fit a byte", r)
		}
		out = append(out, byte(r))
	}
	return out, nil
}
