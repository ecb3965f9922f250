package lib

import (
	"math"
	"testing"

	"github.com/panyam/pfa/decl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// invoke resolves name against the argument types and runs it the way the
// engine does.
func invoke(t *testing.T, name string, args ...decl.Value) decl.Value {
	t.Helper()
	f, ok := Default().Lookup(name)
	require.True(t, ok, "no function %q", name)
	types := make([]*decl.Type, len(args))
	for i, a := range args {
		types[i] = a.Type
	}
	res, err := f.Sigs.Resolve(name, types, decl.NewNameAllocator())
	require.NoError(t, err)
	call := f.NewCall(res)
	coerced := make([]decl.Value, len(args))
	for i, a := range args {
		coerced[i] = decl.MustCoerce(a, res.ParamTypes[i])
	}
	if f.Lazy != nil {
		thunks := make([]func() decl.Value, len(coerced))
		for i, a := range coerced {
			thunks[i] = func() decl.Value { return a }
		}
		return f.Lazy(call, thunks)
	}
	return f.Impl(call, coerced)
}

func failure(t *testing.T, name string, args ...decl.Value) (fe *FcnError) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "%s did not fail", name)
		var ok bool
		fe, ok = r.(*FcnError)
		require.True(t, ok, "unexpected panic %v", r)
	}()
	invoke(t, name, args...)
	return nil
}

// recovered runs fn and returns the error it panicked with.
func recovered(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err, _ = r.(error)
		}
	}()
	fn()
	return nil
}

var (
	i32 = decl.IntValue
	i64 = decl.LongValue
	f64 = decl.DoubleValue
	str = decl.StringValue
)

func TestArithmeticWidens(t *testing.T) {
	assert.Equal(t, i32(5), invoke(t, "+", i32(2), i32(3)))
	assert.Equal(t, i64(5), invoke(t, "+", i32(2), i64(3)))
	assert.Equal(t, f64(5.5), invoke(t, "+", i32(2), f64(3.5)))
	assert.Equal(t, decl.FloatValue(1.5), invoke(t, "*", decl.FloatValue(0.5), i32(3)))
	assert.Equal(t, f64(2.5), invoke(t, "/", i32(5), i32(2)))
	assert.Equal(t, i32(1024), invoke(t, "**", i32(2), i32(10)))
	assert.Equal(t, i32(-3), invoke(t, "u-", i32(3)))
}

func TestIntegerDivision(t *testing.T) {
	cases := []struct {
		fcn  string
		x, y int64
		want int64
	}{
		{"//", 7, 2, 3},
		{"//", -7, 2, -4},
		{"//", 7, -2, -4},
		{"%", -7, 3, 2},
		{"%", 7, -3, -2},
		{"%", 6, 3, 0},
		{"%", 5, -1, 0},
	}
	for _, c := range cases {
		assert.Equal(t, i64(c.want), invoke(t, c.fcn, i64(c.x), i64(c.y)), "%d %s %d", c.x, c.fcn, c.y)
	}
}

func TestFloorDivisionIsIntegerOnly(t *testing.T) {
	assert.Equal(t, i32(3), invoke(t, "//", i32(7), i32(2)))
	assert.Equal(t, i64(-4), invoke(t, "//", i32(-7), i64(2)))

	f, _ := Default().Lookup("//")
	for _, args := range [][]*decl.Type{
		{decl.IntType, decl.DoubleType},
		{decl.FloatType, decl.IntType},
	} {
		_, err := f.Sigs.Resolve(f.Name, args, nil)
		assert.Error(t, err, "%v", args)
	}
}

func TestArithmeticFailures(t *testing.T) {
	fe := failure(t, "+", i32(math.MaxInt32), i32(1))
	assert.Equal(t, CodeIntOverflow, fe.Code)
	assert.Equal(t, "+", fe.Name)

	assert.Equal(t, CodeLongOverflow, failure(t, "*", i64(math.MaxInt64), i64(2)).Code)
	assert.Equal(t, CodeLongOverflow, failure(t, "u-", i64(math.MinInt64)).Code)
	assert.Equal(t, CodeLongOverflow, failure(t, "//", i64(math.MinInt64), i64(-1)).Code)
	assert.Equal(t, CodeDivByZero, failure(t, "//", i32(1), i32(0)).Code)
	assert.Equal(t, CodeDivByZero, failure(t, "%", i32(1), i32(0)).Code)
	assert.Equal(t, CodeNegativePow, failure(t, "**", i32(2), i32(-1)).Code)
	assert.Equal(t, CodeIntOverflow, failure(t, "**", i32(2), i32(31)).Code)

	// floats never fail
	assert.True(t, math.IsInf(invoke(t, "/", i32(1), i32(0)).Float(), 1))
}

func TestComparisons(t *testing.T) {
	assert.Equal(t, decl.BoolValue(true), invoke(t, "<", i32(1), f64(1.5)))
	assert.Equal(t, decl.BoolValue(true), invoke(t, "==", i32(2), i64(2)))
	nan := f64(math.NaN())
	assert.Equal(t, decl.BoolValue(false), invoke(t, "==", nan, nan))
	assert.Equal(t, decl.BoolValue(true), invoke(t, "!=", nan, f64(1)))
	assert.Equal(t, i32(-1), invoke(t, "cmp", str("a"), str("b")))
	assert.Equal(t, f64(3), invoke(t, "max", i32(3), f64(2)))
	assert.Equal(t, str("a"), invoke(t, "min", str("b"), str("a")))
}

func TestLogicShortCircuits(t *testing.T) {
	f, _ := Default().Lookup("&&")
	res, err := f.Sigs.Resolve("&&", []*decl.Type{decl.BooleanType, decl.BooleanType}, nil)
	require.NoError(t, err)
	evaluated := false
	out := f.Lazy(f.NewCall(res), []func() decl.Value{
		func() decl.Value { return decl.BoolValue(false) },
		func() decl.Value { evaluated = true; return decl.BoolValue(true) },
	})
	assert.False(t, out.Bool())
	assert.False(t, evaluated)

	assert.True(t, invoke(t, "||", decl.BoolValue(false), decl.BoolValue(true)).Bool())
	assert.False(t, invoke(t, "!", decl.BoolValue(true)).Bool())
}

func ints(xs ...int64) decl.Value {
	items := make([]decl.Value, len(xs))
	for i, x := range xs {
		items[i] = i32(x)
	}
	return decl.ArrayValue(decl.ArrayType(decl.IntType), items)
}

func TestArrayFunctions(t *testing.T) {
	toStr := decl.FcnOf(decl.FunctionType([]*decl.Type{decl.IntType}, decl.StringType), "toStr",
		func(args []decl.Value) decl.Value { return str(args[0].String()) })
	mapped := invoke(t, "a.map", ints(1, 2), toStr)
	assert.True(t, mapped.Type.Equals(decl.ArrayType(decl.StringType)))
	assert.Equal(t, []decl.Value{str("1"), str("2")}, mapped.Array())

	even := decl.FcnOf(decl.FunctionType([]*decl.Type{decl.IntType}, decl.BooleanType), "even",
		func(args []decl.Value) decl.Value { return decl.BoolValue(args[0].Int()%2 == 0) })
	assert.Equal(t, []decl.Value{i32(2), i32(4)}, invoke(t, "a.filter", ints(1, 2, 3, 4), even).Array())
	assert.Equal(t, i32(2), invoke(t, "a.count", ints(1, 2, 3, 4), even))

	// a callback taking longs widens the array it is applied to
	evenLong := decl.FcnOf(decl.FunctionType([]*decl.Type{decl.LongType}, decl.BooleanType), "evenLong",
		func(args []decl.Value) decl.Value { return decl.BoolValue(args[0].Int()%2 == 0) })
	assert.Equal(t, []decl.Value{i64(2)}, invoke(t, "a.filter", ints(1, 2, 3), evenLong).Array())

	assert.Equal(t, i32(0), invoke(t, "a.sum", ints()))
	assert.Equal(t, i32(6), invoke(t, "a.sum", ints(1, 2, 3)))
	assert.Equal(t, CodeIntOverflow, failure(t, "a.sum", ints(math.MaxInt32, 1)).Code)

	assert.Equal(t, ints(3, 4).Array(), invoke(t, "a.subseq", ints(1, 2, 3, 4), i32(-2), i32(10)).Array())
	assert.Empty(t, invoke(t, "a.subseq", ints(1, 2), i32(2), i32(1)).Array())
	assert.Equal(t, ints(1, 2, 3).Array(), invoke(t, "a.sort", ints(3, 1, 2)).Array())
	assert.Equal(t, ints(1, 9).Array(), invoke(t, "a.append", ints(1), i32(9)).Array())
	assert.True(t, invoke(t, "a.contains", ints(1, 2), i32(2)).Bool())
	assert.Equal(t, i32(3), invoke(t, "a.len", ints(1, 2, 3)))

	assert.Equal(t, CodeEmptyArray, failure(t, "a.head", ints()).Code)
	assert.Equal(t, CodeBadIndex, failure(t, "a.get", ints(1), i32(1)).Code)
}

func TestStringFunctions(t *testing.T) {
	assert.Equal(t, i32(3), invoke(t, "s.len", str("héé")))
	assert.Equal(t, str("éé"), invoke(t, "s.substr", str("héé"), i32(-2), i32(3)))
	assert.Equal(t, str("ab"), invoke(t, "s.concat", str("a"), str("b")))
	assert.Equal(t, str("ABC"), invoke(t, "s.upper", str("abc")))
	assert.Equal(t, str("abc"), invoke(t, "s.lower", str("ABC")))
	assert.True(t, invoke(t, "s.contains", str("haystack"), str("st")).Bool())

	parts := decl.ArrayValue(decl.ArrayType(decl.StringType), []decl.Value{str("a"), str("b")})
	assert.Equal(t, str("a-b"), invoke(t, "s.join", parts, str("-")))
}

func TestMapFunctions(t *testing.T) {
	m := decl.MapValue(decl.MapType(decl.IntType), map[string]decl.Value{"b": i32(2), "a": i32(1)})
	keys := invoke(t, "map.keys", m).Array()
	assert.Equal(t, []decl.Value{str("a"), str("b")}, keys)
	assert.Equal(t, ints(1, 2).Array(), invoke(t, "map.values", m).Array())
	assert.Equal(t, i32(2), invoke(t, "map.len", m))
	assert.True(t, invoke(t, "map.containsKey", m, str("a")).Bool())

	added := invoke(t, "map.add", m, str("c"), i32(3))
	assert.Len(t, added.Map(), 3)
	assert.Len(t, m.Map(), 2)
	assert.Equal(t, i32(3), invoke(t, "map.get", added, str("c")))
	assert.Equal(t, CodeMissingKey, failure(t, "map.get", m, str("z")).Code)
}

func TestMathAndImpute(t *testing.T) {
	assert.Equal(t, i32(4), invoke(t, "m.abs", i32(-4)))
	assert.Equal(t, f64(1.5), invoke(t, "m.abs", f64(-1.5)))
	assert.Equal(t, i64(3), invoke(t, "m.round", f64(2.5)))
	assert.Equal(t, f64(3), invoke(t, "m.sqrt", i32(9)))
	assert.Equal(t, CodeLongOverflow, failure(t, "m.round", f64(math.NaN())).Code)

	assert.Equal(t, i32(7), invoke(t, "impute.defaultOnNull", decl.NullValue, i32(7)))
	assert.Equal(t, str("x"), invoke(t, "impute.defaultOnNull", str("x"), str("y")))

	f, _ := Default().Lookup("impute.errorOnNull")
	res, err := f.Sigs.Resolve(f.Name, []*decl.Type{decl.UnionType(decl.NullType, decl.StringType)}, nil)
	require.NoError(t, err)
	assert.Equal(t, decl.StringType, res.RetType)
	err = recovered(func() { f.Impl(f.NewCall(res), []decl.Value{decl.NullValue}) })
	var fe *FcnError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FcnError{Name: f.Name, Code: 21000, Msg: "encountered null"}, *fe)
	assert.Equal(t, str("ok"), f.Impl(f.NewCall(res), []decl.Value{str("ok")}))
}

func TestRegister(t *testing.T) {
	l := NewLibrary()
	err := l.Register(&LibFcn{Name: "broken", Sigs: decl.Sigs{decl.Sig(decl.PNull)}})
	assert.Error(t, err)

	one := &LibFcn{Name: "one", Sigs: decl.Sigs{decl.Sig(decl.PInt)},
		Impl: func(*Call, []decl.Value) decl.Value { return i32(1) }}
	two := &LibFcn{Name: "two", Sigs: decl.Sigs{decl.Sig(decl.PInt)},
		Impl: func(*Call, []decl.Value) decl.Value { return i32(2) }}
	require.NoError(t, l.Register(two, one, two))
	assert.Equal(t, []string{"two", "one"}, l.Names())

	sigs, ok := l.Signatures("one")
	assert.True(t, ok)
	assert.Len(t, sigs, 1)
	_, ok = l.Signatures("three")
	assert.False(t, ok)
}
