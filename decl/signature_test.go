package decl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p(name string, pat *Pattern) Param { return Param{Name: name, Pattern: pat} }

func TestWildcardTakesBroadestNumber(t *testing.T) {
	sig := Sig(PWildcard("A"), p("x", PWildcard("A", AnyNumber...)), p("y", PWildcard("A", AnyNumber...)))
	res, err := sig.Accepts([]*Type{IntType, LongType}, NewNameAllocator())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, LongType, res.RetType)
	assert.Equal(t, []*Type{LongType, LongType}, res.ParamTypes)
}

func TestOverloadsTriedInOrder(t *testing.T) {
	sigs := Sigs{
		Sig(PInt, p("x", PInt), p("y", PInt)),
		Sig(PDouble, p("x", PDouble), p("y", PDouble)),
	}
	res, err := sigs.Resolve("add", []*Type{IntType, IntType}, nil)
	require.NoError(t, err)
	assert.Same(t, sigs[0], res.Signature)
	assert.Equal(t, IntType, res.RetType)

	res, err = sigs.Resolve("add", []*Type{DoubleType, IntType}, nil)
	require.NoError(t, err)
	assert.Same(t, sigs[1], res.Signature)
	assert.Equal(t, []*Type{DoubleType, DoubleType}, res.ParamTypes)

	_, err = sigs.Resolve("add", []*Type{StringType, IntType}, nil)
	var re *ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "add", re.Name)
	assert.Nil(t, re.Cause)
	assert.Contains(t, err.Error(), `"add"`)

	_, err = sigs.Resolve("add", []*Type{IntType}, nil)
	assert.Error(t, err)
}

func TestWildcardUnionsIncomparableTypes(t *testing.T) {
	sig := Sig(PArray(PWildcard("A")), p("x", PWildcard("A")), p("y", PWildcard("A")))
	res, err := sig.Accepts([]*Type{IntType, StringType}, nil)
	require.NoError(t, err)
	assert.True(t, res.RetType.Equals(ArrayType(UnionType(IntType, StringType))), "got %s", res.RetType)
}

func TestDistinctEnumsAreIncompatible(t *testing.T) {
	sigs := Sigs{Sig(PWildcard("A"), p("x", PWildcard("A")), p("y", PWildcard("A")))}
	_, err := sigs.Resolve("pick", []*Type{
		EnumType("Color", "", "RED"),
		EnumType("Suit", "", "HEARTS"),
	}, nil)
	require.Error(t, err)
	var it *IncompatibleTypes
	require.True(t, errors.As(err, &it))
	assert.Equal(t, "A", it.Label)
	assert.Contains(t, it.Error(), "enum")
}

func TestStrictInsideUnions(t *testing.T) {
	sig := Sig(PNull, p("x", PUnion(PLong, PString)))
	res, err := sig.Accepts([]*Type{IntType}, nil)
	assert.NoError(t, err)
	assert.Nil(t, res)

	res, err = sig.Accepts([]*Type{StringType}, nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.ParamTypes[0].Equals(UnionType(LongType, StringType)))

	// a concrete union consumes distinct pattern branches
	res, err = sig.Accepts([]*Type{UnionType(StringType, LongType)}, nil)
	require.NoError(t, err)
	assert.NotNil(t, res)
	res, _ = sig.Accepts([]*Type{UnionType(StringType, StringType)}, nil)
	assert.Nil(t, res)
}

func TestLenientAtTopLevel(t *testing.T) {
	res, err := Sig(PDouble, p("x", PDouble)).Accepts([]*Type{IntType}, nil)
	require.NoError(t, err)
	assert.Equal(t, []*Type{DoubleType}, res.ParamTypes)

	res, _ = Sig(PInt, p("x", PInt)).Accepts([]*Type{DoubleType}, nil)
	assert.Nil(t, res)
}

func TestCallbackParamsAreContravariant(t *testing.T) {
	sig := Sig(PArray(PWildcard("B")),
		p("a", PArray(PInt)),
		p("fcn", PFcn([]*Pattern{PInt}, PWildcard("B"))))

	res, err := sig.Accepts([]*Type{ArrayType(IntType), FunctionType([]*Type{LongType}, StringType)}, nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.RetType.Equals(ArrayType(StringType)))

	res, _ = Sig(PNull, p("fcn", PFcn([]*Pattern{PLong}, PNull))).
		Accepts([]*Type{FunctionType([]*Type{IntType}, NullType)}, nil)
	assert.Nil(t, res)
}

func TestWildRecordAllowsExtraFields(t *testing.T) {
	point := RecordType("Point", "geo",
		&Field{Name: "x", Type: IntType},
		&Field{Name: "label", Type: StringType})
	sig := Sig(PWildRecord("R"), p("r", PWildRecord("R", PatternField{"x", PInt})))
	res, err := sig.Accepts([]*Type{point}, nil)
	require.NoError(t, err)
	assert.Same(t, point, res.RetType)

	res, _ = sig.Accepts([]*Type{RecordType("Empty", "")}, nil)
	assert.Nil(t, res)
}

func TestExplicitRecordPatternNeedsExactFields(t *testing.T) {
	pat := PRecord("", PatternField{"x", PInt})
	sig := Sig(PNull, p("r", pat))
	res, _ := sig.Accepts([]*Type{RecordType("A", "", &Field{Name: "x", Type: IntType})}, nil)
	assert.NotNil(t, res)
	res, _ = sig.Accepts([]*Type{RecordType("B", "",
		&Field{Name: "x", Type: IntType}, &Field{Name: "y", Type: IntType})}, nil)
	assert.Nil(t, res)
	// fields are checked strictly
	res, _ = sig.Accepts([]*Type{RecordType("C", "", &Field{Name: "x", Type: LongType})}, nil)
	assert.Nil(t, res)
}

func TestReturnPatternsGetFreshNames(t *testing.T) {
	names := NewNameAllocator()
	sig := Sig(PRecord("", PatternField{"n", PInt}))
	a, err := sig.Accepts(nil, names)
	require.NoError(t, err)
	b, err := sig.Accepts(nil, names)
	require.NoError(t, err)
	assert.Equal(t, TypeTagRecord, a.RetType.Tag)
	assert.NotEqual(t, a.RetType.FullName(), b.RetType.FullName())
}

func TestBroadestType(t *testing.T) {
	cases := []struct {
		name  string
		in    []*Type
		want  *Type
		isErr bool
	}{
		{"ints", []*Type{IntType, IntType}, IntType, false},
		{"float wins", []*Type{IntType, FloatType, LongType}, FloatType, false},
		{"arrays", []*Type{ArrayType(IntType), ArrayType(DoubleType)}, ArrayType(DoubleType), false},
		{"union", []*Type{NullType, StringType}, UnionType(NullType, StringType), false},
		{"accepted member dropped", []*Type{StringType, UnionType(NullType, StringType)}, UnionType(StringType, NullType), false},
		{"named", []*Type{FixedType("F", "", 2), FixedType("G", "", 2)}, nil, true},
		{"functions", []*Type{FunctionType(nil, IntType), FunctionType(nil, LongType)}, nil, true},
		{"fixed in union", []*Type{FixedType("F", "", 2), IntType, FixedType("G", "", 2)}, nil, true},
		{"empty", nil, nil, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := BroadestType(c.in)
			if c.isErr {
				var it *IncompatibleTypes
				assert.ErrorAs(t, err, &it)
				return
			}
			require.NoError(t, err)
			assert.True(t, c.want.Equals(got), "want %s, got %s", c.want, got)
		})
	}
}
