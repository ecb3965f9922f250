package lib

import (
	"math"

	"github.com/panyam/pfa/decl"
)

// Error codes of the core functions.
const (
	CodeIntOverflow  = 18000
	CodeLongOverflow = 18001
	CodeDivByZero    = 18010
	CodeNegativePow  = 18020
)

func coreFcns() []*LibFcn {
	a := num("A")
	return []*LibFcn{
		arith("+", addInt, func(x, y float64) float64 { return x + y }),
		arith("-", subInt, func(x, y float64) float64 { return x - y }),
		arith("*", mulInt, func(x, y float64) float64 { return x * y }),
		arith("**", powInt, math.Pow),
		arith("%", modInt, func(x, y float64) float64 { return x - y*math.Floor(x/y) }),
		{
			Name: "/",
			Sigs: decl.Sigs{decl.Sig(decl.PDouble, p("x", decl.PDouble), p("y", decl.PDouble))},
			Impl: func(_ *Call, args []decl.Value) decl.Value {
				return decl.DoubleValue(args[0].Float() / args[1].Float())
			},
			Doc: "Divide two numbers as doubles.",
		},
		{
			Name: "//",
			Sigs: decl.Sigs{
				decl.Sig(decl.PInt, p("x", decl.PInt), p("y", decl.PInt)),
				decl.Sig(decl.PLong, p("x", decl.PLong), p("y", decl.PLong)),
			},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				x, y := args[0].Int(), args[1].Int()
				if y == 0 {
					Fail(call.Name, CodeDivByZero, "integer division by zero")
				}
				q := x / y
				if (x%y != 0) && ((x < 0) != (y < 0)) {
					q--
				}
				return intResult(call, q, !(x == math.MinInt64 && y == -1))
			},
			Doc: "Floor division of two integers.",
		},
		{
			Name: "u-",
			Sigs: decl.Sigs{decl.Sig(a, p("x", a))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				if call.RetType.Tag == decl.TypeTagInt || call.RetType.Tag == decl.TypeTagLong {
					x := args[0].Int()
					return intResult(call, -x, x != math.MinInt64)
				}
				return floatResult(call, -args[0].Float())
			},
			Doc: "Negate a number.",
		},

		compare("==", func(c int) bool { return c == 0 }),
		compare("!=", func(c int) bool { return c != 0 }),
		compare("<", func(c int) bool { return c < 0 }),
		compare("<=", func(c int) bool { return c <= 0 }),
		compare(">", func(c int) bool { return c > 0 }),
		compare(">=", func(c int) bool { return c >= 0 }),
		{
			Name: "cmp",
			Sigs: decl.Sigs{decl.Sig(decl.PInt, p("x", wild("A")), p("y", wild("A")))},
			Impl: func(_ *Call, args []decl.Value) decl.Value {
				return decl.IntValue(int64(decl.Compare(args[0], args[1])))
			},
			Doc: "Compare two values: -1, 0 or 1.",
		},
		extreme("max", func(c int) bool { return c >= 0 }),
		extreme("min", func(c int) bool { return c <= 0 }),

		{
			Name: "&&",
			Sigs: decl.Sigs{decl.Sig(decl.PBoolean, p("x", decl.PBoolean), p("y", decl.PBoolean))},
			Lazy: func(_ *Call, args []func() decl.Value) decl.Value {
				return decl.BoolValue(args[0]().Bool() && args[1]().Bool())
			},
			Doc: "Logical and; y is only evaluated when x is true.",
		},
		{
			Name: "||",
			Sigs: decl.Sigs{decl.Sig(decl.PBoolean, p("x", decl.PBoolean), p("y", decl.PBoolean))},
			Lazy: func(_ *Call, args []func() decl.Value) decl.Value {
				return decl.BoolValue(args[0]().Bool() || args[1]().Bool())
			},
			Doc: "Logical or; y is only evaluated when x is false.",
		},
		{
			Name: "!",
			Sigs: decl.Sigs{decl.Sig(decl.PBoolean, p("x", decl.PBoolean))},
			Impl: func(_ *Call, args []decl.Value) decl.Value { return decl.BoolValue(!args[0].Bool()) },
			Doc:  "Logical not.",
		},
	}
}

// arith builds a binary operator over any numeric type.  The integer variant
// reports false on overflow of int64.
func arith(name string, ints func(x, y int64) (int64, bool), floats func(x, y float64) float64) *LibFcn {
	a := num("A")
	return &LibFcn{
		Name: name,
		Sigs: decl.Sigs{decl.Sig(a, p("x", a), p("y", a))},
		Impl: func(call *Call, args []decl.Value) decl.Value {
			switch call.RetType.Tag {
			case decl.TypeTagInt, decl.TypeTagLong:
				r, ok := ints(args[0].Int(), args[1].Int())
				return intResult(call, r, ok)
			}
			return floatResult(call, floats(args[0].Float(), args[1].Float()))
		},
	}
}

func intResult(call *Call, r int64, ok bool) decl.Value {
	if call.RetType.Tag == decl.TypeTagInt {
		if !ok || r > math.MaxInt32 || r < math.MinInt32 {
			Fail(call.Name, CodeIntOverflow, "int overflow")
		}
		return decl.IntValue(r)
	}
	if !ok {
		Fail(call.Name, CodeLongOverflow, "long overflow")
	}
	return decl.LongValue(r)
}

func floatResult(call *Call, r float64) decl.Value {
	if call.RetType.Tag == decl.TypeTagFloat {
		return decl.FloatValue(r)
	}
	return decl.DoubleValue(r)
}

func addInt(x, y int64) (int64, bool) {
	r := x + y
	return r, !((x > 0 && y > 0 && r < 0) || (x < 0 && y < 0 && r >= 0))
}

func subInt(x, y int64) (int64, bool) {
	r := x - y
	return r, !((x >= 0 && y < 0 && r < 0) || (x < 0 && y > 0 && r >= 0))
}

func mulInt(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, true
	}
	r := x * y
	if (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return r, false
	}
	return r, r/y == x
}

// modInt is the floored modulo.
func modInt(x, y int64) (int64, bool) {
	if y == 0 {
		Fail("%", CodeDivByZero, "integer division by zero")
	}
	if y == -1 {
		return 0, true
	}
	r := x % y
	if r != 0 && (r < 0) != (y < 0) {
		r += y
	}
	return r, true
}

func powInt(x, y int64) (int64, bool) {
	if y < 0 {
		Fail("**", CodeNegativePow, "negative exponent on an integer")
	}
	result := int64(1)
	ok := true
	for base := x; y > 0; y >>= 1 {
		if y&1 == 1 {
			var stepOk bool
			result, stepOk = mulInt(result, base)
			ok = ok && stepOk
		}
		if y > 1 {
			var stepOk bool
			base, stepOk = mulInt(base, base)
			ok = ok && stepOk
		}
	}
	return result, ok
}

func compare(name string, test func(int) bool) *LibFcn {
	return &LibFcn{
		Name: name,
		Sigs: decl.Sigs{decl.Sig(decl.PBoolean, p("x", wild("A")), p("y", wild("A")))},
		Impl: func(_ *Call, args []decl.Value) decl.Value {
			x, y := args[0], args[1]
			if x.Type.IsNumeric() && y.Type.IsNumeric() && (math.IsNaN(x.Float()) || math.IsNaN(y.Float())) {
				return decl.BoolValue(name == "!=")
			}
			return decl.BoolValue(test(decl.Compare(x, y)))
		},
	}
}

func extreme(name string, keepFirst func(int) bool) *LibFcn {
	return &LibFcn{
		Name: name,
		Sigs: decl.Sigs{decl.Sig(wild("A"), p("x", wild("A")), p("y", wild("A")))},
		Impl: func(_ *Call, args []decl.Value) decl.Value {
			if keepFirst(decl.Compare(args[0], args[1])) {
				return args[0]
			}
			return args[1]
		},
	}
}
