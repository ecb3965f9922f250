package lib

import (
	"math"

	"github.com/panyam/pfa/decl"
)

func mathFcns() []*LibFcn {
	a := num("A")
	unary := func(name string, f func(float64) float64) *LibFcn {
		return &LibFcn{
			Name: name,
			Sigs: decl.Sigs{decl.Sig(decl.PDouble, p("x", decl.PDouble))},
			Impl: func(_ *Call, args []decl.Value) decl.Value { return decl.DoubleValue(f(args[0].Float())) },
		}
	}
	return []*LibFcn{
		unary("m.sqrt", math.Sqrt),
		unary("m.exp", math.Exp),
		unary("m.ln", math.Log),
		unary("m.floor", math.Floor),
		unary("m.ceil", math.Ceil),
		{
			Name: "m.abs",
			Sigs: decl.Sigs{decl.Sig(a, p("x", a))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				switch call.RetType.Tag {
				case decl.TypeTagInt, decl.TypeTagLong:
					x := args[0].Int()
					if x < 0 {
						return intResult(call, -x, x != math.MinInt64)
					}
					return intResult(call, x, true)
				}
				return floatResult(call, math.Abs(args[0].Float()))
			},
		},
		{
			Name: "m.round",
			Sigs: decl.Sigs{decl.Sig(decl.PLong, p("x", decl.PDouble))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				x := math.Floor(args[0].Float() + 0.5)
				if math.IsNaN(x) || x >= math.MaxInt64 || x < math.MinInt64 {
					Fail(call.Name, CodeLongOverflow, "cannot round %v to a long", args[0].Float())
				}
				return decl.LongValue(int64(x))
			},
		},
	}
}
