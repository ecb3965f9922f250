package lib

import (
	"slices"

	"github.com/panyam/pfa/decl"
)

// Error codes of the array functions.
const (
	CodeEmptyArray = 15000
	CodeBadIndex   = 15010
)

func arrayFcns() []*LibFcn {
	a, b := wild("A"), wild("B")
	arrA := decl.PArray(a)
	return []*LibFcn{
		{
			Name: "a.len",
			Sigs: decl.Sigs{decl.Sig(decl.PInt, p("a", arrA))},
			Impl: func(_ *Call, args []decl.Value) decl.Value { return decl.IntValue(int64(len(args[0].Array()))) },
			Doc:  "Number of items in an array.",
		},
		{
			Name: "a.append",
			Sigs: decl.Sigs{decl.Sig(arrA, p("a", arrA), p("item", a))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				items := args[0].Array()
				out := make([]decl.Value, len(items), len(items)+1)
				copy(out, items)
				return decl.ArrayValue(call.RetType, append(out, args[1]))
			},
			Doc: "A new array with item added at the end.",
		},
		{
			Name: "a.head",
			Sigs: decl.Sigs{decl.Sig(a, p("a", arrA))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				items := args[0].Array()
				if len(items) == 0 {
					Fail(call.Name, CodeEmptyArray, "empty array")
				}
				return items[0]
			},
		},
		{
			Name: "a.get",
			Sigs: decl.Sigs{decl.Sig(a, p("a", arrA), p("index", decl.PInt))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				items, i := args[0].Array(), args[1].Int()
				if i < 0 || i >= int64(len(items)) {
					Fail(call.Name, CodeBadIndex, "index %d out of range for an array of length %d", i, len(items))
				}
				return items[i]
			},
		},
		{
			Name: "a.subseq",
			Sigs: decl.Sigs{decl.Sig(arrA, p("a", arrA), p("start", decl.PInt), p("end", decl.PInt))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				items := args[0].Array()
				lo, hi := sliceBounds(len(items), args[1].Int(), args[2].Int())
				return decl.ArrayValue(call.RetType, slices.Clone(items[lo:hi]))
			},
		},
		{
			Name: "a.contains",
			Sigs: decl.Sigs{decl.Sig(decl.PBoolean, p("haystack", arrA), p("needle", a))},
			Impl: func(_ *Call, args []decl.Value) decl.Value {
				needle := args[1]
				return decl.BoolValue(slices.ContainsFunc(args[0].Array(), func(x decl.Value) bool { return decl.Equal(x, needle) }))
			},
		},
		{
			Name: "a.sum",
			Sigs: decl.Sigs{decl.Sig(num("A"), p("a", decl.PArray(num("A"))))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				items := args[0].Array()
				switch call.RetType.Tag {
				case decl.TypeTagInt, decl.TypeTagLong:
					var total int64
					for _, x := range items {
						var ok bool
						if total, ok = addInt(total, x.Int()); !ok {
							return intResult(call, total, false)
						}
					}
					return intResult(call, total, true)
				}
				var total float64
				for _, x := range items {
					total += x.Float()
				}
				return floatResult(call, total)
			},
			Doc: "Sum of the items; zero for an empty array.",
		},
		{
			Name: "a.map",
			Sigs: decl.Sigs{decl.Sig(decl.PArray(b), p("a", arrA), p("fcn", decl.PFcn([]*decl.Pattern{a}, b)))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				items, fcn := args[0].Array(), args[1].Fcn()
				out := make([]decl.Value, len(items))
				for i, x := range items {
					out[i] = fcn.Call([]decl.Value{x})
				}
				return decl.ArrayValue(call.RetType, out)
			},
			Doc: "Apply fcn to each item.",
		},
		{
			Name: "a.filter",
			Sigs: decl.Sigs{decl.Sig(arrA, p("a", arrA), p("fcn", decl.PFcn([]*decl.Pattern{a}, decl.PBoolean)))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				items, fcn := args[0].Array(), args[1].Fcn()
				var out []decl.Value
				for _, x := range items {
					if fcn.Call([]decl.Value{x}).Bool() {
						out = append(out, x)
					}
				}
				return decl.ArrayValue(call.RetType, out)
			},
			Doc: "Items for which fcn is true.",
		},
		{
			Name: "a.count",
			Sigs: decl.Sigs{decl.Sig(decl.PInt, p("a", arrA), p("fcn", decl.PFcn([]*decl.Pattern{a}, decl.PBoolean)))},
			Impl: func(_ *Call, args []decl.Value) decl.Value {
				n := 0
				for _, x := range args[0].Array() {
					if args[1].Fcn().Call([]decl.Value{x}).Bool() {
						n++
					}
				}
				return decl.IntValue(int64(n))
			},
		},
		{
			Name: "a.sort",
			Sigs: decl.Sigs{decl.Sig(arrA, p("a", arrA))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				out := slices.Clone(args[0].Array())
				slices.SortStableFunc(out, decl.Compare)
				return decl.ArrayValue(call.RetType, out)
			},
		},
	}
}
