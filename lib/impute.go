package lib

import "github.com/panyam/pfa/decl"

func imputeFcns() []*LibFcn {
	a := wild("A")
	return []*LibFcn{
		{
			Name: "impute.defaultOnNull",
			Sigs: decl.Sigs{decl.Sig(a, p("x", decl.PUnion(decl.PNull, a)), p("default", a))},
			Impl: func(_ *Call, args []decl.Value) decl.Value {
				if args[0].Type.Tag == decl.TypeTagNull {
					return args[1]
				}
				return args[0]
			},
			Doc: "x, or default when x is null.",
		},
		{
			Name: "impute.errorOnNull",
			Sigs: decl.Sigs{decl.Sig(a, p("x", decl.PUnion(decl.PNull, a)))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				if args[0].Type.Tag == decl.TypeTagNull {
					Fail(call.Name, 21000, "encountered null")
				}
				return args[0]
			},
		},
	}
}
