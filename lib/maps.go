package lib

import (
	"maps"
	"slices"

	"github.com/panyam/pfa/decl"
)

// CodeMissingKey is raised by functions that require a key to be present.
const CodeMissingKey = 26000

func mapFcns() []*LibFcn {
	a := wild("A")
	mapA := decl.PMap(a)
	return []*LibFcn{
		{
			Name: "map.len",
			Sigs: decl.Sigs{decl.Sig(decl.PInt, p("m", mapA))},
			Impl: func(_ *Call, args []decl.Value) decl.Value { return decl.IntValue(int64(len(args[0].Map()))) },
		},
		{
			Name: "map.keys",
			Sigs: decl.Sigs{decl.Sig(decl.PArray(decl.PString), p("m", mapA))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				keys := slices.Sorted(maps.Keys(args[0].Map()))
				out := make([]decl.Value, len(keys))
				for i, k := range keys {
					out[i] = decl.StringValue(k)
				}
				return decl.ArrayValue(call.RetType, out)
			},
			Doc: "Keys of the map in sorted order.",
		},
		{
			Name: "map.values",
			Sigs: decl.Sigs{decl.Sig(decl.PArray(a), p("m", mapA))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				m := args[0].Map()
				out := make([]decl.Value, 0, len(m))
				for _, k := range slices.Sorted(maps.Keys(m)) {
					out = append(out, m[k])
				}
				return decl.ArrayValue(call.RetType, out)
			},
			Doc: "Values of the map, ordered by key.",
		},
		{
			Name: "map.containsKey",
			Sigs: decl.Sigs{decl.Sig(decl.PBoolean, p("m", mapA), p("key", decl.PString))},
			Impl: func(_ *Call, args []decl.Value) decl.Value {
				_, ok := args[0].Map()[args[1].Str()]
				return decl.BoolValue(ok)
			},
		},
		{
			Name: "map.add",
			Sigs: decl.Sigs{decl.Sig(mapA, p("m", mapA), p("key", decl.PString), p("value", a))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				out := maps.Clone(args[0].Map())
				if out == nil {
					out = map[string]decl.Value{}
				}
				out[args[1].Str()] = args[2]
				return decl.MapValue(call.RetType, out)
			},
			Doc: "A new map with key set to value.",
		},
		{
			Name: "map.get",
			Sigs: decl.Sigs{decl.Sig(a, p("m", mapA), p("key", decl.PString))},
			Impl: func(call *Call, args []decl.Value) decl.Value {
				v, ok := args[0].Map()[args[1].Str()]
				if !ok {
					Fail(call.Name, CodeMissingKey, "key %q not found", args[1].Str())
				}
				return v
			},
		},
	}
}
