package lib

import (
	"strings"
	"unicode/utf8"

	"github.com/panyam/pfa/decl"
)

func stringFcns() []*LibFcn {
	return []*LibFcn{
		{
			Name: "s.len",
			Sigs: decl.Sigs{decl.Sig(decl.PInt, p("s", decl.PString))},
			Impl: func(_ *Call, args []decl.Value) decl.Value {
				return decl.IntValue(int64(utf8.RuneCountInString(args[0].Str())))
			},
			Doc: "Number of characters in a string.",
		},
		{
			Name: "s.concat",
			Sigs: decl.Sigs{decl.Sig(decl.PString, p("x", decl.PString), p("y", decl.PString))},
			Impl: func(_ *Call, args []decl.Value) decl.Value {
				return decl.StringValue(args[0].Str() + args[1].Str())
			},
			Doc: "Append y to x.",
		},
		{
			Name: "s.substr",
			Sigs: decl.Sigs{decl.Sig(decl.PString, p("s", decl.PString), p("start", decl.PInt), p("end", decl.PInt))},
			Impl: func(_ *Call, args []decl.Value) decl.Value {
				runes := []rune(args[0].Str())
				lo, hi := sliceBounds(len(runes), args[1].Int(), args[2].Int())
				return decl.StringValue(string(runes[lo:hi]))
			},
			Doc: "Characters from start (inclusive) to end (exclusive); negative indexes count from the end.",
		},
		{
			Name: "s.contains",
			Sigs: decl.Sigs{decl.Sig(decl.PBoolean, p("haystack", decl.PString), p("needle", decl.PString))},
			Impl: func(_ *Call, args []decl.Value) decl.Value {
				return decl.BoolValue(strings.Contains(args[0].Str(), args[1].Str()))
			},
		},
		{
			Name: "s.upper",
			Sigs: decl.Sigs{decl.Sig(decl.PString, p("s", decl.PString))},
			Impl: func(_ *Call, args []decl.Value) decl.Value { return decl.StringValue(strings.ToUpper(args[0].Str())) },
		},
		{
			Name: "s.lower",
			Sigs: decl.Sigs{decl.Sig(decl.PString, p("s", decl.PString))},
			Impl: func(_ *Call, args []decl.Value) decl.Value { return decl.StringValue(strings.ToLower(args[0].Str())) },
		},
		{
			Name: "s.join",
			Sigs: decl.Sigs{decl.Sig(decl.PString, p("array", decl.PArray(decl.PString)), p("sep", decl.PString))},
			Impl: func(_ *Call, args []decl.Value) decl.Value {
				items := args[0].Array()
				parts := make([]string, len(items))
				for i, x := range items {
					parts[i] = x.Str()
				}
				return decl.StringValue(strings.Join(parts, args[1].Str()))
			},
		},
	}
}

// sliceBounds normalizes [start, end) against a length the way the
// substring and subsequence functions do: negative indexes count from the
// end and everything is clamped.
func sliceBounds(length int, start, end int64) (int, int) {
	n := int64(length)
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	start = max(0, min(start, n))
	end = max(0, min(end, n))
	if end < start {
		end = start
	}
	return int(start), int(end)
}
