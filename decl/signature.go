package decl

import (
	"fmt"
	"slices"
	"strings"

	gfn "github.com/panyam/goutils/fn"
)

// IncompatibleTypes is raised when the observations of one label cannot be
// reconciled into a single type.
type IncompatibleTypes struct {
	Label string
	Msg   string
}

func (e *IncompatibleTypes) Error() string {
	if e.Label == "" {
		return e.Msg
	}
	return fmt.Sprintf("label %s: %s", e.Label, e.Msg)
}

func incompatible(kind string, candidates []*Type) *IncompatibleTypes {
	return &IncompatibleTypes{Msg: fmt.Sprintf("incompatible %s types: %s", kind,
		strings.Join(gfn.Map(candidates, (*Type).String), " "))}
}

type Param struct {
	Name    string
	Pattern *Pattern
}

// Signature is one overload of a library or user function.
type Signature struct {
	Params []Param
	Ret    *Pattern
}

// Sig is a shorthand for building a signature from name/pattern pairs.
func Sig(ret *Pattern, params ...Param) *Signature {
	return &Signature{Params: params, Ret: ret}
}

func (s *Signature) String() string {
	params := gfn.Map(s.Params, func(p Param) string { return p.Name + ": " + p.Pattern.String() })
	return fmt.Sprintf("(%s) -> %s", strings.Join(params, ", "), s.Ret)
}

// Resolution is the outcome of matching a signature against call-site
// argument types.
type Resolution struct {
	Signature  *Signature
	ParamTypes []*Type
	RetType    *Type
}

// labelData collects every type a label was matched against.
type labelData struct {
	members []*Type
}

func (l *labelData) add(t *Type) {
	l.members = append(l.members, t)
}

func (l *labelData) determineAssignment() (*Type, error) {
	return BroadestType(l.members)
}

// Accepts matches the argument types against this signature.  It returns
// (nil, nil) when the patterns do not match and an *IncompatibleTypes when they
// match but the label observations cannot be unified.
func (s *Signature) Accepts(args []*Type, names *NameAllocator) (*Resolution, error) {
	if len(s.Params) != len(args) {
		return nil, nil
	}
	labels := map[string]*labelData{}
	for i, p := range s.Params {
		if !check(p.Pattern, args[i], labels, false, false) {
			return nil, nil
		}
	}

	assignments := make(map[string]*Type, len(labels))
	for label, ld := range labels {
		t, err := ld.determineAssignment()
		if err != nil {
			if it, ok := err.(*IncompatibleTypes); ok {
				it.Label = label
			}
			return nil, err
		}
		assignments[label] = t
	}

	res := &Resolution{Signature: s, ParamTypes: make([]*Type, len(args))}
	for i, p := range s.Params {
		res.ParamTypes[i] = assign(p.Pattern, args[i], assignments, names)
	}
	res.RetType = assignRet(s.Ret, assignments, names)
	return res, nil
}

// Sigs is an overload set; members are tried in declared order.
type Sigs []*Signature

// ResolveError reports that no overload of a function matched.
type ResolveError struct {
	Name string
	Args []*Type
	// Cause is set when some overload matched structurally but its labels
	// could not be assigned.
	Cause error
}

func (e *ResolveError) Error() string {
	args := strings.Join(gfn.Map(e.Args, (*Type).String), ", ")
	if e.Cause != nil {
		return fmt.Sprintf("parameters of function %q do not accept [%s]: %v", e.Name, args, e.Cause)
	}
	return fmt.Sprintf("parameters of function %q do not accept [%s]", e.Name, args)
}

func (e *ResolveError) Unwrap() error { return e.Cause }

// Resolve returns the first overload accepting args.
func (sigs Sigs) Resolve(name string, args []*Type, names *NameAllocator) (*Resolution, error) {
	var cause error
	for _, s := range sigs {
		res, err := s.Accepts(args, names)
		if err != nil {
			if cause == nil {
				cause = err
			}
			continue
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, &ResolveError{Name: name, Args: args, Cause: cause}
}

// check decides whether arg fits pat, recording wildcard observations in
// labels.  strict disables numeric widening (used inside unions and records);
// reversed flips the widening direction for callback parameters.
func check(pat *Pattern, arg *Type, labels map[string]*labelData, strict, reversed bool) bool {
	if pat.Tag == TypeTagWildcard {
		if len(pat.OneOf) > 0 && !slices.ContainsFunc(pat.OneOf, arg.Equals) {
			return false
		}
		observe(labels, pat.Label, arg)
		return true
	}

	if pat.IsNumeric() && arg.IsNumeric() {
		pr, ar := numericRank(pat.Tag), numericRank(arg.Tag)
		switch {
		case pr == ar:
			return true
		case strict:
			return false
		case reversed:
			return pr < ar
		default:
			return ar < pr
		}
	}

	switch {
	case pat.Tag == TypeTagNull && arg.Tag == TypeTagNull,
		pat.Tag == TypeTagBoolean && arg.Tag == TypeTagBoolean,
		pat.Tag == TypeTagBytes && arg.Tag == TypeTagBytes,
		pat.Tag == TypeTagString && arg.Tag == TypeTagString:
		return true

	case pat.Tag == TypeTagArray && arg.Tag == TypeTagArray:
		return check(pat.Items, arg.Items, labels, strict, reversed)

	case pat.Tag == TypeTagMap && arg.Tag == TypeTagMap:
		return check(pat.Values, arg.Values, labels, strict, reversed)

	case pat.Tag == TypeTagUnion && arg.Tag == TypeTagUnion:
		// every concrete member consumes one distinct pattern branch
		available := make([]bool, len(pat.Members))
		for _, a := range arg.Members {
			found := false
			for i, p := range pat.Members {
				if !available[i] && check(p, a, labels, true, reversed) {
					available[i] = true
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true

	case pat.Tag == TypeTagUnion:
		for _, p := range pat.Members {
			if check(p, arg, labels, true, reversed) {
				return true
			}
		}
		return false

	case pat.Tag == TypeTagFixed && arg.Tag == TypeTagFixed:
		if pat.FullName != "" {
			return pat.FullName == arg.FullName()
		}
		return pat.Size == arg.Size

	case pat.Tag == TypeTagEnum && arg.Tag == TypeTagEnum:
		if pat.FullName != "" {
			return pat.FullName == arg.FullName()
		}
		return strings.Join(pat.Symbols, ",") == strings.Join(arg.Symbols, ",")

	case pat.Tag == TypeTagRecord && arg.Tag == TypeTagRecord:
		if pat.FullName != "" {
			return pat.FullName == arg.FullName()
		}
		if len(pat.Fields) != len(arg.Fields) {
			return false
		}
		for _, pf := range pat.Fields {
			af := arg.Field(pf.Name)
			if af == nil || !check(pf.Pattern, af.Type, labels, true, reversed) {
				return false
			}
		}
		return true

	case pat.Tag == TypeTagWildRecord && arg.Tag == TypeTagRecord:
		observe(labels, pat.Label, arg)
		for _, pf := range pat.Fields {
			af := arg.Field(pf.Name)
			if af == nil || !check(pf.Pattern, af.Type, labels, true, reversed) {
				return false
			}
		}
		return true

	case pat.Tag == TypeTagFunction && arg.Tag == TypeTagFunction:
		if len(pat.Params) != len(arg.Params) {
			return false
		}
		for i, p := range pat.Params {
			if !check(p, arg.Params[i], labels, strict, true) {
				return false
			}
		}
		return check(pat.Ret, arg.Ret, labels, strict, false)

	case pat.Tag == TypeTagException || arg.Tag == TypeTagException:
		return pat.Tag == arg.Tag
	}
	return false
}

func observe(labels map[string]*labelData, label string, t *Type) {
	ld, ok := labels[label]
	if !ok {
		ld = &labelData{}
		labels[label] = ld
	}
	ld.add(t)
}

// assign computes the concrete type a parameter takes once labels are fixed.
func assign(pat *Pattern, arg *Type, assignments map[string]*Type, names *NameAllocator) *Type {
	switch pat.Tag {
	case TypeTagWildcard, TypeTagWildRecord:
		return assignments[pat.Label]
	case TypeTagInt, TypeTagLong, TypeTagFloat, TypeTagDouble:
		return PrimitiveType(pat.Tag)
	case TypeTagArray:
		return ArrayType(assign(pat.Items, arg.Items, assignments, names))
	case TypeTagMap:
		return MapType(assign(pat.Values, arg.Values, assignments, names))
	case TypeTagUnion:
		if arg.Tag != TypeTagUnion {
			// a plain argument widened into the declared union
			return assignRet(pat, assignments, names)
		}
	}
	return arg
}

// assignRet materializes the return pattern with labels substituted.
func assignRet(pat *Pattern, assignments map[string]*Type, names *NameAllocator) *Type {
	switch pat.Tag {
	case TypeTagWildcard, TypeTagWildRecord:
		return assignments[pat.Label]
	case TypeTagArray:
		return ArrayType(assignRet(pat.Items, assignments, names))
	case TypeTagMap:
		return MapType(assignRet(pat.Values, assignments, names))
	case TypeTagUnion:
		return UnionType(gfn.Map(pat.Members, func(m *Pattern) *Type { return assignRet(m, assignments, names) })...)
	case TypeTagFunction:
		return FunctionType(gfn.Map(pat.Params, func(m *Pattern) *Type { return assignRet(m, assignments, names) }),
			assignRet(pat.Ret, assignments, names))
	}
	return pat.ToType(names)
}

// BroadestType finds the narrowest single type covering every candidate.
func BroadestType(candidates []*Type) (*Type, error) {
	if len(candidates) == 0 {
		return nil, &IncompatibleTypes{Msg: "empty list of types"}
	}
	first := candidates[0]
	allTag := func(tags ...TypeTag) bool {
		return allOf(candidates, func(c *Type) bool {
			return slices.Contains(tags, c.Tag)
		})
	}
	sameName := func() bool {
		return allOf(candidates, func(c *Type) bool { return c.FullName() == first.FullName() })
	}

	switch {
	case allTag(TypeTagNull), allTag(TypeTagBoolean), allTag(TypeTagBytes), allTag(TypeTagString):
		return first, nil
	case allTag(TypeTagInt):
		return IntType, nil
	case allTag(TypeTagInt, TypeTagLong):
		return LongType, nil
	case allTag(TypeTagInt, TypeTagLong, TypeTagFloat):
		return FloatType, nil
	case allTag(TypeTagInt, TypeTagLong, TypeTagFloat, TypeTagDouble):
		return DoubleType, nil

	case allTag(TypeTagArray):
		items, err := BroadestType(gfn.Map(candidates, func(c *Type) *Type { return c.Items }))
		if err != nil {
			return nil, err
		}
		return ArrayType(items), nil

	case allTag(TypeTagMap):
		values, err := BroadestType(gfn.Map(candidates, func(c *Type) *Type { return c.Values }))
		if err != nil {
			return nil, err
		}
		return MapType(values), nil

	case allTag(TypeTagFixed):
		if !sameName() {
			return nil, incompatible("fixed", candidates)
		}
		return first, nil
	case allTag(TypeTagEnum):
		if !sameName() {
			return nil, incompatible("enum", candidates)
		}
		return first, nil
	case allTag(TypeTagRecord):
		if !sameName() {
			return nil, incompatible("record", candidates)
		}
		return first, nil
	case allTag(TypeTagFunction):
		if !allOf(candidates, first.Equals) {
			return nil, incompatible("function", candidates)
		}
		return first, nil
	}

	types := distinctTypes(candidates, nil)
	fixed, enum := 0, 0
	for _, t := range types {
		switch t.Tag {
		case TypeTagFixed:
			fixed++
		case TypeTagEnum:
			enum++
		}
	}
	if fixed > 1 {
		return nil, &IncompatibleTypes{Msg: "incompatible fixed types"}
	}
	if enum > 1 {
		return nil, &IncompatibleTypes{Msg: "incompatible enum types"}
	}
	if len(types) == 1 {
		return types[0], nil
	}
	return UnionType(types...), nil
}

func allOf[T any](items []T, pred func(T) bool) bool {
	for _, x := range items {
		if !pred(x) {
			return false
		}
	}
	return true
}

// distinctTypes flattens unions and drops candidates already accepted by an
// earlier survivor.  A candidate that accepts an earlier survivor replaces it
// in place.
func distinctTypes(candidates []*Type, out []*Type) []*Type {
	for _, c := range candidates {
		if c.Tag == TypeTagUnion {
			out = distinctTypes(c.Members, out)
			continue
		}
		if slices.ContainsFunc(out, func(y *Type) bool { return Accepts(y, c) }) {
			continue
		}
		i := 0
		for ; i < len(out); i++ {
			if Accepts(c, out[i]) {
				break
			}
		}
		if i == len(out) {
			out = append(out, c)
		} else {
			out[i] = c
		}
	}
	return out
}
