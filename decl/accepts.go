package decl

// Accepts reports whether every value producible under writer can be consumed
// safely as reader.
func Accepts(reader, writer *Type) bool {
	return AcceptsMemo(reader, writer, nil, true)
}

// AcceptsMemo is Accepts with the record recursion guard exposed.  visited holds
// the full names of reader records already being checked further up the stack;
// checkRecord=false performs only the nominal part of a record comparison.
func AcceptsMemo(reader, writer *Type, visited map[string]bool, checkRecord bool) bool {
	if writer.Tag == TypeTagException {
		return true
	}

	switch {
	case reader.Tag == TypeTagNull && writer.Tag == TypeTagNull,
		reader.Tag == TypeTagBoolean && writer.Tag == TypeTagBoolean,
		reader.Tag == TypeTagBytes && writer.Tag == TypeTagBytes,
		reader.Tag == TypeTagString && writer.Tag == TypeTagString:
		return true

	case reader.IsNumeric() && writer.IsNumeric():
		// Int < Long < Float < Double: a reader takes anything at or left of it
		return numericRank(writer.Tag) <= numericRank(reader.Tag)

	case reader.Tag == TypeTagArray && writer.Tag == TypeTagArray:
		return AcceptsMemo(reader.Items, writer.Items, visited, checkRecord)

	case reader.Tag == TypeTagMap && writer.Tag == TypeTagMap:
		return AcceptsMemo(reader.Values, writer.Values, visited, checkRecord)

	case reader.Tag == TypeTagFixed && writer.Tag == TypeTagFixed:
		return reader.Size == writer.Size && reader.FullName() == writer.FullName()

	case reader.Tag == TypeTagEnum && writer.Tag == TypeTagEnum:
		if reader.FullName() != writer.FullName() {
			return false
		}
		for _, s := range writer.Symbols {
			if reader.SymbolIndex(s) < 0 {
				return false
			}
		}
		return true

	case reader.Tag == TypeTagRecord && writer.Tag == TypeTagRecord:
		return acceptsRecord(reader, writer, visited, checkRecord)

	case reader.Tag == TypeTagUnion && writer.Tag == TypeTagUnion:
		return unionCovers(reader.Members, writer.Members, visited, checkRecord)

	case reader.Tag == TypeTagUnion:
		for _, m := range reader.Members {
			if AcceptsMemo(m, writer, visited, checkRecord) {
				return true
			}
		}
		return false

	case writer.Tag == TypeTagUnion:
		for _, m := range writer.Members {
			if !AcceptsMemo(reader, m, visited, checkRecord) {
				return false
			}
		}
		return true

	case reader.Tag == TypeTagFunction && writer.Tag == TypeTagFunction:
		if len(reader.Params) != len(writer.Params) {
			return false
		}
		for i, rp := range reader.Params {
			// parameters are contravariant
			if !AcceptsMemo(writer.Params[i], rp, visited, checkRecord) {
				return false
			}
		}
		return AcceptsMemo(reader.Ret, writer.Ret, visited, checkRecord)
	}
	return false
}

func acceptsRecord(reader, writer *Type, visited map[string]bool, checkRecord bool) bool {
	memo := make(map[string]bool, len(visited)+1)
	for k := range visited {
		memo[k] = true
	}

	if checkRecord && !memo[writer.FullName()] {
		// A shallow pass first: it can prove incompatibility without trusting
		// the recursion guard below.
		if !recordFieldsOkay(reader, writer, memo, false) {
			return false
		}
		memo[reader.FullName()] = true
		if !recordFieldsOkay(reader, writer, memo, checkRecord) {
			return false
		}
	}
	return reader.FullName() == writer.FullName()
}

func recordFieldsOkay(reader, writer *Type, memo map[string]bool, checkRecord bool) bool {
	for _, rf := range reader.Fields {
		wf := writer.Field(rf.Name)
		if !rf.HasDefault {
			if wf == nil || !AcceptsMemo(rf.Type, wf.Type, memo, checkRecord) {
				return false
			}
		} else if wf != nil && !AcceptsMemo(rf.Type, wf.Type, memo, checkRecord) {
			// a missing writer field is fine when the reader has a default,
			// a present one with the wrong type is not
			return false
		}
	}
	return true
}

// unionCovers finds a one-to-one assignment of writer members onto distinct
// reader members (bipartite matching by augmenting paths).
func unionCovers(readers, writers []*Type, visited map[string]bool, checkRecord bool) bool {
	if len(writers) > len(readers) {
		return false
	}
	edges := make([][]int, len(writers))
	for w, wt := range writers {
		for r, rt := range readers {
			if AcceptsMemo(rt, wt, visited, checkRecord) {
				edges[w] = append(edges[w], r)
			}
		}
	}

	owner := make([]int, len(readers))
	for i := range owner {
		owner[i] = -1
	}
	var augment func(w int, seen []bool) bool
	augment = func(w int, seen []bool) bool {
		for _, r := range edges[w] {
			if seen[r] {
				continue
			}
			seen[r] = true
			if owner[r] < 0 || augment(owner[r], seen) {
				owner[r] = w
				return true
			}
		}
		return false
	}
	for w := range writers {
		if !augment(w, make([]bool, len(readers))) {
			return false
		}
	}
	return true
}
