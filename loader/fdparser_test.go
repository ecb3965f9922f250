package loader

import (
	"errors"
	"testing"

	"github.com/panyam/pfa/decl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	treeDecl = `{"type": "record", "name": "Tree", "namespace": "t", "fields": [
		{"name": "kids", "type": {"type": "array", "items": "Tree"}},
		{"name": "leaf", "type": ["null", {"type": "record", "name": "Leaf", "fields": [
			{"name": "color", "type": "Color"},
			{"name": "up", "type": ["null", "Tree"]}]}]}]}`
	colorDecl  = `{"type": "enum", "name": "Color", "namespace": "t", "symbols": ["RED", "GREEN"]}`
	forestDecl = `{"type": "map", "values": "t.Tree"}`
)

func TestForwardDeclarationsInAnyOrder(t *testing.T) {
	orders := [][]string{
		{treeDecl, colorDecl, forestDecl},
		{forestDecl, treeDecl, colorDecl},
		{colorDecl, forestDecl, treeDecl},
		{forestDecl, colorDecl, treeDecl},
	}
	for _, order := range orders {
		fdp := NewForwardDeclarationParser()
		parsed, err := fdp.Parse(order)
		require.NoError(t, err)
		require.Len(t, parsed, 3)

		tree := parsed[treeDecl]
		assert.Equal(t, "t.Tree", tree.FullName())
		// self reference resolves to the same type
		assert.Same(t, tree, tree.Field("kids").Type.Items)

		// mutual reference through a nested definition, which inherits the
		// enclosing namespace
		leaf := tree.Field("leaf").Type.Members[1]
		assert.Equal(t, "t.Leaf", leaf.FullName())
		assert.Same(t, tree, leaf.Field("up").Type.Members[1])
		assert.Same(t, parsed[colorDecl], leaf.Field("color").Type)
		assert.Same(t, tree, parsed[forestDecl].Values)

		named, ok := fdp.Lookup("t.Leaf")
		assert.True(t, ok)
		assert.Same(t, leaf, named)
	}
}

func TestUnresolvableDeclarations(t *testing.T) {
	a := `{"type": "record", "name": "A", "fields": [{"name": "b", "type": "B"}]}`
	b := `{"type": "record", "name": "B", "fields": [{"name": "c", "type": "Missing"}]}`
	ok := `{"type": "array", "items": "int"}`

	parsed, err := NewForwardDeclarationParser().Parse([]string{a, b, ok})
	var perr *SchemaParseError
	require.True(t, errors.As(err, &perr))
	assert.Len(t, perr.Failures, 2)
	for _, f := range perr.Failures {
		var unknown *unknownTypeName
		assert.True(t, errors.As(f.Err, &unknown), "%v", f.Err)
	}
	assert.Contains(t, err.Error(), `"Missing"`)
	assert.True(t, parsed[ok].Equals(decl.ArrayType(decl.IntType)))
	assert.NotContains(t, parsed, a)
}

func TestMalformedDeclarations(t *testing.T) {
	cases := map[string]string{
		"union in union":    `["int", ["null", "string"]]`,
		"duplicate branch":  `["int", "int"]`,
		"empty union":       `[]`,
		"no items":          `{"type": "array"}`,
		"bad name":          `{"type": "fixed", "name": "9x", "size": 2}`,
		"bad size":          `{"type": "fixed", "name": "F", "size": 0}`,
		"no symbols":        `{"type": "enum", "name": "E", "symbols": []}`,
		"duplicate field":   `{"type": "record", "name": "R", "fields": [{"name": "a", "type": "int"}, {"name": "a", "type": "int"}]}`,
		"bad default":       `{"type": "record", "name": "R", "fields": [{"name": "a", "type": "int", "default": "x"}]}`,
		"not json":          `{"type": `,
		"unknown primitive": `"integer"`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewForwardDeclarationParser().Parse([]string{src})
			assert.Error(t, err)
		})
	}
}

func TestRedefinitionMustMatch(t *testing.T) {
	same1 := `{"type": "fixed", "name": "H", "size": 4}`
	same2 := `{"type": "array", "items": {"type": "fixed", "name": "H", "size": 4}}`
	parsed, err := NewForwardDeclarationParser().Parse([]string{same1, same2})
	require.NoError(t, err)
	assert.Same(t, parsed[same1], parsed[same2].Items)

	other := `{"type": "fixed", "name": "H", "size": 8}`
	_, err = NewForwardDeclarationParser().Parse([]string{same1, other})
	assert.Error(t, err)
}
