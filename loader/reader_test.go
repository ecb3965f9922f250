package loader

import (
	"testing"

	"github.com/panyam/pfa/decl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareJSON = `{
	"name": "square",
	"input": "double",
	"output": "double",
	"metadata": {"owner": "models"},
	"options": {"timeout": 100},
	"cells": {"count": {"type": "long", "init": 0, "rollback": true}},
	"action": [
		{"cell": "count", "to": {"+": [{"cell": "count"}, 1]}},
		{"*": ["input", "input"]}
	]
}`

const squareYAML = `
name: square
input: double
output: double
metadata: {owner: models}
options: {timeout: 100}
cells:
  count: {type: long, init: 0, rollback: true}
action:
  - {cell: count, to: {"+": [{cell: count}, 1]}}
  - {"*": [input, input]}
`

func TestReadJSONAndYAMLAgree(t *testing.T) {
	for name, src := range map[string]string{"json": squareJSON, "yaml": squareYAML} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Read([]byte(src))
			require.NoError(t, err)
			assert.Equal(t, "square", cfg.Name)
			assert.Equal(t, decl.MethodMap, cfg.Method)
			assert.Equal(t, map[string]string{"owner": "models"}, cfg.Metadata)
			assert.Contains(t, cfg.Options, "timeout")
			require.Contains(t, cfg.Cells, "count")
			assert.True(t, cfg.Cells["count"].Rollback)
			assert.False(t, cfg.Cells["count"].Shared)
			require.Len(t, cfg.Action, 2)

			call, ok := cfg.Action[1].(*decl.Call)
			require.True(t, ok, "got %T", cfg.Action[1])
			assert.Equal(t, "*", call.Name)
			assert.Len(t, call.Args, 2)
		})
	}
}

func TestReadLiterals(t *testing.T) {
	cfg, err := Read([]byte(`{"input": "null", "output": "null", "action": [
		1, 3000000000, 2.5, true, null, ["hello"], {"long": 7}, {"float": 1.5}, {"base64": "aGk="}]}`))
	require.NoError(t, err)
	tags := make([]decl.TypeTag, len(cfg.Action))
	for i, x := range cfg.Action {
		lit, ok := x.(*decl.Literal)
		require.True(t, ok, "action %d is %T", i, x)
		tags[i] = lit.Tag
	}
	assert.Equal(t, []decl.TypeTag{
		decl.TypeTagInt, decl.TypeTagLong, decl.TypeTagDouble, decl.TypeTagBoolean, decl.TypeTagNull,
		decl.TypeTagString, decl.TypeTagLong, decl.TypeTagFloat, decl.TypeTagBytes,
	}, tags)
	assert.Equal(t, []byte("hi"), cfg.Action[8].(*decl.Literal).Value)
}

func TestSyntaxErrors(t *testing.T) {
	cases := map[string]string{
		"not an object":    `[1, 2]`,
		"bad json":         `{"input": `,
		"no action":        `{"input": "int", "output": "int"}`,
		"no input":         `{"output": "int", "action": 1}`,
		"unknown field":    `{"input": "int", "output": "int", "action": 1, "actions": 2}`,
		"bad symbol":       `{"input": "int", "output": "int", "action": "not a symbol"}`,
		"bad int literal":  `{"input": "int", "output": "int", "action": {"int": 3000000000}}`,
		"if without then":  `{"input": "int", "output": "int", "action": {"if": true}}`,
		"unknown form":     `{"input": "int", "output": "int", "action": {"foo": 1, "bar": 2}}`,
		"cast needs cases": `{"input": "int", "output": "int", "action": {"cast": "input", "cases": []}}`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Read([]byte(src))
			var se *SyntaxError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestAnnotationsAreIgnored(t *testing.T) {
	cfg, err := Read([]byte(`{"@": "line 1", "input": "int", "output": "int",
		"action": {"@": "line 3", "+": ["input", 1]}}`))
	require.NoError(t, err)
	require.Len(t, cfg.Action, 1)
	_, ok := cfg.Action[0].(*decl.Call)
	assert.True(t, ok)
}

func TestOneElementArraysOutsideExpressions(t *testing.T) {
	cfg, err := Read([]byte(`{"input": {"type": "array", "items": "int"}, "output": "int",
		"action": ["input"],
		"end": {"do": ["x"]},
		"begin": {"a.len": ["input"]}}`))
	require.NoError(t, err)

	require.Len(t, cfg.Action, 1)
	ref, ok := cfg.Action[0].(*decl.Ref)
	require.True(t, ok, "action is %T", cfg.Action[0])
	assert.Equal(t, "input", ref.Name)

	do, ok := cfg.End[0].(*decl.Do)
	require.True(t, ok, "end is %T", cfg.End[0])
	require.Len(t, do.Body, 1)
	assert.IsType(t, &decl.Ref{}, do.Body[0])

	call, ok := cfg.Begin[0].(*decl.Call)
	require.True(t, ok, "begin is %T", cfg.Begin[0])
	require.Len(t, call.Args, 1)
	assert.IsType(t, &decl.Ref{}, call.Args[0])

	cfg, err = Read([]byte(`{"input": "int", "output": "string", "action": {"s.concat": [["a"], ["b"]]}}`))
	require.NoError(t, err)
	call = cfg.Action[0].(*decl.Call)
	require.Len(t, call.Args, 2)
	assert.Equal(t, "a", call.Args[0].(*decl.Literal).Value)
}
