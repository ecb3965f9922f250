package loader

import (
	"errors"
	"testing"

	"github.com/panyam/pfa/decl"
	"github.com/panyam/pfa/lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func check(t *testing.T, src string) (*EngineConfig, []error) {
	t.Helper()
	cfg, err := Read([]byte(src))
	require.NoError(t, err)
	inf := NewInference(cfg, lib.Default(), decl.NewNameAllocator())
	inf.Eval()
	return cfg, inf.Errors
}

func TestInferenceAnnotates(t *testing.T) {
	cfg, errs := check(t, `{"input": "int", "output": "long",
		"action": [
			{"let": {"x": {"long": 2}}},
			{"+": ["input", "x"]}
		]}`)
	require.Empty(t, errs)

	call := cfg.Action[1].(*decl.Call)
	assert.Equal(t, decl.LongType, call.InferredType())
	require.NotNil(t, call.Resolution())
	assert.Equal(t, decl.LongType, call.Resolution().RetType)
	assert.Equal(t, []*decl.Type{decl.LongType, decl.LongType}, call.Resolution().ParamTypes)
}

func TestSemanticErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		msg  string
	}{
		{"let escapes then",
			`{"input": "int", "output": "int", "action": [{"if": true, "then": {"let": {"x": 1}}}, "x"]}`,
			`unknown symbol "x"`},
		{"shadowing",
			`{"input": "int", "output": "int", "action": [{"let": {"x": 1}}, {"do": {"let": {"x": 2}}}, "x"]}`,
			`already defined`},
		{"set undefined",
			`{"input": "int", "output": "int", "action": [{"set": {"y": 1}}, 1]}`,
			`not defined`},
		{"no overload",
			`{"input": "string", "output": "int", "action": {"+": ["input", 1]}}`,
			`"+"`},
		{"unknown function",
			`{"input": "int", "output": "int", "action": {"nope": ["input"]}}`,
			`unknown function "nope"`},
		{"output mismatch",
			`{"input": "int", "output": "int", "action": {"long": 1}}`,
			`output type`},
		{"fold without zero",
			`{"method": "fold", "input": "int", "output": "int", "action": "input"}`,
			`zero`},
		{"zero on map",
			`{"input": "int", "output": "int", "zero": 0, "action": "input"}`,
			`only fold`},
		{"bad cell init",
			`{"input": "int", "output": "int", "cells": {"c": {"type": "int", "init": "x"}}, "action": {"cell": "c"}}`,
			`init of cell "c"`},
		{"unknown cell",
			`{"input": "int", "output": "int", "action": {"cell": "c"}}`,
			`unknown cell "c"`},
		{"sealed foreach",
			`{"input": {"type": "array", "items": "int"}, "output": "int",
			  "action": [{"let": {"s": 0}}, {"foreach": "x", "in": "input", "do": {"set": {"s": "x"}}}, "s"]}`,
			`sealed`},
		{"function literal sets enclosing symbol",
			`{"input": {"type": "array", "items": "int"}, "output": {"type": "array", "items": "int"},
			  "action": [{"let": {"n": 0}},
			    {"a.map": ["input", {"params": [{"x": "int"}], "ret": "int", "do": [{"set": {"n": "x"}}, "x"]}]}]}`,
			`sealed`},
		{"top-level function reads input",
			`{"input": "int", "output": "int", "fcns": {"f": {"params": [{"x": "int"}], "ret": "int", "do": "input"}},
			  "action": {"u.f": "input"}}`,
			`unknown symbol "input"`},
		{"method",
			`{"method": "emit", "input": "int", "output": "int", "action": "input"}`,
			`unknown method`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, errs := check(t, c.src)
			require.NotEmpty(t, errs)
			err := errors.Join(errs...)
			assert.True(t, IsSemantic(err), "%v", err)
			assert.Contains(t, err.Error(), c.msg)
		})
	}
}

func TestIncompatibleLabelsReachCallSite(t *testing.T) {
	_, errs := check(t, `{"input": "null", "output": "null",
		"action": [
			{"let": {"a": {"type": {"type": "enum", "name": "A", "symbols": ["X"]}, "value": "X"}}},
			{"let": {"b": {"type": {"type": "enum", "name": "B", "symbols": ["Y"]}, "value": "Y"}}},
			{"a.append": [{"new": ["a"], "type": {"type": "array", "items": "A"}}, "b"]},
			null
		]}`)
	require.NotEmpty(t, errs)
	var it *decl.IncompatibleTypes
	assert.True(t, errors.As(errors.Join(errs...), &it))
}

func TestSchemaErrorsStopInference(t *testing.T) {
	_, errs := check(t, `{"input": "Missing", "output": "int", "action": 1}`)
	require.Len(t, errs, 1)
	var perr *SchemaParseError
	assert.ErrorAs(t, errs[0], &perr)
	assert.False(t, IsSemantic(errs[0]))
}
