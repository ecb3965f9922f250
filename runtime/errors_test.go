package runtime

import (
	"errors"
	"testing"

	"github.com/panyam/pfa/decl"
	"github.com/panyam/pfa/lib"
	"github.com/panyam/pfa/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFailureStatusCodes(t *testing.T) {
	e := compileEngine(t, `{"input": "int", "output": "int", "options": {"timeout.action": 5},
		"action": {"if": {"==": ["input", 0]}, "then": [{"while": true, "do": []}, 0], "else": {"//": [1, "input"]}}}`)

	_, err := e.Action(-1)
	require.NoError(t, err)

	_, err = e.Action(0)
	require.Error(t, err)
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))

	e = compileEngine(t, `{"input": "int", "output": "int", "action": {"error": "nope", "code": 7}}`)
	_, err = e.Action(1)
	require.Error(t, err)
	assert.Equal(t, codes.Aborted, status.Code(err))
	var rf *RuntimeFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, 7, rf.Code)
	assert.Equal(t, routineAction, rf.Routine)
}

func TestCompileErrorsAreInvalidArgument(t *testing.T) {
	cfg, err := loader.Read([]byte(`{"input": "int", "output": "string", "action": "input"}`))
	require.NoError(t, err)
	_, err = Compile(cfg, Options{})
	require.Error(t, err)
	require.True(t, loader.IsSemantic(err))

	var se *loader.SemanticError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, codes.InvalidArgument, status.Code(se))
}

func TestFloorDivisionOfDoubleIsRejected(t *testing.T) {
	cfg, err := loader.Read([]byte(`{"input": "int", "output": "double", "action": {"//": ["input", 2.5]}}`))
	require.NoError(t, err)
	_, err = Compile(cfg, Options{})
	require.Error(t, err)
	assert.True(t, loader.IsSemantic(err))
}

func TestLibraryBugsBecomeFailures(t *testing.T) {
	library := lib.NewLibrary()
	require.NoError(t, library.Register(&lib.LibFcn{
		Name: "nth",
		Sigs: decl.Sigs{decl.Sig(decl.PInt, decl.Param{Name: "i", Pattern: decl.PInt})},
		Impl: func(_ *lib.Call, args []decl.Value) decl.Value {
			var none []int64
			return decl.IntValue(none[args[0].Int()])
		},
	}))
	e := compileEngine(t, `{"input": "int", "output": "int",
		"cells": {"c": {"type": "int", "init": 0, "rollback": true}},
		"action": [{"cell": "c", "to": "input"}, {"nth": "input"}]}`, Options{Library: library})

	_, err := e.Action(3)
	var rf *RuntimeFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, CodeInternal, rf.Code)
	assert.Contains(t, rf.Message, "index out of range")

	c, _ := e.Cell("c")
	assert.Equal(t, int64(0), c.Int())
}
