package loader

import (
	"testing"

	"github.com/panyam/pfa/decl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealedScopes(t *testing.T) {
	root := NewRootTypeScope(map[string]*Type{"input": decl.IntType})
	body := root.Push()
	require.NoError(t, body.Let("total", decl.LongType))

	inner := body.Push()
	st, err := inner.Settable("total")
	require.NoError(t, err)
	assert.Equal(t, decl.LongType, st)

	loop := body.PushSealed()
	require.NoError(t, loop.Let("x", decl.IntType))
	_, err = loop.Settable("x")
	assert.NoError(t, err)
	_, err = loop.Settable("total")
	assert.ErrorContains(t, err, "sealed")
	_, err = loop.Push().Settable("total")
	assert.ErrorContains(t, err, "sealed")

	_, err = body.Settable("nothing")
	assert.ErrorContains(t, err, "not defined")
	assert.Error(t, inner.Let("total", decl.IntType))
}
