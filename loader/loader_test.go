package loader

import (
	"bytes"
	"testing"

	"github.com/panyam/pfa/lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderCachesByPath(t *testing.T) {
	files := NewMemoryResolver(map[string][]byte{
		"good.json": []byte(`{"input": "int", "output": "int", "action": {"+": ["input", 1]}}`),
		"bad.yaml":  []byte("input: string\noutput: int\naction: {\"+\": [input, 1]}\n"),
	})
	l := NewLoader(nil, files, lib.Default())

	res, err := l.LoadFile("good.json")
	require.NoError(t, err)
	assert.False(t, res.HasErrors())
	require.NotNil(t, res.Config)

	again, err := l.LoadFile("good.json")
	require.NoError(t, err)
	assert.Same(t, res, again)

	res, err = l.LoadFile("bad.yaml")
	require.Error(t, err)
	assert.True(t, IsSemantic(err))
	assert.True(t, res.HasErrors())

	_, err = l.LoadFile("missing.json")
	assert.ErrorContains(t, err, "file not found")
}

func TestLoadFilesAndValidate(t *testing.T) {
	files := NewMemoryResolver(map[string][]byte{
		"a.json": []byte(`{"input": "int", "output": "int", "action": "input"}`),
		"b.json": []byte(`{"input": "int", "output": "int", "action": "nothing"}`),
	})
	l := NewLoader(nil, files, lib.Default())

	var out bytes.Buffer
	assert.True(t, l.LoadFilesAndValidate(&out, "a.json"))
	assert.Contains(t, out.String(), "File a.json - Validated Successfully")

	out.Reset()
	assert.False(t, l.LoadFilesAndValidate(&out, "a.json", "b.json"))
	assert.Contains(t, out.String(), "Error Validating File b.json")
	assert.Contains(t, out.String(), `unknown symbol "nothing"`)
}

func TestLoadBytes(t *testing.T) {
	l := NewLoader(nil, nil, lib.Default())
	res, err := l.LoadBytes([]byte(`{"input": "int", "output": "int", "action": {"if": true}}`), "inline")
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "inline", res.Path)
}
