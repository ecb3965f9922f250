package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/panyam/pfa/decl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdatePathCopiesOnWrite(t *testing.T) {
	inner := decl.ArrayType(decl.IntType)
	outer := decl.MapType(inner)
	original := decl.MapValue(outer, map[string]Value{
		"a": decl.ArrayValue(inner, []Value{decl.IntValue(1), decl.IntValue(2)}),
		"b": decl.ArrayValue(inner, []Value{decl.IntValue(3)}),
	})
	path := []pathIndex{
		{key: decl.StringValue("a"), container: outer},
		{key: decl.IntValue(1), container: inner},
	}

	updated := updatePath(original, path, func(old Value) Value {
		return decl.IntValue(old.Int() * 10)
	}, "test")

	assert.Equal(t, int64(20), getPath(updated, path, "test").Int())
	assert.Equal(t, int64(2), getPath(original, path, "test").Int())
	// untouched branches are shared
	assert.Same(t, &original.Map()["b"].Array()[0], &updated.Map()["b"].Array()[0])
}

func TestGetPathFailures(t *testing.T) {
	arr := decl.ArrayType(decl.IntType)
	v := decl.ArrayValue(arr, []Value{decl.IntValue(1)})
	assert.PanicsWithError(t, "p failed (code 2000): array index -1 out of range (length 1)",
		func() { getPath(v, []pathIndex{{key: decl.IntValue(-1), container: arr}}, "p") })

	m := decl.MapType(decl.IntType)
	mv := decl.MapValue(m, map[string]Value{})
	func() {
		defer func() {
			rf, ok := recover().(*RuntimeFailure)
			require.True(t, ok)
			assert.Equal(t, CodeKeyNotFound, rf.Code)
			assert.Equal(t, "p", rf.Pos)
		}()
		getPath(mv, []pathIndex{{key: decl.StringValue("x"), container: m}}, "p")
	}()
}

func TestReentrantLock(t *testing.T) {
	e := &Engine{program: &Program{options: Options{MaxCallDepth: 10}}}
	st := newExecState(context.Background(), e, routineAction)
	c := &Cell{Name: "c", Type: decl.IntType, Shared: true, value: decl.IntValue(1)}

	// an updater that reads the cell it updates must not deadlock
	out := c.Update(st, nil, func(old Value) Value {
		return decl.IntValue(old.Int() + c.Get(st, nil, "read").Int())
	}, "update")
	assert.Equal(t, int64(2), out.Int())
	assert.Empty(t, st.held)
}

func TestPoolKeyLocksAreShared(t *testing.T) {
	p := &Pool{Name: "p", Type: decl.IntType, Shared: true, entries: map[string]Value{}, locks: map[string]*sync.Mutex{}}
	assert.Same(t, p.keyLock("k"), p.keyLock("k"))
	assert.NotSame(t, p.keyLock("k"), p.keyLock("j"))
}

func TestRollbackRestoresFirstSnapshot(t *testing.T) {
	e := &Engine{program: &Program{options: Options{MaxCallDepth: 10}}}
	st := newExecState(context.Background(), e, routineAction)
	c := &Cell{Name: "c", Type: decl.IntType, Rollback: true, value: decl.IntValue(0)}

	set := func(n int64) func(Value) Value { return func(Value) Value { return decl.IntValue(n) } }
	c.Update(st, nil, set(1), "")
	c.Update(st, nil, set(2), "")
	assert.Equal(t, int64(2), c.Snapshot().Int())

	st.rollback()
	assert.Equal(t, int64(0), c.Snapshot().Int())
}

func TestSharedRollbackCellIsHeldUntilRelease(t *testing.T) {
	e := &Engine{program: &Program{options: Options{MaxCallDepth: 10}}}
	st := newExecState(context.Background(), e, routineAction)
	c := &Cell{Name: "c", Type: decl.IntType, Shared: true, Rollback: true, value: decl.IntValue(0)}

	c.Update(st, nil, func(old Value) Value { return decl.IntValue(old.Int() + 1) }, "")
	assert.True(t, st.held[&c.mu])
	assert.False(t, c.mu.TryLock())

	st.rollback()
	st.release()
	assert.Empty(t, st.held)
	assert.Equal(t, int64(0), c.Snapshot().Int())
}
