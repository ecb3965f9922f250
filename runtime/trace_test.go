package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracerRecordsCalls(t *testing.T) {
	e := compileEngine(t, `{"input": "int", "output": "int",
		"fcns": {"twice": {"params": [{"x": "int"}], "ret": "int", "do": {"*": ["x", 2]}}},
		"action": [{"log": ["input"]}, {"u.twice": "input"}]}`, Options{LogSink: (&SinkRecorder{}).Sink})
	require.NoError(t, e.Begin())

	tracer := NewExecutionTracer()
	e.SetTracer(tracer)
	_, err := e.Action(3)
	require.NoError(t, err)

	data := tracer.Data(e.ID())
	require.Len(t, data.Events, 5)

	kinds := make([]TraceEventKind, len(data.Events))
	targets := make([]string, len(data.Events))
	for i, ev := range data.Events {
		kinds[i] = ev.Kind
		targets[i] = ev.Target
	}
	assert.Equal(t, []TraceEventKind{EventEnter, EventLog, EventEnter, EventExit, EventExit}, kinds)
	assert.Equal(t, []string{"action", "", "u.twice", "u.twice", "action"}, targets)

	call := data.Events[2]
	assert.Equal(t, data.Events[0].ID, call.ParentID)
	assert.Equal(t, []string{"3"}, call.Arguments)
	assert.Equal(t, "6", data.Events[3].ReturnValue)
	assert.Equal(t, "6", data.Events[4].ReturnValue)
	assert.Equal(t, 0, data.Events[4].ParentID)
	assert.Equal(t, []string{"3"}, data.Events[1].Arguments)
}

func TestTracerRecordsFailures(t *testing.T) {
	e := compileEngine(t, `{"input": "int", "output": "int",
		"fcns": {"div": {"params": [{"x": "int"}], "ret": "int", "do": {"//": [10, "x"]}}},
		"action": {"u.div": "input"}}`)
	require.NoError(t, e.Begin())
	tracer := NewExecutionTracer()
	e.SetTracer(tracer)

	_, err := e.Action(0)
	require.Error(t, err)

	data := tracer.Data(e.ID())
	require.Len(t, data.Events, 4)
	assert.Equal(t, errUnwound.Error(), data.Events[2].ErrorMessage)
	assert.Empty(t, data.Events[2].ReturnValue)
	assert.Equal(t, err.Error(), data.Events[3].ErrorMessage)
}
