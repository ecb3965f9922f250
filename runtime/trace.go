package runtime

import (
	"sync"
	"time"
)

// TraceEventKind defines the type of a trace event.
type TraceEventKind string

const (
	EventEnter TraceEventKind = "enter"
	EventExit  TraceEventKind = "exit"
	EventLog   TraceEventKind = "log"
)

// TraceEvent represents a single event in an execution trace.  Times are
// milliseconds since the tracer was created.
type TraceEvent struct {
	Kind         TraceEventKind `json:"kind"`
	ParentID     int            `json:"parent_id,omitempty"`
	ID           int            `json:"id"`
	Timestamp    float64        `json:"ts"`
	Duration     float64        `json:"dur,omitempty"`
	Target       string         `json:"target"`
	Arguments    []string       `json:"args,omitempty"`
	ReturnValue  string         `json:"ret,omitempty"`
	ErrorMessage string         `json:"err,omitempty"`
}

// TraceData is the top-level structure for a trace file.
type TraceData struct {
	Engine string        `json:"engine"`
	Events []*TraceEvent `json:"events"`
}

// ExecutionTracer records the routines and user function calls of one
// engine.
type ExecutionTracer struct {
	mu     sync.Mutex
	start  time.Time
	Events []*TraceEvent
	nextID int
	stack  []int
	enters []time.Time
}

// NewExecutionTracer creates a new tracer.
func NewExecutionTracer() *ExecutionTracer {
	return &ExecutionTracer{
		start:  time.Now(),
		nextID: 1,
		stack:  []int{0},
	}
}

func (t *ExecutionTracer) since(now time.Time) float64 {
	return float64(now.Sub(t.start)) / float64(time.Millisecond)
}

func (t *ExecutionTracer) currentParentID() int {
	return t.stack[len(t.stack)-1]
}

// Enter records the start of a routine or call and makes it the parent of
// the events that follow until the matching Exit.
func (t *ExecutionTracer) Enter(target string, args ...string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	eventID := t.nextID
	t.nextID++
	t.Events = append(t.Events, &TraceEvent{
		Kind:      EventEnter,
		ID:        eventID,
		ParentID:  t.currentParentID(),
		Timestamp: t.since(now),
		Target:    target,
		Arguments: args,
	})
	t.stack = append(t.stack, eventID)
	t.enters = append(t.enters, now)
	return eventID
}

// Exit records the end of the innermost open Enter.
func (t *ExecutionTracer) Exit(target string, retVal Value, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	var duration float64
	if n := len(t.enters); n > 0 {
		duration = float64(now.Sub(t.enters[n-1])) / float64(time.Millisecond)
		t.enters = t.enters[:n-1]
	}
	if len(t.stack) > 1 {
		t.stack = t.stack[:len(t.stack)-1]
	}

	event := &TraceEvent{
		Kind:      EventExit,
		ID:        t.nextID,
		ParentID:  t.currentParentID(),
		Timestamp: t.since(now),
		Duration:  duration,
		Target:    target,
	}
	t.nextID++
	if retVal.Type != nil {
		event.ReturnValue = retVal.String()
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	t.Events = append(t.Events, event)
}

// Log records output of a "log" expression.
func (t *ExecutionTracer) Log(namespace, line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Events = append(t.Events, &TraceEvent{
		Kind:      EventLog,
		ID:        t.nextID,
		ParentID:  t.currentParentID(),
		Timestamp: t.since(time.Now()),
		Target:    namespace,
		Arguments: []string{line},
	})
	t.nextID++
}

// Data returns a copy of the events recorded so far.
func (t *ExecutionTracer) Data(engine string) *TraceData {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &TraceData{Engine: engine, Events: append([]*TraceEvent(nil), t.Events...)}
}
