package runtime

import (
	"context"
	"sync"
	"time"
)

const (
	routineBegin  = "begin"
	routineAction = "action"
	routineEnd    = "end"
)

// execState is the per-call state of one routine: its deadline, the locks
// it holds and what to restore if it fails.
type execState struct {
	ctx      context.Context
	routine  string
	limit    time.Duration
	deadline time.Time

	engine *Engine
	depth  int

	// shared storage locks taken by this routine, so that an updater that
	// reads the storage it is updating does not deadlock.  true marks a lock
	// kept until the routine finishes.
	held map[sync.Locker]bool

	// run in reverse on failure
	undo  []func()
	saved map[any]bool
}

func newExecState(ctx context.Context, e *Engine, routine string) *execState {
	st := &execState{
		ctx:     ctx,
		routine: routine,
		engine:  e,
		limit:   e.program.options.TimeoutFor(routine),
		held:    map[sync.Locker]bool{},
		saved:   map[any]bool{},
	}
	if st.limit > 0 {
		st.deadline = time.Now().Add(st.limit)
	}
	return st
}

// checkDeadline aborts the routine once it is past its deadline or its
// context is done.  Loops call it once per iteration.
func (st *execState) checkDeadline() {
	if !st.deadline.IsZero() && time.Now().After(st.deadline) {
		panic(&TimeoutFailure{
			RuntimeFailure: RuntimeFailure{Message: "deadline exceeded", Code: CodeTimeout, Routine: st.routine},
			Limit:          st.limit,
		})
	}
	if err := st.ctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			panic(&TimeoutFailure{
				RuntimeFailure: RuntimeFailure{Message: err.Error(), Code: CodeTimeout, Routine: st.routine},
				Limit:          st.limit,
			})
		}
		panic(&RuntimeFailure{Message: err.Error(), Code: CodeCanceled, Routine: st.routine})
	}
}

// lock takes l unless this routine already holds it and returns the
// matching unlock.
func (st *execState) lock(l sync.Locker) func() {
	if _, ok := st.held[l]; ok {
		return func() {}
	}
	l.Lock()
	st.held[l] = false
	return func() {
		if st.held[l] {
			return
		}
		delete(st.held, l)
		l.Unlock()
	}
}

// hold takes l and keeps it until release.  Shared rollback storage is held
// from its first write so that restoring it cannot erase the writes of
// another engine.
func (st *execState) hold(l sync.Locker) func() {
	if _, ok := st.held[l]; !ok {
		l.Lock()
	}
	st.held[l] = true
	return func() {}
}

// release drops every lock kept by hold.  Run after rollback.
func (st *execState) release() {
	for l, kept := range st.held {
		if kept {
			delete(st.held, l)
			l.Unlock()
		}
	}
}

// snapshot records how to restore a piece of rollback storage the first
// time this routine writes it.  take runs before the write.
func (st *execState) snapshot(key any, take func() func()) {
	if st.saved[key] {
		return
	}
	st.saved[key] = true
	st.undo = append(st.undo, take())
}

func (st *execState) rollback() {
	for i := len(st.undo) - 1; i >= 0; i-- {
		st.undo[i]()
	}
	st.undo = nil
}

func (st *execState) enter(pos string) {
	st.depth++
	if st.depth > st.engine.program.options.MaxCallDepth {
		fail(pos, CodeStackOverflow, "call depth exceeds %d", st.engine.program.options.MaxCallDepth)
	}
}

func (st *execState) leave() { st.depth-- }
