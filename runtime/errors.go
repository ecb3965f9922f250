package runtime

import (
	"errors"
	"fmt"
	goruntime "runtime"
	"time"

	"github.com/panyam/pfa/lib"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrEngineEnded  = errors.New("engine has already run its end routine")
	ErrAlreadyBegun = errors.New("engine has already run its begin routine")

	// recorded by a tracer for calls left by a failure
	errUnwound = errors.New("unwound by failure")
)

// Codes of failures raised by the engine itself rather than by a library
// function.  A user "error" without a code reports 0.
const (
	CodeIndexOutOfRange = 2000
	CodeKeyNotFound     = 2001
	CodePoolKeyNotFound = 3000
	CodeStackOverflow   = 4000
	CodeCanceled        = 5000
	CodeTimeout         = 5001
	CodeBadInput        = 6000
	CodeInternal        = 9000
)

// RuntimeFailure aborts the routine it was raised in.  Storage flagged for
// rollback is restored before the failure reaches the caller.
type RuntimeFailure struct {
	Message string
	Code    int
	// Routine is "begin", "action" or "end"
	Routine string
	// Pos locates the expression that failed, when known
	Pos string
	// Fcn names the library function that failed, when one did
	Fcn string
}

func (f *RuntimeFailure) Error() string {
	where := f.Routine
	if f.Pos != "" {
		where = f.Pos
	}
	if f.Code != 0 {
		return fmt.Sprintf("%s failed (code %d): %s", where, f.Code, f.Message)
	}
	return fmt.Sprintf("%s failed: %s", where, f.Message)
}

func (f *RuntimeFailure) GRPCStatus() *status.Status {
	return status.New(codes.Aborted, f.Error())
}

// TimeoutFailure is raised when a routine runs past its deadline.  It is a
// RuntimeFailure as far as errors.As is concerned.
type TimeoutFailure struct {
	RuntimeFailure
	Limit time.Duration
}

func (f *TimeoutFailure) Error() string {
	return fmt.Sprintf("%s timed out after %s", f.Routine, f.Limit)
}

func (f *TimeoutFailure) Unwrap() error { return &f.RuntimeFailure }

func (f *TimeoutFailure) GRPCStatus() *status.Status {
	return status.New(codes.DeadlineExceeded, f.Error())
}

// IsTimeout reports whether err is a TimeoutFailure.
func IsTimeout(err error) bool {
	var tf *TimeoutFailure
	return errors.As(err, &tf)
}

// userError is the panic payload of an "error" expression.
type userError struct {
	message string
	code    int
	pos     string
}

// internalError marks a broken invariant of the compiled tree: something the
// type checker should have rejected.
type internalError struct {
	err error
}

func fail(pos string, code int, format string, args ...any) {
	panic(&RuntimeFailure{Message: fmt.Sprintf(format, args...), Code: code, Pos: pos})
}

func ensureNoErr(err error) {
	if err != nil {
		panic(internalError{err})
	}
}

// asFailure converts a recovered panic into the error reported to the
// caller.  Anything not raised by the engine or the library is re-panicked.
func asFailure(routine string, r any) error {
	switch x := r.(type) {
	case *TimeoutFailure:
		x.Routine = routine
		return x
	case *RuntimeFailure:
		x.Routine = routine
		return x
	case *userError:
		return &RuntimeFailure{Message: x.message, Code: x.code, Routine: routine, Pos: x.pos}
	case *lib.FcnError:
		return &RuntimeFailure{Message: x.Msg, Code: x.Code, Routine: routine, Fcn: x.Name}
	case internalError:
		return fmt.Errorf("%s: internal error: %w", routine, x.err)
	case goruntime.Error:
		// a bug in a library function, not in the document
		Error("%s: recovered from %v", routine, x)
		return &RuntimeFailure{Message: x.Error(), Code: CodeInternal, Routine: routine}
	}
	panic(r)
}
