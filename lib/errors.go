package lib

import "fmt"

// FcnError is a failure raised by a built-in function at run time.  Code
// identifies the failure for hosts that match on it.
type FcnError struct {
	Name string
	Code int
	Msg  string
}

func (e *FcnError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Msg)
}

// Fail aborts the current function call.  The engine recovers the panic at
// the routine boundary and reports it as a runtime failure.
func Fail(name string, code int, format string, args ...any) {
	panic(&FcnError{Name: name, Code: code, Msg: fmt.Sprintf(format, args...)})
}
