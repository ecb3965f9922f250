package loader

import (
	"fmt"
	"io"
	"os"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ErrorCollector struct {
	// Errors for this document
	Errors []error

	// Max errors before we panic
	// 0 => no limit
	MaxErrors int
}

func (f *ErrorCollector) HasErrors() bool {
	return len(f.Errors) > 0
}

func (f *ErrorCollector) PrintErrors() {
	f.WriteErrors(os.Stderr)
}

func (f *ErrorCollector) WriteErrors(w io.Writer) {
	for _, err := range f.Errors {
		fmt.Fprintln(w, err)
	}
}

func (i *ErrorCollector) AddErrors(errs ...error) {
	for _, err := range errs {
		i.Errors = append(i.Errors, err)
		if i.MaxErrors > 0 && len(i.Errors) >= i.MaxErrors {
			panic(err)
		}
	}
}

// Errorf records a SemanticError at pos.  It always returns false so checks
// can be written as `return i.Errorf(...)`.
func (i *ErrorCollector) Errorf(pos string, format string, args ...any) bool {
	i.AddErrors(SemErrorf(pos, format, args...))
	return false
}

// SyntaxError is a document that is not well formed: bad JSON/YAML, an unknown
// special form, a missing required key.
type SyntaxError struct {
	Pos string
	Msg string
}

func (e *SyntaxError) Error() string {
	if e.Pos == "" {
		return "syntax error: " + e.Msg
	}
	return fmt.Sprintf("syntax error at %s: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Error())
}

// SemanticError is a well formed document that does not type check.
type SemanticError struct {
	Pos string
	Msg string
	// Cause is set when the error wraps another, eg an IncompatibleTypes
	// raised during overload resolution.
	Cause error
}

func SemErrorf(pos string, format string, args ...any) *SemanticError {
	return &SemanticError{
		Pos: pos,
		Msg: fmt.Sprintf(format, args...),
	}
}

func (e *SemanticError) Error() string {
	if e.Pos == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (e *SemanticError) Unwrap() error { return e.Cause }

func (e *SemanticError) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Error())
}

// SchemaParseError reports the type declarations that could not be resolved,
// each with the error from its last attempt.
type SchemaParseError struct {
	Failures []SchemaFailure
}

type SchemaFailure struct {
	Original string
	Err      error
}

func (e *SchemaParseError) Error() string {
	lines := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		lines[i] = fmt.Sprintf("cannot resolve type %s: %v", f.Original, f.Err)
	}
	return strings.Join(lines, "\n")
}

func (e *SchemaParseError) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Error())
}
