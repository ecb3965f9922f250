package runtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/panyam/pfa/decl"
	"github.com/panyam/pfa/lib"
)

// Document option keys understood by the engine.  Timeouts are milliseconds.
const (
	OptTimeout       = "timeout"
	OptBeginTimeout  = "timeout.begin"
	OptActionTimeout = "timeout.action"
	OptEndTimeout    = "timeout.end"
)

// DefaultMaxCallDepth bounds nested user function calls.
const DefaultMaxCallDepth = 10000

// Options configure compilation and the engines built from a program.  Zero
// values fall back to the document's "options" and then to the defaults.
type Options struct {
	// Timeout applies to every routine without a more specific timeout.
	Timeout       time.Duration
	BeginTimeout  time.Duration
	ActionTimeout time.Duration
	EndTimeout    time.Duration

	// LogSink receives "log" output; nil logs through the global logger.
	LogSink LogSink

	// Library is the function catalog; nil means lib.Default().
	Library *lib.Library

	// Names allocates names for anonymous types; nil means decl.DefaultNames.
	Names *decl.NameAllocator

	MaxCallDepth int
}

// withDocument fills the timeouts the host left unset from a document's
// options.
func (o Options) withDocument(doc map[string]any) (Options, error) {
	fields := []struct {
		key string
		out *time.Duration
	}{
		{OptTimeout, &o.Timeout},
		{OptBeginTimeout, &o.BeginTimeout},
		{OptActionTimeout, &o.ActionTimeout},
		{OptEndTimeout, &o.EndTimeout},
	}
	for _, f := range fields {
		datum, ok := doc[f.key]
		if !ok || *f.out != 0 {
			continue
		}
		ms, err := millis(datum)
		if err != nil {
			return o, fmt.Errorf("option %q: %w", f.key, err)
		}
		*f.out = ms
	}
	if o.Library == nil {
		o.Library = lib.Default()
	}
	if o.Names == nil {
		o.Names = decl.DefaultNames
	}
	if o.MaxCallDepth <= 0 {
		o.MaxCallDepth = DefaultMaxCallDepth
	}
	return o, nil
}

func millis(datum any) (time.Duration, error) {
	var ms float64
	switch n := datum.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		ms = f
	case float64:
		ms = n
	case int:
		ms = float64(n)
	case int64:
		ms = float64(n)
	default:
		return 0, fmt.Errorf("expected milliseconds, got %v", datum)
	}
	if ms < 0 {
		return 0, fmt.Errorf("negative timeout %v", ms)
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}

// TimeoutFor returns the limit of one routine; zero means unbounded.
func (o Options) TimeoutFor(routine string) time.Duration {
	var specific time.Duration
	switch routine {
	case routineBegin:
		specific = o.BeginTimeout
	case routineAction:
		specific = o.ActionTimeout
	case routineEnd:
		specific = o.EndTimeout
	}
	if specific > 0 {
		return specific
	}
	return o.Timeout
}
