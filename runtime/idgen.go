package runtime

import (
	"fmt"
	"sync/atomic"
)

type IDGen interface {
	// NextID returns a fresh identifier for class and its sequence number,
	// counting from 0.
	NextID(class string) (string, int)
}

// SimpleIDGen numbers engine instances.  Safe for concurrent use.
type SimpleIDGen struct {
	counter atomic.Int64
}

func (s *SimpleIDGen) NextID(class string) (string, int) {
	n := int(s.counter.Add(1)) - 1
	return fmt.Sprintf("%s:%d", class, n), n
}
