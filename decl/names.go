package decl

import (
	"fmt"
	"sync/atomic"
)

// NameAllocator hands out unique names for anonymous records, enums, fixed types
// and engines.  It is passed through compilation explicitly; DefaultNames is the
// process-wide instance used when a caller does not supply one.
type NameAllocator struct {
	counter atomic.Int64
}

func NewNameAllocator() *NameAllocator {
	return &NameAllocator{}
}

var DefaultNames = NewNameAllocator()

// NextID returns "<class>_<n>" with n unique for this allocator.
func (n *NameAllocator) NextID(class string) string {
	return fmt.Sprintf("%s_%d", class, n.counter.Add(1))
}
