package compose

import (
	"fmt"
	"sync/atomic"
)

var idSeq atomic.Uint64

// ID is an opaque, process-unique module identity. Two descriptors created
// with the same name still have different IDs.
type ID struct {
	seq  uint64
	name string
}

// NewID returns a fresh identity for name.
func NewID(name string) ID {
	return ID{seq: idSeq.Add(1), name: name}
}

// Name returns the module name the ID was created for.
func (id ID) Name() string {
	return id.name
}

// IsZero reports whether id was never assigned.
func (id ID) IsZero() bool {
	return id.seq == 0
}

// String renders the ID as name#seq.
func (id ID) String() string {
	return fmt.Sprintf("%s#%d", id.name, id.seq)
}
