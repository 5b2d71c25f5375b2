package driver

import "fmt"

// Validation failure types.
const (
	TypeAlloc     = "Allocate"  // allocator returned an error or Nil for a non-zero request
	TypeAlignment = "Alignment" // payload not 16-byte aligned
	TypeBounds    = "Bounds"    // payload not inside the arena
	TypeOverlap   = "Overlap"   // payload overlaps another live payload
	TypePayload   = "Payload"   // live payload bytes changed behind the caller's back
	TypeRealloc   = "Realloc"   // reallocation lost the preserved prefix
	TypeHeap      = "HeapCheck" // the allocator's own consistency check failed
	TypeTrace     = "Trace"     // the trace itself is inconsistent
)

// ValidationError describes the first failure of a replay.
type ValidationError struct {
	Type    string
	Message string
	Op      int   // Index of the failing trace operation
	Offset  int64 // Payload offset involved, -1 if none
	Err     error // Underlying allocator or checker error, if any
}

func (e *ValidationError) Error() string {
	s := fmt.Sprintf("op %d: %s", e.Op, e.Type)
	if e.Offset >= 0 {
		s += fmt.Sprintf(" at offset 0x%X", e.Offset)
	}
	s += ": " + e.Message
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ValidationError) Unwrap() error { return e.Err }
