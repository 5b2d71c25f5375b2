// Package trace reads, writes and generates allocator workload traces in the
// classic malloc-lab text format:
//
//	<suggested heap size>
//	<number of ids>
//	<number of ops>
//	<weight>
//	a <id> <size>     allocate size bytes and name the block id
//	r <id> <size>     reallocate block id to size bytes
//	f <id>            release block id
//
// Files ending in .zst or .lz4 are compressed transparently.
package trace

import (
	"errors"
	"fmt"
)

// OpKind is the operation letter of a trace line.
type OpKind byte

const (
	OpAlloc   OpKind = 'a'
	OpRealloc OpKind = 'r'
	OpFree    OpKind = 'f'
)

func (k OpKind) String() string {
	switch k {
	case OpAlloc:
		return "alloc"
	case OpRealloc:
		return "realloc"
	case OpFree:
		return "free"
	default:
		return fmt.Sprintf("OpKind(%q)", byte(k))
	}
}

// Op is one trace operation. Size is zero for OpFree.
type Op struct {
	Kind OpKind
	ID   int
	Size int
}

func (o Op) String() string {
	if o.Kind == OpFree {
		return fmt.Sprintf("%c %d", byte(o.Kind), o.ID)
	}
	return fmt.Sprintf("%c %d %d", byte(o.Kind), o.ID, o.Size)
}

// Trace is a parsed workload.
type Trace struct {
	Name          string // File base name, or a generated label
	SuggestedHeap int    // Informational heap size from the header
	NumIDs        int    // Block ids range over [0, NumIDs)
	Weight        int    // Relative weight in aggregate scores
	Ops           []Op
}

// IDSpan returns one past the largest id the ops use that is still inside
// [0, NumIDs). Per-id tables need no more slots than that.
func (t *Trace) IDSpan() int {
	n := 0
	for _, op := range t.Ops {
		if op.ID >= n && op.ID < t.NumIDs {
			n = op.ID + 1
		}
	}
	return n
}

// ErrSyntax is wrapped by every *ParseError.
var ErrSyntax = errors.New("trace: syntax error")

// ParseError reports a malformed trace line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace: line %d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrSyntax }
