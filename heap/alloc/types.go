package alloc

import (
	"log/slog"

	"github.com/joshuapare/heapkit/heap/dirty"
	"github.com/joshuapare/heapkit/internal/format"
)

// Ptr is the arena offset of a payload.
type Ptr uint64

// Nil is the "no allocation" pointer.
const Nil Ptr = 0

// nilBlock marks an absent block offset (the prologue offset is never a block).
const nilBlock uint64 = format.NilOffset

// DirtyTracker is a type alias for the canonical interface defined in heap/dirty.
type DirtyTracker = dirty.DirtyTracker

// DefaultMinimalBuckets is the number of hash chains for minimal free blocks.
const DefaultMinimalBuckets = 6

// MaxMinimalBuckets caps Options.MinimalBuckets.
const MaxMinimalBuckets = 1 << 16

// Options configures a Heap.
type Options struct {
	// ChunkSize is the minimum arena extension in bytes, rounded up to 16.
	// Default: 4096
	ChunkSize int

	// MinimalBuckets is the number of hash chains for 16-byte free blocks.
	// Default: 6
	MinimalBuckets int

	// Logger receives extension and checker diagnostics at debug level.
	// Default: discard, or stderr when HEAPKIT_LOG_ALLOC is set.
	Logger *slog.Logger

	// Tracker is notified of every arena byte range the allocator writes or
	// hands out for writing. Can be nil.
	Tracker DirtyTracker

	// CheckEveryOp runs the consistency checker after every public operation
	// and panics on the first violation. Always on in heapdebug builds.
	CheckEveryOp bool
}

// DefaultOptions is used when New or Attach receive nil options.
var DefaultOptions = Options{
	ChunkSize:      format.ChunkSize,
	MinimalBuckets: DefaultMinimalBuckets,
}

// normalized fills zero fields with defaults and clamps MinimalBuckets to
// MaxMinimalBuckets.
func (o Options) normalized() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultOptions.ChunkSize
	}
	o.ChunkSize = format.Align16(o.ChunkSize)
	if o.MinimalBuckets <= 0 {
		o.MinimalBuckets = DefaultOptions.MinimalBuckets
	}
	o.MinimalBuckets = min(o.MinimalBuckets, MaxMinimalBuckets)
	return o
}

// BlockInfo describes one block visited by Walk.
type BlockInfo struct {
	Offset      uint64 // Arena offset of the header
	Size        uint64 // Block size including the header
	Allocated   bool
	PrevAlloc   bool
	PrevMinimal bool
}

// Payload returns the payload pointer of the block.
func (b BlockInfo) Payload() Ptr { return Ptr(b.Offset + format.WordSize) }

// PayloadSize returns the usable payload bytes of an allocated block.
func (b BlockInfo) PayloadSize() uint64 { return b.Size - format.WordSize }

// Minimal reports whether the block is a minimal (16-byte) block.
func (b BlockInfo) Minimal() bool { return b.Size == format.MinBlockSize }
