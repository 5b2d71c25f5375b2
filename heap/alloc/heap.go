package alloc

import (
	"context"
	"log/slog"
	"os"

	"github.com/joshuapare/heapkit/heap/memlib"
	"github.com/joshuapare/heapkit/internal/format"
)

// Runtime logging flag for extension and checker diagnostics - controlled by
// the HEAPKIT_LOG_ALLOC env var when Options.Logger is nil.
var logAlloc = os.Getenv("HEAPKIT_LOG_ALLOC") != ""

// Heap is a segregated-fit allocator over one memlib.Provider arena.
//
// The zero Heap is not usable; construct one with New or Attach.
type Heap struct {
	p    memlib.Provider
	data []byte // cached p.Bytes(), refreshed after every Extend
	opts Options
	log  *slog.Logger

	// classes[i] is the head of the doubly linked list for size class i.
	classes [NumClasses]uint64
	// minimal[i] is the head of the singly linked chain for bucket i.
	minimal []uint64

	start uint64 // first block header (FirstBlockOffset)
	last  uint64 // last real block before the epilogue, nilBlock if none

	initialized bool
	stats       Stats
}

// New creates a heap over p. The arena is initialised lazily by the first
// Allocate, or explicitly by Init. opts may be nil.
func New(p memlib.Provider, opts *Options) *Heap {
	o := DefaultOptions
	if opts != nil {
		o = *opts
	}
	o = o.normalized()
	return &Heap{
		p:       p,
		opts:    o,
		log:     newLogger(o.Logger),
		minimal: make([]uint64, o.MinimalBuckets),
		start:   format.FirstBlockOffset,
	}
}

func newLogger(l *slog.Logger) *slog.Logger {
	switch {
	case l != nil:
		return l
	case logAlloc:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.DiscardHandler)
	}
}

// Init lays out an empty heap (prologue and epilogue) and extends it by one
// chunk. The provider must be empty; ErrArenaInUse is returned otherwise.
func (h *Heap) Init() error {
	if h.p.Size() != 0 {
		return ErrArenaInUse
	}
	if _, err := h.p.Extend(format.InitialArenaSize); err != nil {
		return wrapOOM(err)
	}
	h.data = h.p.Bytes()
	h.clearLists()

	h.setWord(format.PrologueOffset, format.SentinelWord)
	h.writeEpilogue(h.start, false, true)
	h.last = nilBlock
	h.initialized = true
	h.stats.HeapBytes = int64(len(h.data))

	if _, err := h.extendArena(uint64(h.opts.ChunkSize)); err != nil {
		return err
	}
	h.debugCheck("Init")
	return nil
}

// Reset discards every allocation, empties the provider and initialises a
// fresh heap. Previously returned pointers are invalid afterwards.
func (h *Heap) Reset() error {
	if err := h.p.Reset(); err != nil {
		return err
	}
	h.data = nil
	h.initialized = false
	h.last = nilBlock
	h.clearLists()
	h.stats = Stats{}
	return h.Init()
}

// Initialized reports whether the arena holds a heap.
func (h *Heap) Initialized() bool { return h.initialized }

// Provider returns the memory provider backing the heap.
func (h *Heap) Provider() memlib.Provider { return h.p }

// Bytes returns the current arena view. Valid until the next Reset.
func (h *Heap) Bytes() []byte { return h.data }

func (h *Heap) clearLists() {
	h.classes = [NumClasses]uint64{}
	clear(h.minimal)
}

// word reads the arena word at off.
func (h *Heap) word(off uint64) uint64 {
	return format.ReadWord(h.data, off)
}

// setWord writes the arena word at off and reports it to the tracker.
func (h *Heap) setWord(off, v uint64) {
	format.PutWord(h.data, off, v)
	if h.opts.Tracker != nil {
		h.opts.Tracker.Add(int(off), format.WordSize)
	}
}

// markDirty reports a payload range handed out for writing.
func (h *Heap) markDirty(off uint64, n int) {
	if h.opts.Tracker != nil && n > 0 {
		h.opts.Tracker.Add(int(off), n)
	}
}

// flusher is implemented by trackers that can persist what they recorded.
type flusher interface {
	Flush(ctx context.Context, s memlib.Syncer) error
}

// Flush persists the ranges recorded by Options.Tracker through the
// provider. It is a no-op unless the tracker can flush and the provider is a
// memlib.Syncer (a file-backed mapping).
func (h *Heap) Flush(ctx context.Context) error {
	f, ok := h.opts.Tracker.(flusher)
	if !ok {
		return nil
	}
	s, ok := h.p.(memlib.Syncer)
	if !ok {
		return nil
	}
	return f.Flush(ctx, s)
}
