package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/heap/memlib"
	"github.com/joshuapare/heapkit/internal/format"
)

// Attach adopts an arena that already holds a heap, typically a file-backed
// provider reopened after a previous run. The free lists are not persisted:
// Attach walks the blocks, rebuilds every list and then runs the checker.
//
// Pointers returned by the previous owner remain valid.
func Attach(p memlib.Provider, opts *Options) (*Heap, error) {
	h := New(p, opts)
	h.data = p.Bytes()

	n := uint64(len(h.data))
	if n < format.InitialArenaSize {
		return nil, fmt.Errorf("attach: %w: arena is %d bytes", format.ErrTruncated, n)
	}
	if h.word(format.PrologueOffset) != format.SentinelWord {
		return nil, fmt.Errorf("attach: %w", format.ErrBadPrologue)
	}

	epi := n - format.WordSize
	b := h.start
	for {
		w := h.word(b)
		size := format.ExtractSize(w)
		if size == 0 {
			break
		}
		if size > epi-b {
			return nil, fmt.Errorf("attach: %w: block 0x%X size %d overruns arena", format.ErrTruncated, b, size)
		}
		if !format.IsAligned(b + format.WordSize) {
			return nil, fmt.Errorf("attach: %w: block 0x%X", format.ErrMisaligned, b)
		}
		if !format.ExtractAllocated(w) {
			h.push(b)
		} else {
			h.stats.LiveBlocks++
			h.stats.LiveBytes += int64(size)
		}
		h.last = b
		b += size
	}

	h.initialized = true
	h.stats.HeapBytes = int64(n)
	h.stats.PeakLiveBytes = h.stats.LiveBytes
	if err := h.Check("attach"); err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}
	h.log.Debug("arena attached", "bytes", n, "live", h.stats.LiveBlocks)
	return h, nil
}
