package alloc

import (
	"fmt"
	"math"

	"github.com/joshuapare/heapkit/internal/format"
)

// extendArena grows the arena by n bytes (rounded up to 16) and returns the
// resulting free block, already coalesced with a free last block and pushed
// onto its list.
//
// The old epilogue header becomes the header of the new block and a fresh
// epilogue is written in the last word of the new region:
//
//	before:  ... | last block | EPI |
//	after:   ... | last block | new free block ........ | EPI |
func (h *Heap) extendArena(n uint64) (uint64, error) {
	n = format.Align16U64(n)
	if n > math.MaxInt {
		return nilBlock, fmt.Errorf("%w: extension of %d bytes", ErrOutOfMemory, n)
	}
	old, err := h.p.Extend(int(n))
	if err != nil {
		return nilBlock, wrapOOM(err)
	}
	h.data = h.p.Bytes()

	prevAllocated, prevMinimal := true, false
	if h.last != nilBlock {
		prevAllocated = h.isAlloc(h.last)
		prevMinimal = h.size(h.last) == format.MinBlockSize
	}

	b := uint64(old) - format.WordSize
	h.writeBlock(b, n, prevMinimal, prevAllocated, false)
	h.writeEpilogue(b+n, n == format.MinBlockSize, false)
	h.last = b

	h.stats.Extends++
	h.stats.ExtendBytes += int64(n)
	h.stats.HeapBytes = int64(len(h.data))
	h.log.Debug("arena extended",
		"bytes", n,
		"block", fmt.Sprintf("0x%X", b),
		"arena", len(h.data),
		"merge", !prevAllocated)

	return h.coalesce(b), nil
}

func wrapOOM(err error) error {
	return fmt.Errorf("%w: %w", ErrOutOfMemory, err)
}
