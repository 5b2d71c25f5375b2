package alloc

import (
	"github.com/joshuapare/heapkit/internal/format"
)

// coalesce merges free block b with its free neighbours and inserts the
// result into the free lists. b must be marked free (header and footer) and
// must not be on any list yet. Returns the merged block.
//
//	Case 1: prev alloc, next alloc -> insert b
//	Case 2: prev alloc, next free  -> b absorbs next
//	Case 3: prev free,  next alloc -> prev absorbs b
//	Case 4: prev free,  next free  -> prev absorbs b and next
//
// The block after the merged result always ends up with prev_alloc clear and
// prev_min set only if the result is minimal (which only case 1 allows).
func (h *Heap) coalesce(b uint64) uint64 {
	size := h.size(b)
	next := b + size
	nextWord := h.word(next)
	nextFree := !format.ExtractAllocated(nextWord) // the epilogue is allocated
	prevFree := !h.prevAlloc(b)

	switch {
	case !prevFree && !nextFree:
		h.stats.Coalesce[0]++
		h.push(b)
		return b

	case !prevFree && nextFree:
		h.stats.Coalesce[1]++
		nsize := format.ExtractSize(nextWord)
		h.pop(next)
		merged := size + nsize
		h.writeBlock(b, merged, h.prevMin(b), true, false)
		h.push(b)
		h.setPrevBits(b+merged, false, false)
		if h.last == next {
			h.last = b
		}
		return b

	case prevFree && !nextFree:
		h.stats.Coalesce[2]++
		prev := h.findPrev(b)
		h.pop(prev)
		merged := h.size(prev) + size
		h.writeBlock(prev, merged, h.prevMin(prev), true, false)
		h.push(prev)
		h.setPrevBits(next, false, false)
		if h.last == b {
			h.last = prev
		}
		return prev

	default:
		h.stats.Coalesce[3]++
		prev := h.findPrev(b)
		nsize := format.ExtractSize(nextWord)
		h.pop(prev)
		h.pop(next)
		merged := h.size(prev) + size + nsize
		h.writeBlock(prev, merged, h.prevMin(prev), true, false)
		h.push(prev)
		h.setPrevBits(prev+merged, false, false)
		if h.last == next || h.last == b {
			h.last = prev
		}
		return prev
	}
}
