package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/format"
)

// Block accessors. A block is addressed by the offset of its header word.

func (h *Heap) size(b uint64) uint64 { return format.ExtractSize(h.word(b)) }

func (h *Heap) isAlloc(b uint64) bool { return format.ExtractAllocated(h.word(b)) }

func (h *Heap) prevAlloc(b uint64) bool { return format.ExtractPrevAllocated(h.word(b)) }

func (h *Heap) prevMin(b uint64) bool { return format.ExtractPrevMinimal(h.word(b)) }

// writeBlock writes the header of b and, for free non-minimal blocks, the
// matching footer in the block's last word.
func (h *Heap) writeBlock(b, size uint64, prevMinimal, prevAllocated, allocated bool) {
	if debugChecks && (size == 0 || !format.IsAligned(size)) {
		panic(fmt.Sprintf("alloc: writeBlock 0x%X with size %d", b, size))
	}
	w := format.Pack(size, prevMinimal, prevAllocated, allocated)
	h.setWord(b, w)
	if !allocated && size > format.MinBlockSize {
		h.setWord(b+size-format.WordSize, w)
	}
}

// writeEpilogue writes a zero-size allocated header at b. Its prev bits
// mirror the last real block like any other header.
func (h *Heap) writeEpilogue(b uint64, prevMinimal, prevAllocated bool) {
	h.setWord(b, format.Pack(0, prevMinimal, prevAllocated, true))
}

// setPrevBits rewrites the prev-minimal and prev-allocated bits of b,
// keeping its size and allocation state. A free block's footer follows.
func (h *Heap) setPrevBits(b uint64, prevMinimal, prevAllocated bool) {
	w := h.word(b)
	size := format.ExtractSize(w)
	if size == 0 {
		h.writeEpilogue(b, prevMinimal, prevAllocated)
		return
	}
	h.writeBlock(b, size, prevMinimal, prevAllocated, format.ExtractAllocated(w))
}

// findNext returns the block following b (the epilogue after the last block).
func (h *Heap) findNext(b uint64) uint64 {
	return b + h.size(b)
}

// findPrev returns the block preceding b. Only valid when that block is free:
// a minimal predecessor sits exactly one minimal block back, anything larger
// is located through its footer. Returns nilBlock when b is the first block.
func (h *Heap) findPrev(b uint64) uint64 {
	if b <= h.start {
		return nilBlock
	}
	if h.prevMin(b) {
		return b - format.MinBlockSize
	}
	footer := h.word(b - format.WordSize)
	size := format.ExtractSize(footer)
	if size == 0 {
		return nilBlock
	}
	return b - size
}

// payloadOf converts a block to its payload pointer and back.
func payloadOf(b uint64) Ptr { return Ptr(b + format.WordSize) }

func blockOf(p Ptr) uint64 { return uint64(p) - format.WordSize }

// Free-list link words. A free non-minimal block keeps prev in its first
// payload word and next in its second; a free minimal block only has next.

func (h *Heap) linkPrev(b uint64) uint64 { return h.word(b + format.WordSize) }

func (h *Heap) linkNext(b uint64) uint64 { return h.word(b + 2*format.WordSize) }

func (h *Heap) setLinkPrev(b, v uint64) { h.setWord(b+format.WordSize, v) }

func (h *Heap) setLinkNext(b, v uint64) { h.setWord(b+2*format.WordSize, v) }

func (h *Heap) minNext(b uint64) uint64 { return h.word(b + format.WordSize) }

func (h *Heap) setMinNext(b, v uint64) { h.setWord(b+format.WordSize, v) }
