package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/format"
)

// push inserts free block b at the head of its list. The header must already
// describe b as free with its final size.
func (h *Heap) push(b uint64) {
	size := h.size(b)
	if size == format.MinBlockSize {
		h.pushMinimal(b)
		return
	}
	i := classIndex(size)
	root := h.classes[i]
	h.setLinkPrev(b, nilBlock)
	h.setLinkNext(b, root)
	if root != nilBlock {
		h.setLinkPrev(root, b)
	}
	h.classes[i] = b
	h.stats.ListPushes++
}

// pop unlinks b from its list. The header size must still be the size b was
// pushed with.
func (h *Heap) pop(b uint64) {
	size := h.size(b)
	if size == format.MinBlockSize {
		h.popMinimal(b)
		return
	}
	i := classIndex(size)
	prev := h.linkPrev(b)
	next := h.linkNext(b)
	if prev == nilBlock {
		h.classes[i] = next
	} else {
		h.setLinkNext(prev, next)
	}
	if next != nilBlock {
		h.setLinkPrev(next, prev)
	}
	h.stats.ListPops++
}

func (h *Heap) pushMinimal(b uint64) {
	i := h.bucket(b)
	h.setMinNext(b, h.minimal[i])
	h.minimal[i] = b
	h.stats.ListPushes++
}

// popMinimal searches b's chain for b and unlinks it. Chains are singly
// linked, so this is linear in the chain length.
func (h *Heap) popMinimal(b uint64) {
	i := h.bucket(b)
	cur := h.minimal[i]
	if cur == b {
		h.minimal[i] = h.minNext(b)
		h.stats.ListPops++
		return
	}
	for cur != nilBlock {
		next := h.minNext(cur)
		if next == b {
			h.setMinNext(cur, h.minNext(b))
			h.stats.ListPops++
			return
		}
		cur = next
	}
	panic(fmt.Sprintf("alloc: minimal block 0x%X missing from bucket %d", b, i))
}

// findFit returns the first free block of at least asize bytes, or nilBlock.
//
// Minimal requests try the minimal chains first. Everything else scans the
// segregated lists from the request's own class upward; a larger class
// always satisfies the request with its first entry.
func (h *Heap) findFit(asize uint64) uint64 {
	if asize == format.MinBlockSize {
		for _, b := range h.minimal {
			if b != nilBlock {
				return b
			}
		}
	}
	for i := classIndex(asize); i < NumClasses; i++ {
		for b := h.classes[i]; b != nilBlock; b = h.linkNext(b) {
			if h.size(b) >= asize {
				return b
			}
		}
	}
	return nilBlock
}
