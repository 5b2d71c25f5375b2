package alloc

import (
	"github.com/joshuapare/heapkit/internal/format"
)

// Walk calls fn for every block in address order, stopping at the epilogue
// or when fn returns false. It does not validate the arena; run Check first
// on a heap of unknown provenance.
func (h *Heap) Walk(fn func(BlockInfo) bool) {
	if !h.initialized {
		return
	}
	epi := uint64(len(h.data)) - format.WordSize
	for b := h.start; b < epi; {
		hdr := format.DecodeHeader(h.word(b))
		if hdr.Size == 0 || hdr.Size > epi-b {
			return
		}
		info := BlockInfo{
			Offset:      b,
			Size:        hdr.Size,
			Allocated:   hdr.Allocated,
			PrevAlloc:   hdr.PrevAlloc,
			PrevMinimal: hdr.PrevMinimal,
		}
		if !fn(info) {
			return
		}
		b += hdr.Size
	}
}

// Summary is a point-in-time census of the arena and its free lists.
type Summary struct {
	ArenaBytes  uint64
	Blocks      int
	AllocBlocks int
	AllocBytes  uint64 // block bytes of allocated blocks, headers included
	FreeBlocks  int
	FreeBytes   uint64
	LargestFree uint64

	// ClassLengths[i] is the length of the size class i list.
	ClassLengths [NumClasses]int
	// BucketLengths[i] is the length of minimal chain i.
	BucketLengths []int
}

// Summary walks the arena and every free list.
func (h *Heap) Summary() Summary {
	s := Summary{
		ArenaBytes:    uint64(len(h.data)),
		BucketLengths: make([]int, len(h.minimal)),
	}
	h.Walk(func(b BlockInfo) bool {
		s.Blocks++
		if b.Allocated {
			s.AllocBlocks++
			s.AllocBytes += b.Size
		} else {
			s.FreeBlocks++
			s.FreeBytes += b.Size
			s.LargestFree = max(s.LargestFree, b.Size)
		}
		return true
	})
	if !h.initialized {
		return s
	}
	for i, head := range h.classes {
		for x := head; x != nilBlock && s.ClassLengths[i] <= s.FreeBlocks; x = h.linkNext(x) {
			s.ClassLengths[i]++
		}
	}
	for i, head := range h.minimal {
		for x := head; x != nilBlock && s.BucketLengths[i] <= s.FreeBlocks; x = h.minNext(x) {
			s.BucketLengths[i]++
		}
	}
	return s
}
