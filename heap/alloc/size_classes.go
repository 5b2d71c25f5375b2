package alloc

import (
	"math/bits"

	"github.com/joshuapare/heapkit/internal/format"
)

// NumClasses is the number of segregated free lists for non-minimal blocks.
const NumClasses = 8

const (
	// firstClassShift is log2 of the lower bound of class 1 (64 bytes).
	firstClassShift = 6
	// lastClassShift is log2 of the lower bound of the last class (4KB).
	lastClassShift = 12
)

// classIndex maps a free block size to its segregated list.
//
//	size < 64          -> 0
//	[2^k, 2^(k+1))     -> k-5   for k = 6..11
//	size >= 4096       -> 7
func classIndex(size uint64) int {
	switch {
	case size < 1<<firstClassShift:
		return 0
	case size >= 1<<lastClassShift:
		return NumClasses - 1
	default:
		return bits.Len64(size) - firstClassShift
	}
}

// ClassRange returns the inclusive lower bound and exclusive upper bound of
// size class i. The last class has no upper bound (hi == 0).
func ClassRange(i int) (lo, hi uint64) {
	switch {
	case i <= 0:
		return 2 * format.MinBlockSize, 1 << firstClassShift
	case i >= NumClasses-1:
		return 1 << lastClassShift, 0
	default:
		return 1 << (i + firstClassShift - 1), 1 << (i + firstClassShift)
	}
}

// bucket hashes a minimal block to its chain. Blocks sit at 8 mod 16, so the
// address is divided by the alignment unit first to use every chain.
func (h *Heap) bucket(b uint64) int {
	return int((b >> 4) % uint64(len(h.minimal)))
}
