package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/heap/memlib"
	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// Allocate returns a 16-byte aligned payload of at least size bytes.
//
// Allocate(0) returns (Nil, nil) without touching the arena. The first
// non-zero request initialises the heap. ErrOutOfMemory is returned when the
// provider cannot grow; the heap is unchanged in that case.
func (h *Heap) Allocate(size int) (Ptr, error) {
	if size == 0 {
		return Nil, nil
	}
	if size < 0 {
		return Nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if uint64(size) > memlib.MaxArena {
		return Nil, fmt.Errorf("%w: request of %d bytes", ErrOutOfMemory, size)
	}
	if !h.initialized {
		if err := h.Init(); err != nil {
			return Nil, err
		}
	}

	h.stats.AllocCalls++
	asize := format.AdjustedSize(uint64(size))

	b := h.findFit(asize)
	if b == nilBlock {
		var err error
		b, err = h.extendArena(max(asize, uint64(h.opts.ChunkSize)))
		if err != nil {
			h.stats.FailedAllocs++
			return Nil, err
		}
	} else {
		h.stats.FitHits++
	}

	h.place(b, asize)
	h.debugCheck("Allocate")
	return payloadOf(b), nil
}

// place marks free block b allocated for asize bytes, splitting off the
// remainder as a new free block when it can hold at least a minimal block.
func (h *Heap) place(b, asize uint64) {
	bsize := h.size(b)
	prevMinimal, prevAllocated := h.prevMin(b), h.prevAlloc(b)
	h.pop(b)

	rem := bsize - asize
	if rem >= format.MinBlockSize {
		h.writeBlock(b, asize, prevMinimal, prevAllocated, true)
		r := b + asize
		h.writeBlock(r, rem, asize == format.MinBlockSize, true, false)
		h.push(r)
		h.setPrevBits(r+rem, rem == format.MinBlockSize, false)
		if h.last == b {
			h.last = r
		}
		h.stats.Splits++
		asize = bsize - rem
	} else {
		h.writeBlock(b, bsize, prevMinimal, prevAllocated, true)
		h.setPrevBits(b+bsize, bsize == format.MinBlockSize, true)
		asize = bsize
	}

	h.stats.LiveBlocks++
	h.stats.LiveBytes += int64(asize)
	h.stats.PeakLiveBytes = max(h.stats.PeakLiveBytes, h.stats.LiveBytes)
}

// Release returns the block of p to the heap and coalesces it with free
// neighbours. Release(Nil) is a no-op. Releasing a pointer that is not a live
// allocation of this heap corrupts it.
func (h *Heap) Release(p Ptr) {
	if p == Nil || !h.initialized {
		return
	}
	h.stats.FreeCalls++

	b := blockOf(p)
	size := h.size(b)
	h.writeBlock(b, size, h.prevMin(b), h.prevAlloc(b), false)
	h.setPrevBits(b+size, size == format.MinBlockSize, false)
	h.coalesce(b)

	h.stats.LiveBlocks--
	h.stats.LiveBytes -= int64(size)
	h.debugCheck("Release")
}

// Reallocate resizes the allocation at p, always moving it:
//
//   - Reallocate(p, 0) releases p and returns Nil.
//   - Reallocate(Nil, n) behaves like Allocate(n).
//   - Otherwise a new block is allocated, min(n, old payload size) bytes are
//     copied and p is released.
//
// If the new allocation fails the error is returned and p stays valid.
func (h *Heap) Reallocate(p Ptr, size int) (Ptr, error) {
	if size == 0 {
		h.Release(p)
		return Nil, nil
	}
	if p == Nil {
		return h.Allocate(size)
	}
	if size < 0 {
		return Nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	h.stats.ReallocCalls++

	np, err := h.Allocate(size)
	if err != nil {
		return Nil, err
	}
	n := min(uint64(size), h.PayloadSize(p))
	copy(h.data[np:uint64(np)+n], h.data[p:uint64(p)+n])
	h.markDirty(uint64(np), int(n))

	h.Release(p)
	return np, nil
}

// ZeroAllocate allocates count*size bytes and zeroes them.
//
// A zero count or size returns (Nil, nil). ErrSizeOverflow is returned when
// count*size overflows int.
func (h *Heap) ZeroAllocate(count, size int) (Ptr, error) {
	if count == 0 || size == 0 {
		return Nil, nil
	}
	if count < 0 || size < 0 {
		return Nil, fmt.Errorf("%w: count=%d size=%d", ErrInvalidSize, count, size)
	}
	total, ok := buf.MulOverflowSafe(count, size)
	if !ok {
		return Nil, fmt.Errorf("%w: %d * %d", ErrSizeOverflow, count, size)
	}
	h.stats.ZeroAllocCalls++

	p, err := h.Allocate(total)
	if err != nil {
		return Nil, err
	}
	clear(h.data[p : uint64(p)+uint64(total)])
	h.markDirty(uint64(p), total)
	return p, nil
}

// PayloadSize returns the usable bytes of the allocation at p: the block
// size minus its header. It is at least the size that was requested.
func (h *Heap) PayloadSize(p Ptr) uint64 {
	if p == Nil || !h.initialized {
		return 0
	}
	return h.size(blockOf(p)) - format.WordSize
}

// Payload returns a writable view of the first n payload bytes of p, or nil
// when p is Nil or n exceeds the payload. The view is reported to the dirty
// tracker and stays valid until p is released or the heap is reset.
func (h *Heap) Payload(p Ptr, n int) []byte {
	if p == Nil || n < 0 || uint64(n) > h.PayloadSize(p) {
		return nil
	}
	v, ok := buf.Slice(h.data, int(p), n)
	if !ok {
		return nil
	}
	h.markDirty(uint64(p), n)
	return v
}
