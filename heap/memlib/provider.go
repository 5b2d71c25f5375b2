// Package memlib provides raw memory providers for heapkit arenas.
//
// A provider owns one contiguous byte region and grows it monotonically, the
// way sbrk grows a process data segment. The allocator in heap/alloc never
// returns memory to a provider; Reset is the only way to shrink one.
//
// Every provider reserves its maximum size up front and only moves a break
// offset on Extend, so the backing array never moves and payload views handed
// out earlier stay valid after the arena grows.
package memlib

import (
	"errors"
	"fmt"
)

const (
	// DefaultMaxHeap is the reservation used when a caller passes 0, matching
	// the 20 MiB limit of the classic malloc-lab memory model.
	DefaultMaxHeap = 20 * (1 << 20)

	// MaxArena caps every reservation at 4 GiB so block offsets fit in 32
	// bits (the consistency checker indexes blocks in 32-bit bitmaps).
	MaxArena uint64 = 1 << 32
)

var (
	// ErrExhausted indicates the reservation cannot satisfy an Extend request.
	ErrExhausted = errors.New("memlib: arena exhausted")

	// ErrNegativeExtend indicates Extend was called with a negative size.
	ErrNegativeExtend = errors.New("memlib: negative extend")

	// ErrClosed indicates the provider was used after Close.
	ErrClosed = errors.New("memlib: provider closed")

	// ErrUnsupported indicates the platform cannot back this provider kind.
	ErrUnsupported = errors.New("memlib: unsupported on this platform")
)

// Provider is the raw memory collaborator of the allocator.
type Provider interface {
	// Extend grows the arena by n bytes and returns the offset of the old
	// break, which is where the new region starts. On failure the arena is
	// unchanged.
	Extend(n int) (int, error)

	// Lo returns the offset of the first arena byte (always 0).
	Lo() int

	// Hi returns the offset of the last arena byte, or -1 when empty.
	Hi() int

	// Size returns the current arena size in bytes.
	Size() int

	// Bytes returns a view of the whole arena [Lo, Hi].
	Bytes() []byte

	// Reset empties the arena. Previously returned views must not be used.
	Reset() error
}

// Syncer is implemented by providers whose arena is backed by a file and
// can persist a dirty byte range.
type Syncer interface {
	Sync(off, n int) error
}

// normalizeMax validates and defaults a reservation size.
func normalizeMax(max int) (int, error) {
	if max == 0 {
		return DefaultMaxHeap, nil
	}
	if max < 0 || uint64(max) > MaxArena {
		return 0, fmt.Errorf("memlib: reservation %d outside (0, %d]", max, MaxArena)
	}
	return max, nil
}

// grow computes the break after extending brk by n within max.
func grow(brk, n, max int) (int, error) {
	if n < 0 {
		return 0, ErrNegativeExtend
	}
	if n > max-brk {
		return 0, fmt.Errorf("%w: have %d of %d bytes, requested %d", ErrExhausted, brk, max, n)
	}
	return brk + n, nil
}
