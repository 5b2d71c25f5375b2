package alloc

import "errors"

var (
	// ErrOutOfMemory indicates the memory provider could not extend the arena.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrInvalidSize indicates a negative size or count.
	ErrInvalidSize = errors.New("alloc: invalid size")

	// ErrSizeOverflow indicates count * size overflowed in ZeroAllocate.
	ErrSizeOverflow = errors.New("alloc: size overflow")

	// ErrArenaInUse indicates Init was called on a provider that already holds
	// bytes. Use Attach to adopt an existing arena or Reset to discard it.
	ErrArenaInUse = errors.New("alloc: arena already in use")

	// ErrCorrupt indicates a violated heap invariant. *CheckError unwraps to it.
	ErrCorrupt = errors.New("alloc: heap corrupt")
)
