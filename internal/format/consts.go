// Package format houses the low-level layout of a heapkit arena: word size,
// alignment, header bit assignments and the arena sentinels. It stays
// independent from the allocator so the checker, the attach path and the CLI
// can decode an arena without a live heap context.
package format

const (
	// WordSize is the size of a header, footer or free-list link in bytes.
	WordSize = 8

	// Alignment is the block and payload alignment unit (a double word).
	// Block sizes are always multiples of Alignment, which leaves the low four
	// bits of every header word free for flags.
	Alignment = 2 * WordSize

	// AlignmentMask is Alignment-1, used by the Align helpers.
	AlignmentMask = Alignment - 1

	// MinBlockSize is the size of a minimal block: one header word plus one
	// payload word. Minimal blocks carry no footer and, when free, only a
	// single "next" link.
	MinBlockSize = Alignment

	// ChunkSize is the minimum number of bytes requested from the memory
	// provider when no free block fits.
	ChunkSize = 1 << 12

	// PrologueOffset is the arena offset of the prologue word (a zero-size,
	// allocated footer that bounds backward traversal).
	PrologueOffset = 0

	// FirstBlockOffset is the arena offset of the first real block header.
	// Payloads start one word after a header, so placing headers at 8 mod 16
	// keeps every payload 16-byte aligned.
	FirstBlockOffset = PrologueOffset + WordSize

	// InitialArenaSize is the number of bytes needed for the empty heap:
	// the prologue word and the epilogue header.
	InitialArenaSize = 2 * WordSize

	// NilOffset marks an absent block or link. Offset 0 is the prologue and
	// can never be a block, so it is safe to reuse as "none".
	NilOffset = 0
)

// Header flag bit positions (bit 3 is reserved).
const (
	AllocatedBit   = 0
	PrevAllocBit   = 1
	PrevMinimalBit = 2
	reservedBit    = 3
)

var (
	// AllocatedMask is set when the block is allocated.
	AllocatedMask = FlagMask(AllocatedBit)
	// PrevAllocMask mirrors the allocation status of the preceding block.
	PrevAllocMask = FlagMask(PrevAllocBit)
	// PrevMinimalMask is set when the preceding block is a minimal block.
	PrevMinimalMask = FlagMask(PrevMinimalBit)
	// SizeMask clears the four flag bits.
	SizeMask = ^uint64(AlignmentMask)
)

// SentinelWord is the packed value of both the prologue and the epilogue:
// size 0, allocated.
const SentinelWord uint64 = 1
