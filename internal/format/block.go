package format

import "fmt"

// Block header word layout (little-endian uint64):
//
//	Bits   Description
//	0      allocated
//	1      previous block allocated
//	2      previous block is minimal (16 bytes, no footer)
//	3      reserved, always zero
//	4..63  block size in bytes (multiple of 16, header included)
//
// Free blocks larger than MinBlockSize repeat the header in their last word
// (the footer). Sentinels are size 0 with the allocated bit set.

// FlagMask returns the mask for header flag bit. Only bits 0..3 are flag
// bits; anything else would overlap the size field, so it panics rather
// than silently producing a mask that corrupts sizes.
func FlagMask(bit uint) uint64 {
	if bit > reservedBit {
		panic(fmt.Sprintf("format: flag bit %d out of range [0,%d]", bit, reservedBit))
	}
	return uint64(1) << bit
}

// Pack combines size and flags into a header word. size must already be
// aligned; its low four bits are ignored.
func Pack(size uint64, prevMinimal, prevAllocated, allocated bool) uint64 {
	word := size & SizeMask
	if prevMinimal {
		word |= PrevMinimalMask
	}
	if prevAllocated {
		word |= PrevAllocMask
	}
	if allocated {
		word |= AllocatedMask
	}
	return word
}

// ExtractSize returns the block size encoded in word.
func ExtractSize(word uint64) uint64 {
	return word & SizeMask
}

// ExtractAllocated reports the allocated bit of word.
func ExtractAllocated(word uint64) bool {
	return word&AllocatedMask != 0
}

// ExtractPrevAllocated reports the previous-allocated bit of word.
func ExtractPrevAllocated(word uint64) bool {
	return word&PrevAllocMask != 0
}

// ExtractPrevMinimal reports the previous-minimal bit of word.
func ExtractPrevMinimal(word uint64) bool {
	return word&PrevMinimalMask != 0
}

// IsSentinel reports whether word is a prologue or epilogue marker.
func IsSentinel(word uint64) bool {
	return ExtractSize(word) == 0 && ExtractAllocated(word)
}

// Header is a decoded header word, used by diagnostics.
type Header struct {
	Size        uint64
	Allocated   bool
	PrevAlloc   bool
	PrevMinimal bool
}

// DecodeHeader unpacks word into a Header.
func DecodeHeader(word uint64) Header {
	return Header{
		Size:        ExtractSize(word),
		Allocated:   ExtractAllocated(word),
		PrevAlloc:   ExtractPrevAllocated(word),
		PrevMinimal: ExtractPrevMinimal(word),
	}
}

// Word re-packs h.
func (h Header) Word() uint64 {
	return Pack(h.Size, h.PrevMinimal, h.PrevAlloc, h.Allocated)
}

func (h Header) String() string {
	state := "free"
	if h.Allocated {
		state = "alloc"
	}
	return fmt.Sprintf("%s size=%d prev_alloc=%t prev_min=%t", state, h.Size, h.PrevAlloc, h.PrevMinimal)
}
