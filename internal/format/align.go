package format

// Alignment utilities for arena sizes and offsets.

// Align16 returns n aligned up to the next 16-byte boundary.
//
// Example:
//
//	Align16(1)  = 16
//	Align16(16) = 16
//	Align16(17) = 32
func Align16(n int) int {
	return (n + AlignmentMask) &^ AlignmentMask
}

// Align16U64 is the uint64 version of Align16 used by the allocator, where
// sizes are stored in header words.
func Align16U64(n uint64) uint64 {
	return (n + AlignmentMask) &^ uint64(AlignmentMask)
}

// IsAligned reports whether off is a multiple of the alignment unit.
func IsAligned(off uint64) bool {
	return off&AlignmentMask == 0
}

// AdjustedSize returns the block size needed to serve a payload request of
// size bytes: the request plus one header word, rounded to the alignment
// unit, and never smaller than a minimal block.
//
//	AdjustedSize(1)  = 16
//	AdjustedSize(8)  = 16
//	AdjustedSize(9)  = 32
//	AdjustedSize(24) = 32
func AdjustedSize(size uint64) uint64 {
	if size <= WordSize {
		return MinBlockSize
	}
	return Align16U64(size + WordSize)
}
