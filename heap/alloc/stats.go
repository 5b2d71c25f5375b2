package alloc

import (
	"fmt"
	"io"
)

// Stats are running counters kept by a Heap.
type Stats struct {
	AllocCalls     int // Successful and failed Allocate calls past argument checks
	FreeCalls      int // Release calls on non-Nil pointers
	ReallocCalls   int // Reallocate calls that moved a block
	ZeroAllocCalls int // ZeroAllocate calls past argument checks
	FailedAllocs   int // Allocations that hit ErrOutOfMemory
	FitHits        int // Allocations served from a free list without growing

	Extends     int   // Arena extensions
	ExtendBytes int64 // Total bytes added by extensions
	HeapBytes   int64 // Current arena size

	Splits     int    // Placements that split off a free remainder
	Coalesce   [4]int // Coalesce calls by case (1..4)
	ListPushes int
	ListPops   int

	LiveBlocks    int
	LiveBytes     int64 // Block bytes of live allocations, headers included
	PeakLiveBytes int64
}

// Stats returns a copy of the heap counters.
func (h *Heap) Stats() Stats { return h.stats }

// PrintStats writes a human-readable report of the counters and the current
// free list census to w.
func (h *Heap) PrintStats(w io.Writer) {
	s := h.stats
	fmt.Fprintf(w, "\n=== ALLOCATOR STATISTICS ===\n")
	fmt.Fprintf(w, "Arena:              %d bytes (%d extensions, %d bytes added)\n",
		s.HeapBytes, s.Extends, s.ExtendBytes)
	fmt.Fprintf(w, "Alloc calls:        %d (fit: %d, failed: %d)\n", s.AllocCalls, s.FitHits, s.FailedAllocs)
	fmt.Fprintf(w, "Free calls:         %d\n", s.FreeCalls)
	fmt.Fprintf(w, "Realloc calls:      %d\n", s.ReallocCalls)
	fmt.Fprintf(w, "Calloc calls:       %d\n", s.ZeroAllocCalls)
	fmt.Fprintf(w, "Live:               %d blocks, %d bytes (peak %d)\n", s.LiveBlocks, s.LiveBytes, s.PeakLiveBytes)
	fmt.Fprintf(w, "Splits:             %d\n", s.Splits)
	fmt.Fprintf(w, "Coalesce cases:     %d / %d / %d / %d\n", s.Coalesce[0], s.Coalesce[1], s.Coalesce[2], s.Coalesce[3])
	fmt.Fprintf(w, "List pushes/pops:   %d / %d\n", s.ListPushes, s.ListPops)

	sum := h.Summary()
	fmt.Fprintf(w, "\nFree Lists:\n")
	for i, n := range sum.ClassLengths {
		lo, hi := ClassRange(i)
		if hi == 0 {
			fmt.Fprintf(w, "  [%d] %5d+       %6d blocks\n", i, lo, n)
			continue
		}
		fmt.Fprintf(w, "  [%d] %5d-%-5d  %6d blocks\n", i, lo, hi-1, n)
	}
	for i, n := range sum.BucketLengths {
		fmt.Fprintf(w, "  min[%d]           %6d blocks\n", i, n)
	}
	fmt.Fprintf(w, "============================\n\n")
}
