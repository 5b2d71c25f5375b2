// Package alloc implements a malloc/free/realloc/calloc allocator over a
// single growable arena obtained from a memlib.Provider.
//
// # Overview
//
// The allocator packs blocks back to back inside the arena. Every block starts
// with a header word holding its size and three flags; free blocks are kept
// on segregated free lists and are eagerly coalesced with free neighbours, so
// two adjacent free blocks never exist.
//
// # Usage Example
//
//	arena, err := memlib.NewSlice(0)
//	if err != nil {
//	    return err
//	}
//	h := alloc.New(arena, nil)
//
//	p, err := h.Allocate(100)
//	if err != nil {
//	    return err // alloc.ErrOutOfMemory when the arena is exhausted
//	}
//	copy(h.Payload(p, 100), data)
//
//	p, err = h.Reallocate(p, 400)
//	...
//	h.Release(p)
//
// Pointers (Ptr) are byte offsets of payloads inside the arena, never Go
// pointers, so the arena can be a plain slice, an anonymous mapping or a
// file. Nil (offset 0) is never a valid payload.
//
// # Block Layout
//
//	Offset  Size  Description
//	0x00    8     Header: size | prev_min<<2 | prev_alloc<<1 | alloc
//	0x08    ...   Payload (allocated) or free-list links (free)
//	size-8  8     Footer, copy of the header (free blocks > 16 bytes only)
//
// Minimal blocks are 16 bytes: a header and one payload word. They carry no
// footer, which is why each header also records whether the previous block
// is minimal: a minimal predecessor is found at a fixed offset instead of
// through its footer.
//
// The arena starts with a zero-size allocated prologue word and ends with a
// zero-size allocated epilogue header. Headers sit at 8 mod 16 so that every
// payload is 16-byte aligned.
//
// # Free Lists
//
// Free blocks larger than 16 bytes live in 8 size classes:
//
//	Class 0:   32 -   63 bytes
//	Class 1:   64 -  127 bytes
//	Class 2:  128 -  255 bytes
//	Class 3:  256 -  511 bytes
//	Class 4:  512 - 1023 bytes
//	Class 5:   1 -    2 KB
//	Class 6:   2 -    4 KB
//	Class 7:   4+     KB
//
// Each class is an unordered doubly linked LIFO list threaded through the
// free payloads. Minimal free blocks only have room for one link, so they are
// kept in a small hash table of singly linked chains keyed by block address.
//
// Allocation is first-fit, starting at the request's class and moving up.
// When nothing fits the arena grows by at least 4KB.
//
// # Consistency Checker
//
// Check walks the arena and every free list and reports the first violated
// invariant as a *CheckError. Build with -tags heapdebug to run it after
// every public operation, or set Options.CheckEveryOp.
//
// # Thread Safety
//
// A Heap is not thread-safe. Callers must serialise all calls externally.
// Independent heaps on independent providers can be used concurrently.
//
// # Related Packages
//
//   - github.com/joshuapare/heapkit/heap/memlib: Raw memory providers
//   - github.com/joshuapare/heapkit/heap/dirty: Page-level dirty tracking
//   - github.com/joshuapare/heapkit/internal/format: Header word encoding
package alloc
