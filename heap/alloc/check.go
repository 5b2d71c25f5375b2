package alloc

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/joshuapare/heapkit/internal/format"
)

// Invariant names reported in CheckError.Invariant.
const (
	InvPrologue     = "prologue"      // prologue word is a zero-size allocated sentinel
	InvAlignment    = "alignment"     // payloads 16-aligned, sizes multiples of 16 and >= 16
	InvBounds       = "bounds"        // every block lies inside the arena
	InvFooter       = "footer"        // free non-minimal blocks end with a copy of the header
	InvAdjacentFree = "adjacent-free" // no two consecutive free blocks
	InvPrevAlloc    = "prev-alloc"    // prev_alloc bit matches the previous block
	InvPrevMinimal  = "prev-minimal"  // prev_min bit matches the previous block's size
	InvEpilogue     = "epilogue"      // epilogue is a zero-size allocated header in the last word
	InvLastBlock    = "last-block"    // cached last block is the block before the epilogue
	InvListAlloc    = "list-allocated"
	InvListClass    = "list-class"
	InvListLinks    = "list-links"
	InvFreeCount    = "free-count" // walk and lists see the same free blocks
)

// CheckError describes the first invariant violation found by Check.
type CheckError struct {
	Invariant string // One of the Inv* names
	Message   string
	Offset    uint64 // Block offset where the violation was found
	Tag       string // Caller-supplied label (e.g. the operation just performed)
	Site      string // file:line of the Check caller
}

func (e *CheckError) Error() string {
	s := fmt.Sprintf("%s: %s (offset 0x%X)", e.Invariant, e.Message, e.Offset)
	if e.Tag != "" {
		s = e.Tag + ": " + s
	}
	if e.Site != "" {
		s += " at " + e.Site
	}
	return s
}

// Unwrap lets errors.Is(err, ErrCorrupt) match any violation.
func (e *CheckError) Unwrap() error { return ErrCorrupt }

// Check verifies every heap invariant and returns the first violation as a
// *CheckError, or nil. tag labels the report; the caller's source position
// is recorded as well. An uninitialised heap is trivially consistent.
func (h *Heap) Check(tag string) error {
	return h.check(tag, 2)
}

// CheckConsistency is the boolean form of Check: it logs the violation
// through the heap logger and reports whether the heap is consistent.
func (h *Heap) CheckConsistency(tag string) bool {
	err := h.check(tag, 2)
	if err != nil {
		h.log.Error("heap check failed", "error", err)
		return false
	}
	return true
}

// debugCheck runs after every public operation in heapdebug builds or when
// Options.CheckEveryOp is set, and panics on the first violation.
func (h *Heap) debugCheck(op string) {
	if !debugChecks && !h.opts.CheckEveryOp {
		return
	}
	if err := h.check(op, 3); err != nil {
		panic(err)
	}
}

func (h *Heap) check(tag string, skip int) error {
	if !h.initialized {
		return nil
	}
	var site string
	if _, file, line, ok := runtime.Caller(skip); ok {
		site = fmt.Sprintf("%s:%d", shortFile(file), line)
	}
	if err := h.verify(); err != nil {
		var ce *CheckError
		if errors.As(err, &ce) {
			ce.Tag, ce.Site = tag, site
		}
		return err
	}
	return nil
}

func violation(inv string, off uint64, msg string, args ...any) *CheckError {
	return &CheckError{Invariant: inv, Offset: off, Message: fmt.Sprintf(msg, args...)}
}

// verify walks the arena in address order, then every free list, and
// compares the two views of the free set.
func (h *Heap) verify() error {
	n := uint64(len(h.data))
	if n < format.InitialArenaSize || h.word(format.PrologueOffset) != format.SentinelWord {
		return violation(InvPrologue, format.PrologueOffset, "prologue word is not a sentinel")
	}
	epi := n - format.WordSize

	walkFree := roaring.New()
	prevAllocated, prevMinimal := true, false
	lastSeen := nilBlock

	b := h.start
	for {
		if b > epi {
			return violation(InvBounds, b, "block starts past the epilogue (arena %d bytes)", n)
		}
		w := h.word(b)
		size := format.ExtractSize(w)
		allocated := format.ExtractAllocated(w)

		if format.ExtractPrevAllocated(w) != prevAllocated {
			return violation(InvPrevAlloc, b, "prev_alloc=%t but previous block allocated=%t",
				format.ExtractPrevAllocated(w), prevAllocated)
		}
		if format.ExtractPrevMinimal(w) != prevMinimal {
			return violation(InvPrevMinimal, b, "prev_min=%t but previous block minimal=%t",
				format.ExtractPrevMinimal(w), prevMinimal)
		}
		if size == 0 {
			break
		}

		if !format.IsAligned(b+format.WordSize) || !format.IsAligned(size) || size < format.MinBlockSize {
			return violation(InvAlignment, b, "size %d, payload 0x%X", size, b+format.WordSize)
		}
		if size > epi-b {
			return violation(InvBounds, b, "size %d overruns the epilogue at 0x%X", size, epi)
		}
		if !allocated {
			if !prevAllocated {
				return violation(InvAdjacentFree, b, "free block follows a free block")
			}
			if size > format.MinBlockSize {
				if f := h.word(b + size - format.WordSize); f != w {
					return violation(InvFooter, b, "footer %#x != header %#x", f, w)
				}
			}
			walkFree.Add(uint32(b))
		}

		prevAllocated, prevMinimal = allocated, size == format.MinBlockSize
		lastSeen = b
		b += size
	}

	if b != epi || !format.IsSentinel(h.word(b)) {
		return violation(InvEpilogue, b, "epilogue expected at 0x%X", epi)
	}
	if h.last != lastSeen {
		return violation(InvLastBlock, h.last, "cached last block 0x%X, walk ended at 0x%X", h.last, lastSeen)
	}

	listFree, err := h.verifyLists(walkFree.GetCardinality())
	if err != nil {
		return err
	}

	if listFree.GetCardinality() != walkFree.GetCardinality() {
		missing := roaring.AndNot(walkFree, listFree)
		if !missing.IsEmpty() {
			off := uint64(missing.Minimum())
			return violation(InvFreeCount, off, "free block not on any list (walk %d, lists %d)",
				walkFree.GetCardinality(), listFree.GetCardinality())
		}
	}
	if extra := roaring.AndNot(listFree, walkFree); !extra.IsEmpty() {
		off := uint64(extra.Minimum())
		return violation(InvFreeCount, off, "list entry is not a free block in the arena")
	}
	return nil
}

// verifyLists checks every list entry and returns the set of listed blocks.
// limit bounds the traversal so a cycle is reported instead of looping.
func (h *Heap) verifyLists(limit uint64) (*roaring.Bitmap, error) {
	listed := roaring.New()
	epi := uint64(len(h.data)) - format.WordSize

	entry := func(x uint64) error {
		if x < h.start || x >= epi || !format.IsAligned(x+format.WordSize) {
			return violation(InvBounds, x, "list entry outside the arena")
		}
		if h.isAlloc(x) {
			return violation(InvListAlloc, x, "allocated block on a free list")
		}
		if !listed.CheckedAdd(uint32(x)) {
			return violation(InvListLinks, x, "block listed twice or list cycle")
		}
		if listed.GetCardinality() > limit {
			return violation(InvFreeCount, x, "lists hold more entries than the %d free blocks", limit)
		}
		return nil
	}

	for i, head := range h.classes {
		prev := nilBlock
		for x := head; x != nilBlock; x = h.linkNext(x) {
			if err := entry(x); err != nil {
				return nil, err
			}
			size := h.size(x)
			if size == format.MinBlockSize || classIndex(size) != i {
				return nil, violation(InvListClass, x, "size %d on class %d list", size, i)
			}
			if p := h.linkPrev(x); p != prev {
				return nil, violation(InvListLinks, x, "prev link 0x%X, expected 0x%X", p, prev)
			}
			prev = x
		}
	}

	for i, head := range h.minimal {
		for x := head; x != nilBlock; x = h.minNext(x) {
			if err := entry(x); err != nil {
				return nil, err
			}
			if size := h.size(x); size != format.MinBlockSize {
				return nil, violation(InvListClass, x, "size %d on minimal bucket %d", size, i)
			}
			if h.bucket(x) != i {
				return nil, violation(InvListClass, x, "minimal block in bucket %d, hashes to %d", i, h.bucket(x))
			}
		}
	}
	return listed, nil
}

// shortFile trims a source path to its last directory and file name.
func shortFile(path string) string {
	return filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path))
}
