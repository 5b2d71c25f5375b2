// Package dirty tracks which pages of an arena have been written since the
// last flush, so a file-backed arena can be persisted page by page instead of
// syncing the whole mapping.
//
// The tracker keeps a roaring bitmap of page numbers. Adds are cheap (a range
// insert into a run container), and Ranges returns sorted, coalesced byte
// ranges ready for msync.
//
// NOT thread-safe. Only one goroutine should use a Tracker at a time, which
// matches the single-threaded allocator that feeds it.
package dirty

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/joshuapare/heapkit/heap/memlib"
)

// standardPageSize is the typical OS page size (4KB).
const standardPageSize = 4096

// DirtyTracker is the minimal interface for components that only report
// modified byte ranges (the allocator) without flushing them.
type DirtyTracker interface {
	// Add marks a byte range as dirty.
	// off is the arena offset, length is the number of bytes.
	Add(off, length int)
}

// Range represents a dirty byte range (arena offsets).
type Range struct {
	Off int64 // Arena offset of the first byte
	Len int64 // Length in bytes
}

// Tracker accumulates dirty pages and flushes them through a memlib.Syncer.
type Tracker struct {
	pages    *roaring.Bitmap
	pageSize int64
}

// NewTracker creates a tracker with 4KB pages.
func NewTracker() *Tracker {
	return NewTrackerWithPageSize(standardPageSize)
}

// NewTrackerWithPageSize creates a tracker with a custom page granularity.
// Non-positive sizes fall back to 4KB.
func NewTrackerWithPageSize(pageSize int) *Tracker {
	if pageSize <= 0 {
		pageSize = standardPageSize
	}
	return &Tracker{
		pages:    roaring.New(),
		pageSize: int64(pageSize),
	}
}

// Add records a dirty range. Every page overlapping [off, off+length) is marked.
func (t *Tracker) Add(off, length int) {
	if length <= 0 || off < 0 {
		return
	}
	first := uint64(int64(off) / t.pageSize)
	last := uint64((int64(off) + int64(length) - 1) / t.pageSize)
	t.pages.AddRange(first, last+1)
}

// DirtyPages returns the number of distinct dirty pages.
func (t *Tracker) DirtyPages() uint64 {
	return t.pages.GetCardinality()
}

// IsDirty reports whether the page containing off is dirty.
func (t *Tracker) IsDirty(off int) bool {
	if off < 0 {
		return false
	}
	return t.pages.Contains(uint32(int64(off) / t.pageSize))
}

// Ranges returns the dirty pages as sorted, page-aligned, merged byte ranges.
//
//	Dirty pages: [0, 1, 2, 5, 6] -> Ranges: [0x0-0x3000, 0x5000-0x7000]
func (t *Tracker) Ranges() []Range {
	if t.pages.IsEmpty() {
		return nil
	}
	var (
		out        []Range
		start, end int64 = -1, -1
	)
	it := t.pages.Iterator()
	for it.HasNext() {
		p := int64(it.Next())
		if p == end {
			end++
			continue
		}
		if start >= 0 {
			out = append(out, Range{Off: start * t.pageSize, Len: (end - start) * t.pageSize})
		}
		start, end = p, p+1
	}
	out = append(out, Range{Off: start * t.pageSize, Len: (end - start) * t.pageSize})
	return out
}

// Flush syncs every dirty range through s and clears the tracker.
//
// The context is checked before each range. If cancelled mid-flush, some
// ranges may have been synced while others have not; the tracker keeps all
// of its pages in that case so a retry covers everything.
func (t *Tracker) Flush(ctx context.Context, s memlib.Syncer) error {
	for _, r := range t.Ranges() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Sync(int(r.Off), int(r.Len)); err != nil {
			return err
		}
	}
	t.Reset()
	return nil
}

// Reset clears all tracked pages.
func (t *Tracker) Reset() {
	t.pages.Clear()
}
