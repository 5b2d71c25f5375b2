package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCoalesce_AllFourCases frees four adjacent 32-byte blocks in an order
// that exercises each merge case once.
//
//	[a 32][b 32][c 32][d 32][tail 3968]
func TestCoalesce_AllFourCases(t *testing.T) {
	h, _ := newTestHeap(t, nil)

	a := mustAlloc(t, h, 24)
	b := mustAlloc(t, h, 24)
	c := mustAlloc(t, h, 24)
	d := mustAlloc(t, h, 24)
	require.Equal(t, []Ptr{16, 48, 80, 112}, []Ptr{a, b, c, d})
	base := h.Stats().Coalesce

	// Case 1: both neighbours allocated.
	h.Release(b)
	assertInvariants(t, h)
	assert.Equal(t, BlockInfo{Offset: 40, Size: 32, PrevAlloc: true}, blockAt(t, h, 40))
	assert.False(t, blockAt(t, h, 72).PrevAlloc)

	// Case 2: a absorbs the free b after it.
	h.Release(a)
	assertInvariants(t, h)
	assert.Equal(t, uint64(64), blockAt(t, h, 8).Size)

	// Case 3: the free [a+b] before c absorbs c.
	h.Release(c)
	assertInvariants(t, h)
	assert.Equal(t, uint64(96), blockAt(t, h, 8).Size)

	// Case 4: d merges both ways, leaving one block.
	h.Release(d)
	assertInvariants(t, h)
	require.Equal(t, []BlockInfo{{Offset: 8, Size: 4096, PrevAlloc: true}}, blocks(h))
	require.Equal(t, uint64(firstBlock), h.last)

	got := h.Stats().Coalesce
	for i := range got {
		assert.Equal(t, base[i]+1, got[i], "case %d", i+1)
	}
}

func TestCoalesce_MinimalNeighbours(t *testing.T) {
	h, _ := newTestHeap(t, nil)

	a := mustAlloc(t, h, 8) // 0x08
	b := mustAlloc(t, h, 8) // 0x18
	mustAlloc(t, h, 8)      // 0x28, keeps b away from the tail
	require.True(t, blockAt(t, h, 24).PrevMinimal)

	h.Release(b)
	assertInvariants(t, h)
	next := blockAt(t, h, 40)
	assert.True(t, next.PrevMinimal)
	assert.False(t, next.PrevAlloc)
	assert.Equal(t, 1, h.Summary().BucketLengths[h.bucket(24)])

	// a + b merge into a 32-byte block; the successor's prev_min clears.
	h.Release(a)
	assertInvariants(t, h)
	assert.Equal(t, uint64(32), blockAt(t, h, 8).Size)
	next = blockAt(t, h, 40)
	assert.False(t, next.PrevMinimal)
	assert.False(t, next.PrevAlloc)
	assert.Zero(t, h.Summary().BucketLengths[h.bucket(24)])
}

func TestCoalesce_BackwardIntoMinimal(t *testing.T) {
	h, _ := newTestHeap(t, nil)

	a := mustAlloc(t, h, 8)  // 0x08, minimal
	b := mustAlloc(t, h, 24) // 0x18, 32 bytes
	mustAlloc(t, h, 8)       // 0x38

	h.Release(a)
	h.Release(b) // prev is minimal: found via prev_min, not a footer
	assertInvariants(t, h)
	assert.Equal(t, BlockInfo{Offset: 8, Size: 48, PrevAlloc: true}, blockAt(t, h, 8))
	assert.False(t, blockAt(t, h, 56).PrevMinimal)
}

func TestCoalesce_TailUpdatesLastBlock(t *testing.T) {
	h, _ := newTestHeap(t, nil)

	mustAlloc(t, h, 24)
	p := mustAlloc(t, h, 4032) // consumes the rest exactly: 32 + 4048 + 16 tail
	last := h.last
	require.Equal(t, uint64(16), blockAt(t, h, last).Size)

	h.Release(p) // case 2 with the minimal tail
	assertInvariants(t, h)
	require.Equal(t, uint64(40), h.last)
	require.Equal(t, uint64(4064), blockAt(t, h, 40).Size)
}
