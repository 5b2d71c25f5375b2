package alloc

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassIndex(t *testing.T) {
	tests := []struct {
		size uint64
		want int
	}{
		{32, 0},
		{48, 0},
		{63, 0},
		{64, 1},
		{127, 1},
		{128, 2},
		{256, 3},
		{511, 3},
		{512, 4},
		{1024, 5},
		{2047, 5},
		{2048, 6},
		{4095, 6},
		{4096, 7},
		{1 << 20, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classIndex(tt.size), "size %d", tt.size)
	}
}

func TestClassRange_CoversClassIndex(t *testing.T) {
	for i := range NumClasses {
		lo, hi := ClassRange(i)
		assert.Equal(t, i, classIndex(lo), "class %d lower bound", i)
		if hi != 0 {
			assert.Equal(t, i, classIndex(hi-1), "class %d upper bound", i)
			assert.Equal(t, i+1, classIndex(hi))
		}
	}
}

func TestBucket_SpreadsAdjacentBlocks(t *testing.T) {
	h, _ := newTestHeap(t, nil)

	seen := map[int]bool{}
	for b := uint64(8); b < 8+6*16; b += 16 {
		seen[h.bucket(b)] = true
	}
	require.Len(t, seen, DefaultMinimalBuckets, "six consecutive minimal blocks should use every bucket")
}

func TestScenario_AllocReleaseReuse(t *testing.T) {
	h, _ := newTestHeap(t, nil)

	a := mustAlloc(t, h, 16) // 32-byte block
	b := mustAlloc(t, h, 32) // 48-byte block
	require.Equal(t, firstPayload, a)
	require.Equal(t, Ptr(48), b)
	fill(h, b, 32, 7)

	h.Release(a)
	assertInvariants(t, h)
	require.True(t, hasPattern(h, b, 32, 7))

	again := mustAlloc(t, h, 16)
	require.Equal(t, a, again, "freed block is reused")
	assertInvariants(t, h)

	h.Release(b)
	require.Equal(t, []BlockInfo{
		{Offset: 8, Size: 32, Allocated: true, PrevAlloc: true},
		{Offset: 40, Size: 4064, PrevAlloc: true},
	}, blocks(h))
	require.Equal(t, 1, h.Summary().FreeBlocks)
	assertInvariants(t, h)

	h.Release(again)
	require.Equal(t, []BlockInfo{{Offset: 8, Size: 4096, PrevAlloc: true}}, blocks(h))
	assertInvariants(t, h)
}

func TestMinimal_FreeEveryOtherThenReuse(t *testing.T) {
	h, _ := newTestHeap(t, nil)

	var ptrs []Ptr
	for range 64 {
		ptrs = append(ptrs, mustAlloc(t, h, 8))
	}
	var freed []Ptr
	for i := 0; i < len(ptrs); i += 2 {
		h.Release(ptrs[i])
		freed = append(freed, ptrs[i])
	}
	assertInvariants(t, h)

	sum := h.Summary()
	total := 0
	for _, n := range sum.BucketLengths {
		total += n
	}
	require.Equal(t, 32, total)

	extends, hits := h.Stats().Extends, h.Stats().FitHits
	var reused []Ptr
	for range 32 {
		reused = append(reused, mustAlloc(t, h, 1))
	}
	assertInvariants(t, h)
	require.Equal(t, extends, h.Stats().Extends)
	require.Equal(t, hits+32, h.Stats().FitHits)

	sort.Slice(reused, func(i, j int) bool { return reused[i] < reused[j] })
	require.Equal(t, freed, reused, "minimal requests should be served from the minimal chains")
}

func TestMinimal_SingleBucket(t *testing.T) {
	h, _ := newTestHeap(t, &Options{MinimalBuckets: 1})

	var ptrs []Ptr
	for range 11 {
		ptrs = append(ptrs, mustAlloc(t, h, 4))
	}
	for i := 1; i < 10; i += 2 {
		h.Release(ptrs[i])
	}
	assertInvariants(t, h)
	require.Equal(t, []int{5}, h.Summary().BucketLengths)

	// Unlinking from the middle of a chain.
	h.Release(ptrs[4]) // merges with both minimal neighbours
	assertInvariants(t, h)
	require.Equal(t, []int{3}, h.Summary().BucketLengths)
}

func TestFreeList_LIFO(t *testing.T) {
	h, _ := newTestHeap(t, nil)

	a := mustAlloc(t, h, 100)
	mustAlloc(t, h, 8)
	b := mustAlloc(t, h, 100)
	mustAlloc(t, h, 8)

	h.Release(a)
	h.Release(b)

	// Both are 112-byte blocks in class 1; the most recent release wins.
	p := mustAlloc(t, h, 100)
	require.Equal(t, b, p)
	assertInvariants(t, h)
}

func TestFindFit_SkipsTooSmallInSameClass(t *testing.T) {
	h, _ := newTestHeap(t, nil)

	big := mustAlloc(t, h, 100) // 112
	mustAlloc(t, h, 8)
	small := mustAlloc(t, h, 60) // 80
	mustAlloc(t, h, 8)
	h.Release(big)
	h.Release(small) // head of class 1, too small for 112

	p := mustAlloc(t, h, 100)
	require.Equal(t, big, p)
	assertInvariants(t, h)
}
