package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/memlib"
	"github.com/joshuapare/heapkit/internal/format"
)

func TestAttach_RebuildsLists(t *testing.T) {
	h, s := newTestHeap(t, nil)

	var ptrs []Ptr
	for i := range 40 {
		ptrs = append(ptrs, mustAlloc(t, h, 1+i*37))
	}
	for i := 0; i < len(ptrs); i += 3 {
		h.Release(ptrs[i])
	}
	fill(h, ptrs[1], 30, 5)
	want := h.Summary()

	h2, err := Attach(s, nil)
	require.NoError(t, err)
	assertInvariants(t, h2)
	require.Equal(t, want, h2.Summary())
	require.Equal(t, h.Stats().LiveBlocks, h2.Stats().LiveBlocks)
	require.Equal(t, h.Stats().LiveBytes, h2.Stats().LiveBytes)
	require.Equal(t, h.last, h2.last)
	require.True(t, hasPattern(h2, ptrs[1], 30, 5))

	// The adopted heap keeps working.
	p := mustAlloc(t, h2, 64)
	h2.Release(ptrs[1])
	h2.Release(p)
	assertInvariants(t, h2)
}

func TestAttach_Errors(t *testing.T) {
	s, err := memlib.NewSlice(0)
	require.NoError(t, err)

	_, err = Attach(s, nil)
	require.ErrorIs(t, err, format.ErrTruncated)

	_, err = s.Extend(64)
	require.NoError(t, err)
	_, err = Attach(s, nil)
	require.ErrorIs(t, err, format.ErrBadPrologue)
}

func TestAttach_RejectsOverrun(t *testing.T) {
	h, s := newTestHeap(t, nil)
	mustAlloc(t, h, 1)

	format.PutWord(s.Bytes(), 0x18, format.Pack(1<<20, true, true, false))
	_, err := Attach(s, nil)
	require.ErrorIs(t, err, format.ErrTruncated)
}

func TestAttach_RejectsInconsistentHeap(t *testing.T) {
	h, s := newTestHeap(t, nil)
	mustAlloc(t, h, 100)

	// Flip the first block to free without fixing its neighbour's bits.
	format.PutWord(s.Bytes(), 0x08, format.Pack(112, false, true, false))
	_, err := Attach(s, nil)
	require.ErrorIs(t, err, ErrCorrupt)
}
