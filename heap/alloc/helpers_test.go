package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/memlib"
)

// Layout of a fresh heap with default options:
//
//	0x0000  prologue
//	0x0008  free block, 4096 bytes
//	0x1008  epilogue
const (
	firstBlock   = 8
	firstPayload = Ptr(16)
	freshArena   = 16 + 4096
)

// newTestHeap creates a heap over a default-sized slice provider.
func newTestHeap(t testing.TB, opts *Options) (*Heap, *memlib.Slice) {
	t.Helper()
	s, err := memlib.NewSlice(0)
	require.NoError(t, err)
	return New(s, opts), s
}

// assertInvariants fails the test on the first heap invariant violation.
func assertInvariants(t testing.TB, h *Heap) {
	t.Helper()
	require.NoError(t, h.Check(t.Name()))
}

// mustAlloc allocates size bytes or fails the test.
func mustAlloc(t testing.TB, h *Heap, size int) Ptr {
	t.Helper()
	p, err := h.Allocate(size)
	require.NoError(t, err)
	require.NotEqual(t, Nil, p)
	return p
}

// blocks returns every block in address order.
func blocks(h *Heap) []BlockInfo {
	var out []BlockInfo
	h.Walk(func(b BlockInfo) bool {
		out = append(out, b)
		return true
	})
	return out
}

// blockAt returns the block whose header is at off.
func blockAt(t testing.TB, h *Heap, off uint64) BlockInfo {
	t.Helper()
	for _, b := range blocks(h) {
		if b.Offset == off {
			return b
		}
	}
	require.FailNowf(t, "block not found", "no block at 0x%X", off)
	return BlockInfo{}
}

// fill writes a recognisable pattern over the first n payload bytes of p.
func fill(h *Heap, p Ptr, n int, seed byte) {
	v := h.Payload(p, n)
	for i := range v {
		v[i] = seed + byte(i)
	}
}

// hasPattern reports whether the first n payload bytes of p hold fill's pattern.
func hasPattern(h *Heap, p Ptr, n int, seed byte) bool {
	v := h.Payload(p, n)
	if len(v) != n {
		return false
	}
	for i := range v {
		if v[i] != seed+byte(i) {
			return false
		}
	}
	return true
}
