package alloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/format"
)

func TestCheck_UninitializedHeap(t *testing.T) {
	h, _ := newTestHeap(t, nil)
	require.NoError(t, h.Check("empty"))
	require.True(t, h.CheckConsistency("empty"))
}

// TestCheck_DetectsCorruption damages a small heap in one way per case.
//
//	0x08  allocated 16
//	0x18  free 4080 (footer at 0x1000)
//	0x1008 epilogue
func TestCheck_DetectsCorruption(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(h *Heap)
		want    string
	}{
		{
			name:    "prologue",
			corrupt: func(h *Heap) { format.PutWord(h.data, 0, 0) },
			want:    InvPrologue,
		},
		{
			name:    "footer",
			corrupt: func(h *Heap) { format.PutWord(h.data, 0x1000, 0) },
			want:    InvFooter,
		},
		{
			name: "prev alloc bit",
			corrupt: func(h *Heap) {
				format.PutWord(h.data, 0x18, format.Pack(4080, true, false, false))
			},
			want: InvPrevAlloc,
		},
		{
			name: "prev minimal bit",
			corrupt: func(h *Heap) {
				format.PutWord(h.data, 0x18, format.Pack(4080, false, true, false))
			},
			want: InvPrevMinimal,
		},
		{
			name: "adjacent free",
			corrupt: func(h *Heap) {
				h.writeBlock(0x08, 16, false, true, false)
				h.setPrevBits(0x18, true, false)
			},
			want: InvAdjacentFree,
		},
		{
			name:    "epilogue",
			corrupt: func(h *Heap) { format.PutWord(h.data, 0x1008, 0) },
			want:    InvEpilogue,
		},
		{
			name: "block overruns arena",
			corrupt: func(h *Heap) {
				format.PutWord(h.data, 0x18, format.Pack(8192, true, true, false))
			},
			want: InvBounds,
		},
		{
			name:    "stale last block",
			corrupt: func(h *Heap) { h.last = 0x08 },
			want:    InvLastBlock,
		},
		{
			name:    "free block missing from lists",
			corrupt: func(h *Heap) { h.classes[classIndex(4080)] = nilBlock },
			want:    InvFreeCount,
		},
		{
			name:    "allocated block on a list",
			corrupt: func(h *Heap) { h.classes[0] = 0x08 },
			want:    InvListAlloc,
		},
		{
			name: "wrong class",
			corrupt: func(h *Heap) {
				i := classIndex(4080)
				h.classes[0], h.classes[i] = h.classes[i], nilBlock
			},
			want: InvListClass,
		},
		{
			name:    "broken prev link",
			corrupt: func(h *Heap) { h.setLinkPrev(0x18, 0x08) },
			want:    InvListLinks,
		},
		{
			name:    "list cycle",
			corrupt: func(h *Heap) { h.setLinkNext(0x18, 0x18) },
			want:    InvListLinks,
		},
		{
			name: "large block on a minimal chain",
			corrupt: func(h *Heap) {
				h.classes[classIndex(4080)] = nilBlock
				h.minimal[0] = 0x18
			},
			want: InvListClass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHeap(t, nil)
			mustAlloc(t, h, 1)
			assertInvariants(t, h)

			tt.corrupt(h)
			err := h.Check("after corrupt")
			require.Error(t, err)
			require.ErrorIs(t, err, ErrCorrupt)

			var ce *CheckError
			require.True(t, errors.As(err, &ce))
			require.Equal(t, tt.want, ce.Invariant, "got %v", err)
			require.Equal(t, "after corrupt", ce.Tag)
			require.Contains(t, ce.Site, "check_test.go")
			require.False(t, h.CheckConsistency("again"))
		})
	}
}

func TestCheckError_Message(t *testing.T) {
	err := &CheckError{
		Invariant: InvFooter,
		Message:   "footer 0x0 != header 0xff0",
		Offset:    0x18,
		Tag:       "Release",
		Site:      "alloc/alloc.go:42",
	}
	require.Equal(t, "Release: footer: footer 0x0 != header 0xff0 (offset 0x18) at alloc/alloc.go:42", err.Error())
}
