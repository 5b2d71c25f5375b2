package driver

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/trace"
)

// Allocator is the surface the driver exercises. *alloc.Heap implements it;
// tests substitute deliberately broken implementations.
type Allocator interface {
	Allocate(size int) (alloc.Ptr, error)
	Reallocate(p alloc.Ptr, size int) (alloc.Ptr, error)
	Release(p alloc.Ptr)
	Payload(p alloc.Ptr, n int) []byte
	Bytes() []byte
	Check(tag string) error
}

// ctxCheckInterval is how many ops run between context checks.
const ctxCheckInterval = 1024

type liveBlock struct {
	p    alloc.Ptr
	size int
	live bool
}

// replayer validates one trace against one allocator.
type replayer struct {
	a     Allocator
	check bool

	numIDs int
	blocks []liveBlock // sized to the ids the trace actually uses
	occ    *roaring.Bitmap // arena bytes covered by live payloads

	liveBytes int64
	peak      int64
}

func newReplayer(a Allocator, tr *trace.Trace, check bool) *replayer {
	return &replayer{
		a:      a,
		check:  check,
		numIDs: tr.NumIDs,
		blocks: make([]liveBlock, tr.IDSpan()),
		occ:    roaring.New(),
	}
}

// Validate replays tr against a, checking every returned payload for
// alignment, bounds and overlap, and every live payload for integrity. With
// check set the allocator's own consistency check runs after each op.
// It returns the peak live payload bytes, or the first failure as a
// *ValidationError.
func Validate(ctx context.Context, a Allocator, tr *trace.Trace, check bool) (int64, error) {
	r := newReplayer(a, tr, check)
	for i, op := range tr.Ops {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return r.peak, err
			}
		}
		if err := r.step(i, op); err != nil {
			return r.peak, err
		}
		if r.check {
			if err := a.Check(fmt.Sprintf("op %d (%s)", i, op)); err != nil {
				return r.peak, &ValidationError{Type: TypeHeap, Op: i, Offset: -1, Message: "consistency check failed", Err: err}
			}
		}
	}
	return r.peak, nil
}

func (r *replayer) step(i int, op trace.Op) error {
	if op.ID < 0 || op.ID >= r.numIDs {
		return &ValidationError{Type: TypeTrace, Op: i, Offset: -1, Message: fmt.Sprintf("id %d outside [0, %d)", op.ID, r.numIDs)}
	}
	b := r.blocks[op.ID]

	switch op.Kind {
	case trace.OpAlloc:
		if b.live {
			return &ValidationError{Type: TypeTrace, Op: i, Offset: -1, Message: fmt.Sprintf("id %d allocated while live", op.ID)}
		}
		p, err := r.a.Allocate(op.Size)
		if err != nil {
			return &ValidationError{Type: TypeAlloc, Op: i, Offset: -1, Message: fmt.Sprintf("allocate %d bytes", op.Size), Err: err}
		}
		if err := r.place(i, op.ID, p, op.Size); err != nil {
			return err
		}
		r.fill(p, op.Size, op.ID)
		return nil

	case trace.OpRealloc:
		if b.live {
			if err := r.verify(i, op.ID, b); err != nil {
				return err
			}
		}
		p, err := r.a.Reallocate(b.p, op.Size)
		if err != nil {
			return &ValidationError{Type: TypeAlloc, Op: i, Offset: -1, Message: fmt.Sprintf("reallocate id %d to %d bytes", op.ID, op.Size), Err: err}
		}
		r.drop(op.ID)
		if err := r.place(i, op.ID, p, op.Size); err != nil {
			return err
		}
		if keep := min(b.size, op.Size); b.live && keep > 0 {
			if off, ok := r.intact(p, keep, op.ID); !ok {
				return &ValidationError{Type: TypeRealloc, Op: i, Offset: off, Message: fmt.Sprintf("first %d bytes of id %d not preserved", keep, op.ID)}
			}
		}
		r.fill(p, op.Size, op.ID)
		return nil

	case trace.OpFree:
		if b.live {
			if err := r.verify(i, op.ID, b); err != nil {
				return err
			}
		}
		r.a.Release(b.p) // Nil for zero-byte allocations
		r.drop(op.ID)
		return nil

	default:
		return &ValidationError{Type: TypeTrace, Op: i, Offset: -1, Message: fmt.Sprintf("unknown op %s", op.Kind)}
	}
}

// place validates a fresh payload and records it as live. The caller fills it.
func (r *replayer) place(i, id int, p alloc.Ptr, size int) error {
	if size == 0 {
		return nil
	}
	if p == alloc.Nil {
		return &ValidationError{Type: TypeAlloc, Op: i, Offset: -1, Message: fmt.Sprintf("nil payload for %d bytes", size)}
	}
	off := int64(p)
	if !format.IsAligned(uint64(p)) {
		return &ValidationError{Type: TypeAlignment, Op: i, Offset: off, Message: fmt.Sprintf("payload not %d-byte aligned", format.Alignment)}
	}
	arena := r.a.Bytes()
	if _, err := buf.CheckRange(len(arena), int(p), size); err != nil {
		return &ValidationError{Type: TypeBounds, Op: i, Offset: off, Message: fmt.Sprintf("%d-byte payload outside the %d-byte arena", size, len(arena)), Err: err}
	}
	lo, hi := uint64(p), uint64(p)+uint64(size)
	if r.occ.IntersectsWithInterval(lo, hi) {
		return &ValidationError{Type: TypeOverlap, Op: i, Offset: off, Message: fmt.Sprintf("payload [0x%X, 0x%X) overlaps a live payload", lo, hi)}
	}
	if len(r.a.Payload(p, size)) != size {
		return &ValidationError{Type: TypeBounds, Op: i, Offset: off, Message: fmt.Sprintf("payload view shorter than %d bytes", size)}
	}

	r.occ.AddRange(lo, hi)
	r.blocks[id] = liveBlock{p: p, size: size, live: true}
	r.liveBytes += int64(size)
	r.peak = max(r.peak, r.liveBytes)
	return nil
}

// drop forgets the live payload of id, if any.
func (r *replayer) drop(id int) {
	b := r.blocks[id]
	if !b.live {
		r.blocks[id] = liveBlock{}
		return
	}
	r.occ.RemoveRange(uint64(b.p), uint64(b.p)+uint64(b.size))
	r.liveBytes -= int64(b.size)
	r.blocks[id] = liveBlock{}
}

func (r *replayer) verify(i, id int, b liveBlock) error {
	if off, ok := r.intact(b.p, b.size, id); !ok {
		return &ValidationError{Type: TypePayload, Op: i, Offset: off, Message: fmt.Sprintf("payload of id %d was overwritten", id)}
	}
	return nil
}

// pattern is the byte stored at offset i of the payload of id.
func pattern(id, i int) byte {
	return byte(id*31 + i)
}

func (r *replayer) fill(p alloc.Ptr, size, id int) {
	v := r.a.Payload(p, size)
	for i := range v {
		v[i] = pattern(id, i)
	}
}

// intact reports whether the first n bytes of p hold id's pattern, and the
// offset of the first mismatch if not.
func (r *replayer) intact(p alloc.Ptr, n, id int) (int64, bool) {
	v := r.a.Payload(p, n)
	if len(v) != n {
		return int64(p), false
	}
	for i := range v {
		if v[i] != pattern(id, i) {
			return int64(p) + int64(i), false
		}
	}
	return 0, true
}

// Time replays tr against a without any validation, for throughput.
func Time(ctx context.Context, a Allocator, tr *trace.Trace) error {
	ptrs := make([]alloc.Ptr, tr.IDSpan())
	for i, op := range tr.Ops {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var err error
		switch op.Kind {
		case trace.OpAlloc:
			ptrs[op.ID], err = a.Allocate(op.Size)
		case trace.OpRealloc:
			ptrs[op.ID], err = a.Reallocate(ptrs[op.ID], op.Size)
		case trace.OpFree:
			a.Release(ptrs[op.ID])
			ptrs[op.ID] = alloc.Nil
		}
		if err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op, err)
		}
	}
	return nil
}
