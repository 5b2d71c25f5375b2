package trace

import (
	"fmt"
	"math/bits"
	"math/rand"
)

// GenOptions configures Generate.
type GenOptions struct {
	// Ops is the approximate number of operations, final releases included.
	// Default: 1000
	Ops int

	// IDs caps the number of distinct blocks. Once every id has been used
	// the trace only reallocates and releases. Default: Ops
	IDs int

	// MaxSize is the largest request in bytes. Sizes are drawn so that each
	// power-of-two band below MaxSize is about equally likely. Default: 4096
	MaxSize int

	// ReallocRatio is the share of non-allocating steps that reallocate
	// instead of release. Values outside (0, 1] select the default 0.25.
	ReallocRatio float64

	// Seed makes the trace reproducible.
	Seed int64
}

func (o GenOptions) normalized() GenOptions {
	if o.Ops <= 0 {
		o.Ops = 1000
	}
	if o.IDs <= 0 {
		o.IDs = o.Ops
	}
	if o.MaxSize <= 0 {
		o.MaxSize = 4096
	}
	if o.ReallocRatio <= 0 || o.ReallocRatio > 1 {
		o.ReallocRatio = 0.25
	}
	return o
}

// Generate builds a random, well-formed trace: every id is allocated once,
// may be reallocated, and is released exactly once by the end.
func Generate(o GenOptions) *Trace {
	o = o.normalized()
	rng := rand.New(rand.NewSource(o.Seed))
	t := &Trace{Name: fmt.Sprintf("gen-%d", o.Seed), Weight: 1}

	var (
		live           []int
		size           = make(map[int]int)
		next           int
		liveBytes, top int
	)
	randSize := func() int {
		band := rng.Intn(bits.Len(uint(o.MaxSize)))
		return min(o.MaxSize, 1+rng.Intn(1<<band))
	}
	release := func(i int) {
		id := live[i]
		t.Ops = append(t.Ops, Op{Kind: OpFree, ID: id})
		liveBytes -= size[id]
		live[i] = live[len(live)-1]
		live = live[:len(live)-1]
	}

	for len(t.Ops)+len(live) < o.Ops {
		canAlloc := next < o.IDs
		switch {
		case canAlloc && (len(live) == 0 || rng.Intn(2) == 0):
			s := randSize()
			t.Ops = append(t.Ops, Op{Kind: OpAlloc, ID: next, Size: s})
			size[next] = s
			liveBytes += s
			live = append(live, next)
			next++
		case len(live) == 0:
			// Out of ids with nothing left to touch.
			o.Ops = len(t.Ops)
		case rng.Float64() < o.ReallocRatio:
			id := live[rng.Intn(len(live))]
			s := randSize()
			t.Ops = append(t.Ops, Op{Kind: OpRealloc, ID: id, Size: s})
			liveBytes += s - size[id]
			size[id] = s
		default:
			release(rng.Intn(len(live)))
		}
		top = max(top, liveBytes)
	}
	for len(live) > 0 {
		release(rng.Intn(len(live)))
	}

	t.NumIDs = next
	t.SuggestedHeap = top
	return t
}
