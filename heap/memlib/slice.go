package memlib

// Slice is an in-memory provider backed by a Go byte slice reserved at its
// maximum capacity. It is the default provider for tests and trace replay.
type Slice struct {
	data []byte
	brk  int
}

// NewSlice reserves max bytes (DefaultMaxHeap when max is 0).
func NewSlice(max int) (*Slice, error) {
	m, err := normalizeMax(max)
	if err != nil {
		return nil, err
	}
	return &Slice{data: make([]byte, m)}, nil
}

// Extend implements Provider.
func (s *Slice) Extend(n int) (int, error) {
	next, err := grow(s.brk, n, len(s.data))
	if err != nil {
		return 0, err
	}
	old := s.brk
	s.brk = next
	return old, nil
}

// Lo implements Provider.
func (s *Slice) Lo() int { return 0 }

// Hi implements Provider.
func (s *Slice) Hi() int { return s.brk - 1 }

// Size implements Provider.
func (s *Slice) Size() int { return s.brk }

// Cap returns the reservation size.
func (s *Slice) Cap() int { return len(s.data) }

// Bytes implements Provider.
func (s *Slice) Bytes() []byte { return s.data[:s.brk:s.brk] }

// Reset implements Provider. The released bytes are zeroed so a fresh heap
// never observes stale headers.
func (s *Slice) Reset() error {
	clear(s.data[:s.brk])
	s.brk = 0
	return nil
}
