//go:build !unix

package memlib

// Mapped falls back to a heap-backed reservation where mmap is not available.
// File-backed arenas are not supported on these platforms.
type Mapped struct {
	Slice
}

// NewAnonymous reserves max bytes on the Go heap.
func NewAnonymous(max int) (*Mapped, error) {
	s, err := NewSlice(max)
	if err != nil {
		return nil, err
	}
	return &Mapped{Slice: *s}, nil
}

// OpenFile is not supported without mmap.
func OpenFile(path string, max int) (*Mapped, error) {
	return nil, ErrUnsupported
}

// FileBacked always reports false.
func (m *Mapped) FileBacked() bool { return false }

// Sync is a no-op.
func (m *Mapped) Sync(off, n int) error { return nil }

// Close is a no-op.
func (m *Mapped) Close() error { return nil }
