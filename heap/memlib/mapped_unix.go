//go:build unix

package memlib

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mapped is a provider backed by an mmap reservation. An anonymous mapping
// behaves like Slice but lives outside the Go heap; a file-backed mapping
// persists the arena, growing the file with ftruncate on every Extend.
//
// The whole reservation is mapped once, so the base address never changes.
// Only bytes below the break are ever touched, which keeps file-backed
// mappings clear of the pages past end of file.
type Mapped struct {
	data []byte
	brk  int
	f    *os.File
}

// NewAnonymous maps a private anonymous reservation of max bytes.
func NewAnonymous(max int) (*Mapped, error) {
	m, err := normalizeMax(max)
	if err != nil {
		return nil, err
	}
	data, err := unix.Mmap(-1, 0, m, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("memlib: mmap anonymous %d bytes: %w", m, err)
	}
	return &Mapped{data: data}, nil
}

// OpenFile maps the file at path as an arena reservation of max bytes,
// creating it if needed. An existing file keeps its contents and its size
// becomes the initial break, so a heap can be re-attached to it.
func OpenFile(path string, max int) (*Mapped, error) {
	m, err := normalizeMax(max)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()
	if size > int64(m) {
		f.Close()
		return nil, fmt.Errorf("memlib: %s is %d bytes, larger than reservation %d", path, size, m)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, m, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("memlib: mmap %s: %w", path, err)
	}
	return &Mapped{data: data, brk: int(size), f: f}, nil
}

// Extend implements Provider.
func (m *Mapped) Extend(n int) (int, error) {
	if m.data == nil {
		return 0, ErrClosed
	}
	next, err := grow(m.brk, n, len(m.data))
	if err != nil {
		return 0, err
	}
	if m.f != nil {
		if err := unix.Ftruncate(int(m.f.Fd()), int64(next)); err != nil {
			return 0, fmt.Errorf("memlib: grow %s to %d bytes: %w", m.f.Name(), next, err)
		}
	}
	old := m.brk
	m.brk = next
	return old, nil
}

// Lo implements Provider.
func (m *Mapped) Lo() int { return 0 }

// Hi implements Provider.
func (m *Mapped) Hi() int { return m.brk - 1 }

// Size implements Provider.
func (m *Mapped) Size() int { return m.brk }

// Bytes implements Provider.
func (m *Mapped) Bytes() []byte { return m.data[:m.brk:m.brk] }

// FileBacked reports whether the arena persists to a file.
func (m *Mapped) FileBacked() bool { return m.f != nil }

// Reset implements Provider. A file-backed arena is truncated to zero.
func (m *Mapped) Reset() error {
	if m.data == nil {
		return ErrClosed
	}
	if m.f != nil {
		if err := unix.Ftruncate(int(m.f.Fd()), 0); err != nil {
			return fmt.Errorf("memlib: truncate %s: %w", m.f.Name(), err)
		}
	} else {
		clear(m.data[:m.brk])
	}
	m.brk = 0
	return nil
}

// Sync implements Syncer. The range is widened to whole pages since msync
// requires a page-aligned address. Anonymous mappings have nothing to sync.
func (m *Mapped) Sync(off, n int) error {
	if m.f == nil || n <= 0 {
		return nil
	}
	page := os.Getpagesize()
	start := off - off%page
	end := min(off+n, m.brk)
	if start >= end {
		return nil
	}
	return unix.Msync(m.data[start:end], unix.MS_SYNC)
}

// Close unmaps the reservation and closes the backing file, if any.
// Closing twice is a no-op.
func (m *Mapped) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	if errors.Is(err, unix.EINVAL) {
		err = nil
	}
	m.data = nil
	if m.f != nil {
		if cerr := m.f.Close(); err == nil {
			err = cerr
		}
		m.f = nil
	}
	return err
}
