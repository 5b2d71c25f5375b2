package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the container of a trace file.
type Compression int

const (
	CompressNone Compression = iota
	CompressZstd
	CompressLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "plain"
	case CompressZstd:
		return "zstd"
	case CompressLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// CompressionFor picks the container from a file name: .zst / .zstd or .lz4.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return CompressZstd
	case ".lz4":
		return CompressLZ4
	default:
		return CompressNone
	}
}

// NewReader wraps r with the decompressor for c. The returned closer releases
// decoder resources; it does not close r.
func NewReader(r io.Reader, c Compression) (io.Reader, func(), error) {
	switch c {
	case CompressZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("trace: zstd: %w", err)
		}
		return dec, dec.Close, nil
	case CompressLZ4:
		return lz4.NewReader(r), func() {}, nil
	default:
		return r, func() {}, nil
	}
}

// NewWriter wraps w with the compressor for c. Closing the returned writer
// flushes the compressed stream; it does not close w.
func NewWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("trace: zstd: %w", err)
		}
		return enc, nil
	case CompressLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nopCloser{w}, nil
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Open reads and parses the trace at path, decompressing by extension.
func Open(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, release, err := NewReader(f, CompressionFor(path))
	if err != nil {
		return nil, err
	}
	defer release()

	t, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// Save writes t to path atomically, compressing by extension. The trace is
// written to a temp file in the same directory, synced, and renamed over path.
func Save(path string, t *Trace) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".heapkit-trace-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Clean up temp file on error
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	w, err := NewWriter(tmp, CompressionFor(path))
	if err != nil {
		return err
	}
	if err := Write(w, t); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish %s stream: %w", CompressionFor(path), err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tmp = nil // Don't clean up in defer

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
