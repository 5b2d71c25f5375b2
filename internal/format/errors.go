package format

import "errors"

var (
	// ErrTruncated indicates the arena lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated arena")
	// ErrBadPrologue indicates the arena does not start with a prologue word.
	ErrBadPrologue = errors.New("format: missing prologue")
	// ErrMisaligned indicates a block offset or size violates the alignment unit.
	ErrMisaligned = errors.New("format: misaligned block")
)
