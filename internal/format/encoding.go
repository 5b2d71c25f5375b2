package format

import "encoding/binary"

// Arena words are stored little-endian regardless of host byte order, so a
// file-backed arena written on one machine decodes identically on another.
//
// encoding/binary.LittleEndian calls are inlined by the compiler; an unsafe
// pointer cast measured no faster and would tie the layout to the host.

// PutWord writes a 64-bit word at off.
func PutWord(b []byte, off uint64, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+WordSize], v)
}

// ReadWord reads the 64-bit word at off.
func ReadWord(b []byte, off uint64) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+WordSize])
}
