//go:build heapdebug

package alloc

// debugChecks runs the consistency checker after every public operation.
const debugChecks = true
