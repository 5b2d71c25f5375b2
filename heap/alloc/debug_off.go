//go:build !heapdebug

package alloc

const debugChecks = false
