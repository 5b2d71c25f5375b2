package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/memlib"
)

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.String()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	return <-done, fnErr
}

// assertJSON checks that output is valid JSON and decodes it into v
func assertJSON(t *testing.T, output string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(output), v), "invalid JSON output:\n%s", output)
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}

func defaultArena() arenaFlags {
	return arenaFlags{
		kind:    arenaSlice,
		maxHeap: memlib.DefaultMaxHeap,
		chunk:   alloc.DefaultOptions.ChunkSize,
		buckets: alloc.DefaultMinimalBuckets,
	}
}

// resetGlobals restores every flag variable to its default for the test.
func resetGlobals(t *testing.T) {
	t.Helper()
	reset := func() {
		verbose, quiet, jsonOut = false, false, false
		runCheck, runJobs, runNoTiming = false, 0, false
		runArena = defaultArena()
		checkArena = defaultArena()
		inspectArena = defaultArena()
		inspectOps, inspectBlocks, inspectAttach = -1, 64, ""
	}
	reset()
	t.Cleanup(reset)
}

// writeTrace writes a plain-text trace into dir and returns its path.
func writeTrace(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

const shortTrace = `0
3
7
1
a 0 2040
a 1 2040
f 1
a 2 48
r 0 4072
f 0
f 2
`
