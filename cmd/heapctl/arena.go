package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/memlib"
	"github.com/joshuapare/heapkit/internal/trace"
)

// Arena kinds accepted by --arena.
const (
	arenaSlice = "slice"
	arenaMmap  = "mmap"
	arenaFile  = "file"
)

// arenaFlags configures the provider and heap of every replayed trace.
type arenaFlags struct {
	kind    string
	dir     string
	maxHeap int
	chunk   int
	buckets int
}

func (a *arenaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.kind, "arena", arenaSlice, "Arena provider (slice, mmap, file)")
	cmd.Flags().StringVar(&a.dir, "arena-dir", "", "Directory for file arenas, one <trace>.heap per trace")
	cmd.Flags().IntVar(&a.maxHeap, "max-heap", memlib.DefaultMaxHeap, "Arena reservation in bytes")
	cmd.Flags().IntVar(&a.chunk, "chunk", alloc.DefaultOptions.ChunkSize, "Minimum arena extension in bytes")
	cmd.Flags().IntVar(&a.buckets, "buckets", alloc.DefaultMinimalBuckets, "Hash chains for minimal free blocks")
}

func (a *arenaFlags) validate() error {
	switch a.kind {
	case arenaSlice, arenaMmap:
	case arenaFile:
		if a.dir == "" {
			return fmt.Errorf("--arena file requires --arena-dir")
		}
	default:
		return fmt.Errorf("unknown arena: %s (must be slice, mmap, or file)", a.kind)
	}
	if a.maxHeap <= 0 || uint64(a.maxHeap) > memlib.MaxArena {
		return fmt.Errorf("--max-heap must be in (0, %d]", memlib.MaxArena)
	}
	if a.buckets <= 0 || a.buckets > alloc.MaxMinimalBuckets {
		return fmt.Errorf("--buckets must be in [1, %d]", alloc.MaxMinimalBuckets)
	}
	return nil
}

func (a *arenaFlags) heapOptions() alloc.Options {
	return alloc.Options{ChunkSize: a.chunk, MinimalBuckets: a.buckets}
}

// persistent reports whether arenas outlive the process.
func (a *arenaFlags) persistent() bool { return a.kind == arenaFile }

// arenaPath returns the backing file of the arena for tr.
func (a *arenaFlags) arenaPath(tr *trace.Trace) string {
	name := strings.TrimSuffix(filepath.Base(tr.Name), filepath.Ext(tr.Name))
	if name == "" || name == "." {
		name = "trace"
	}
	return filepath.Join(a.dir, name+".heap")
}

// checkPaths rejects trace sets whose file arenas would share a backing file.
func (a *arenaFlags) checkPaths(traces []*trace.Trace) error {
	if !a.persistent() {
		return nil
	}
	seen := make(map[string]string, len(traces))
	for _, tr := range traces {
		path := a.arenaPath(tr)
		if other, ok := seen[path]; ok {
			return fmt.Errorf("traces %s and %s share arena file %s", other, tr.Name, path)
		}
		seen[path] = tr.Name
	}
	return nil
}

// provider opens an empty arena for tr.
func (a *arenaFlags) provider(tr *trace.Trace) (memlib.Provider, error) {
	switch a.kind {
	case arenaMmap:
		return memlib.NewAnonymous(a.maxHeap)
	case arenaFile:
		path := a.arenaPath(tr)
		m, err := memlib.OpenFile(path, a.maxHeap)
		if err != nil {
			return nil, err
		}
		// Start from an empty file; inspect --attach reads existing arenas.
		if err := m.Reset(); err != nil {
			m.Close()
			return nil, err
		}
		return m, nil
	default:
		return memlib.NewSlice(a.maxHeap)
	}
}

// loadTraces opens every trace file, decompressing by extension.
func loadTraces(paths []string) ([]*trace.Trace, error) {
	traces := make([]*trace.Trace, 0, len(paths))
	for _, path := range paths {
		printVerbose("Loading trace: %s\n", path)
		tr, err := trace.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load trace: %w", err)
		}
		traces = append(traces, tr)
	}
	return traces, nil
}
