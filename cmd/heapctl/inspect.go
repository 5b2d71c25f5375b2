package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/cmd/heapctl/logger"
	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/dirty"
	"github.com/joshuapare/heapkit/heap/memlib"
	"github.com/joshuapare/heapkit/internal/driver"
)

var (
	inspectOps    int
	inspectBlocks int
	inspectAttach string
	inspectArena  arenaFlags
)

func init() {
	cmd := newInspectCmd()
	cmd.Flags().IntVar(&inspectOps, "ops", -1, "Replay only the first N ops (default all)")
	cmd.Flags().IntVar(&inspectBlocks, "blocks", 64, "Blocks to list (0 for all)")
	cmd.Flags().StringVar(&inspectAttach, "attach", "", "Inspect an existing arena file instead of replaying a trace")
	inspectArena.register(cmd)
	rootCmd.AddCommand(cmd)
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [<trace>]",
		Short: "Show the block layout and free lists of a heap",
		Long: `The inspect command replays a trace (or its first --ops operations) and
prints the resulting block map, free list lengths and allocator counters.
With --attach it reopens an arena file left by a file-backed run instead.

Example:
  heapctl inspect short1.rep
  heapctl inspect --ops 40 --blocks 0 coalescing-bal.rep
  heapctl inspect --attach /tmp/heaps/short1.heap --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), args)
		},
	}
	return cmd
}

// inspectReport is the JSON form of an inspected heap.
type inspectReport struct {
	Source     string            `json:"source"`
	Ops        int               `json:"ops,omitempty"`
	PeakLive   int64             `json:"peak_live,omitempty"`
	Consistent bool              `json:"consistent"`
	Error      string            `json:"error,omitempty"`
	Summary    alloc.Summary     `json:"summary"`
	Stats      alloc.Stats       `json:"stats"`
	Blocks     []alloc.BlockInfo `json:"blocks"`
}

func runInspect(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := inspectArena.validate(); err != nil {
		return err
	}

	var (
		h   *alloc.Heap
		rep inspectReport
	)
	switch {
	case inspectAttach != "" && len(args) > 0:
		return fmt.Errorf("--attach and a trace are mutually exclusive")
	case inspectAttach != "":
		m, err := memlib.OpenFile(inspectAttach, inspectArena.maxHeap)
		if err != nil {
			return fmt.Errorf("failed to open arena: %w", err)
		}
		defer m.Close()
		opts := inspectArena.heapOptions()
		opts.Logger = logger.L
		if h, err = alloc.Attach(m, &opts); err != nil {
			return err
		}
		rep.Source = inspectAttach
	case len(args) == 1:
		var (
			closeFn func() error
			err     error
		)
		h, closeFn, rep, err = replayPrefix(ctx, args[0])
		if closeFn != nil {
			defer closeFn()
		}
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("expected a trace or --attach <arena>")
	}

	rep.Consistent = true
	if err := h.Check("inspect"); err != nil {
		rep.Consistent = false
		rep.Error = err.Error()
	}
	rep.Summary = h.Summary()
	rep.Stats = h.Stats()
	h.Walk(func(b alloc.BlockInfo) bool {
		if inspectBlocks > 0 && len(rep.Blocks) >= inspectBlocks {
			return false
		}
		rep.Blocks = append(rep.Blocks, b)
		return true
	})

	if jsonOut {
		if err := printJSON(rep); err != nil {
			return err
		}
	} else {
		printInspectReport(rep)
		if !quiet {
			h.PrintStats(os.Stdout)
		}
	}
	if !rep.Consistent {
		return fmt.Errorf("heap is inconsistent")
	}
	return nil
}

// replayPrefix replays the first inspectOps ops of the trace at path.
func replayPrefix(ctx context.Context, path string) (*alloc.Heap, func() error, inspectReport, error) {
	var rep inspectReport
	traces, err := loadTraces([]string{path})
	if err != nil {
		return nil, nil, rep, err
	}
	tr := traces[0]
	if inspectOps >= 0 && inspectOps < len(tr.Ops) {
		tr.Ops = tr.Ops[:inspectOps]
	}

	p, err := inspectArena.provider(tr)
	if err != nil {
		return nil, nil, rep, fmt.Errorf("failed to create arena: %w", err)
	}
	closeFn := func() error { return nil }
	if c, ok := p.(io.Closer); ok {
		closeFn = c.Close
	}

	opts := inspectArena.heapOptions()
	opts.Logger = logger.L
	if inspectArena.persistent() {
		opts.Tracker = dirty.NewTracker()
	}
	h := alloc.New(p, &opts)

	rep.Source = tr.Name
	rep.Ops = len(tr.Ops)
	rep.PeakLive, err = driver.Validate(ctx, h, tr, false)
	if err != nil {
		return nil, closeFn, rep, err
	}
	if err := h.Flush(ctx); err != nil {
		return nil, closeFn, rep, fmt.Errorf("failed to flush arena: %w", err)
	}
	if inspectArena.persistent() {
		printVerbose("Arena written to %s\n", inspectArena.arenaPath(tr))
	}
	return h, closeFn, rep, nil
}

func printInspectReport(rep inspectReport) {
	printInfo("\nHeap: %s\n", rep.Source)
	if rep.Ops > 0 {
		printInfo("  Ops replayed: %d (peak live %s)\n", rep.Ops, formatBytes(rep.PeakLive))
	}
	s := rep.Summary
	printInfo("  Arena: %s, %d blocks\n", formatBytes(int64(s.ArenaBytes)), s.Blocks)
	printInfo("  Allocated: %d blocks, %s\n", s.AllocBlocks, formatBytes(int64(s.AllocBytes)))
	printInfo("  Free: %d blocks, %s (largest %d)\n", s.FreeBlocks, formatBytes(int64(s.FreeBytes)), s.LargestFree)
	if rep.Consistent {
		printInfo("  ✓ Consistent\n")
	} else {
		printInfo("  ✗ %s\n", rep.Error)
	}

	printInfo("\nBlocks:\n")
	printInfo("  %-10s %-10s %-6s %s\n", "offset", "size", "state", "prev")
	for _, b := range rep.Blocks {
		state := "free"
		if b.Allocated {
			state = "alloc"
		}
		prev := "-"
		switch {
		case b.PrevAlloc && b.PrevMinimal:
			prev = "alloc,min"
		case b.PrevAlloc:
			prev = "alloc"
		case b.PrevMinimal:
			prev = "min"
		}
		printInfo("  0x%-8X %-10d %-6s %s\n", b.Offset, b.Size, state, prev)
	}
	if len(rep.Blocks) < s.Blocks {
		printInfo("  ... %d more\n", s.Blocks-len(rep.Blocks))
	}
}
