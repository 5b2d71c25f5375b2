package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/cmd/heapctl/logger"
	"github.com/joshuapare/heapkit/internal/driver"
)

var (
	runCheck    bool
	runJobs     int
	runNoTiming bool
	runArena    arenaFlags
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().BoolVar(&runCheck, "check", false, "Run the heap consistency checker after every op")
	cmd.Flags().IntVarP(&runJobs, "jobs", "j", 0, "Traces replayed in parallel (default GOMAXPROCS)")
	cmd.Flags().BoolVar(&runNoTiming, "no-timing", false, "Skip the throughput pass")
	runArena.register(cmd)
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <trace>...",
		Short: "Replay traces and report correctness, utilization and throughput",
		Long: `The run command replays each trace on a fresh heap. A validation pass
checks every payload for alignment, bounds and overlap and verifies that live
payloads are never modified; a second unvalidated pass measures throughput.
Traces ending in .zst or .lz4 are decompressed on the fly.

File arenas (--arena file) keep the validated heap in <arena-dir>/<trace>.heap
and skip the throughput pass.

Example:
  heapctl run traces/*.rep
  heapctl run --check --jobs 4 traces/realloc-bal.rep.zst
  heapctl run --arena file --arena-dir /tmp/heaps short1.rep
  heapctl run traces/*.rep --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), args)
		},
	}
	return cmd
}

// traceReport is the JSON form of one driver result.
type traceReport struct {
	Trace     string  `json:"trace"`
	Valid     bool    `json:"valid"`
	Error     string  `json:"error,omitempty"`
	Ops       int     `json:"ops"`
	PeakLive  int64   `json:"peak_live"`
	HeapBytes int64   `json:"heap_bytes"`
	Util      float64 `json:"util"`
	Seconds   float64 `json:"seconds"`
	OpsPerSec float64 `json:"ops_per_sec"`
}

type runReport struct {
	Traces    []traceReport `json:"traces"`
	Valid     int           `json:"valid"`
	Total     int           `json:"total"`
	Util      float64       `json:"util"`
	OpsPerSec float64       `json:"ops_per_sec"`
}

func newTraceReport(r driver.Result) traceReport {
	tr := traceReport{
		Trace:     r.Trace,
		Valid:     r.Valid,
		Ops:       r.Ops,
		PeakLive:  r.PeakLive,
		HeapBytes: r.HeapBytes,
		Util:      r.Util(),
		Seconds:   r.Elapsed.Seconds(),
		OpsPerSec: r.OpsPerSec(),
	}
	if r.Err != nil {
		tr.Error = r.Err.Error()
	}
	return tr
}

func runRun(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := runArena.validate(); err != nil {
		return err
	}
	traces, err := loadTraces(args)
	if err != nil {
		return err
	}
	if err := runArena.checkPaths(traces); err != nil {
		return err
	}

	opts := driver.Options{
		Check:       runCheck,
		Jobs:        runJobs,
		SkipTiming:  runNoTiming,
		Persist:     runArena.persistent(),
		Heap:        runArena.heapOptions(),
		NewProvider: runArena.provider,
		Logger:      logger.L,
	}
	logger.L.Info("replaying traces", "traces", len(traces), "check", runCheck, "arena", runArena.kind)
	results, err := driver.Run(ctx, traces, opts)
	if err != nil {
		return err
	}
	tot := driver.Aggregate(results)
	logger.L.Info("run finished", "valid", tot.Valid, "traces", tot.Traces, "util", tot.Util)

	if jsonOut {
		rep := runReport{Valid: tot.Valid, Total: tot.Traces, Util: tot.Util, OpsPerSec: tot.OpsPerSec}
		for _, r := range results {
			rep.Traces = append(rep.Traces, newTraceReport(r))
		}
		if err := printJSON(rep); err != nil {
			return err
		}
	} else {
		printResults(results, tot)
	}

	if tot.Valid < tot.Traces {
		return fmt.Errorf("%d of %d traces failed validation", tot.Traces-tot.Valid, tot.Traces)
	}
	return nil
}

func printResults(results []driver.Result, tot driver.Totals) {
	printInfo("\nResults:\n")
	printInfo("  %-24s %5s %6s %9s %10s %10s\n", "trace", "valid", "util", "ops", "secs", "Kops")
	for _, r := range results {
		if !r.Valid {
			printInfo("  %-24s %5s %6s %9d %10s %10s\n", r.Trace, "no", "-", r.Ops, "-", "-")
			continue
		}
		printInfo("  %-24s %5s %5.0f%% %9d %10.6f %10.0f\n",
			r.Trace, "yes", r.Util()*100, r.Ops, r.Elapsed.Seconds(), r.OpsPerSec()/1000)
	}
	printInfo("  %-24s %5s %5.0f%% %9d %10.6f %10.0f\n",
		"Total", fmt.Sprintf("%d/%d", tot.Valid, tot.Traces), tot.Util*100, tot.Ops,
		tot.Elapsed.Seconds(), tot.OpsPerSec/1000)

	for _, r := range results {
		if r.Err != nil {
			printInfo("\n  %s: %v\n", r.Trace, r.Err)
		}
		printVerbose("  %s: peak live %s, heap %s, %d extensions, %d splits\n",
			r.Trace, formatBytes(r.PeakLive), formatBytes(r.HeapBytes), r.Stats.Extends, r.Stats.Splits)
	}
}
