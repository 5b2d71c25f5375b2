package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/cmd/heapctl/logger"
	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/driver"
)

var checkArena arenaFlags

func init() {
	cmd := newCheckCmd()
	checkArena.register(cmd)
	rootCmd.AddCommand(cmd)
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <trace>",
		Short: "Replay a trace with the consistency checker after every op",
		Long: `The check command replays one trace, validating every payload and
running the heap consistency checker after each operation. It stops at the
first failure and reports the op that caused it, the violated invariant and
the block offset involved.

Example:
  heapctl check traces/coalescing-bal.rep
  heapctl check --buckets 1 traces/binary2-bal.rep --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckTrace(cmd.Context(), args)
		},
	}
	return cmd
}

// checkReport is the outcome of a check run.
type checkReport struct {
	Trace     string `json:"trace"`
	Ops       int    `json:"ops"`
	Valid     bool   `json:"valid"`
	FailedOp  int    `json:"failed_op,omitempty"`
	Operation string `json:"operation,omitempty"`
	Type      string `json:"type,omitempty"`
	Invariant string `json:"invariant,omitempty"`
	Offset    string `json:"offset,omitempty"`
	Site      string `json:"site,omitempty"`
	Error     string `json:"error,omitempty"`
}

func runCheckTrace(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := checkArena.validate(); err != nil {
		return err
	}
	traces, err := loadTraces(args)
	if err != nil {
		return err
	}
	tr := traces[0]

	opts := driver.Options{
		Check:       true,
		SkipTiming:  true,
		Persist:     checkArena.persistent(),
		Heap:        checkArena.heapOptions(),
		NewProvider: checkArena.provider,
		Logger:      logger.L,
	}
	res, runErr := driver.RunTrace(ctx, tr, opts)
	if errors.Is(runErr, context.Canceled) {
		return runErr
	}

	rep := checkReport{Trace: tr.Name, Ops: len(tr.Ops), Valid: runErr == nil}
	if runErr != nil {
		rep.Error = runErr.Error()
		var ve *driver.ValidationError
		if errors.As(runErr, &ve) {
			rep.FailedOp = ve.Op
			rep.Type = ve.Type
			if ve.Op >= 0 && ve.Op < len(tr.Ops) {
				rep.Operation = tr.Ops[ve.Op].String()
			}
			if ve.Offset >= 0 {
				rep.Offset = fmt.Sprintf("0x%X", ve.Offset)
			}
		}
		var ce *alloc.CheckError
		if errors.As(runErr, &ce) {
			rep.Invariant = ce.Invariant
			rep.Offset = fmt.Sprintf("0x%X", ce.Offset)
			rep.Site = ce.Site
		}
	}

	if jsonOut {
		if err := printJSON(rep); err != nil {
			return err
		}
	} else {
		printCheckReport(rep, res)
	}

	if runErr != nil {
		return fmt.Errorf("%s failed at op %d", tr.Name, rep.FailedOp)
	}
	return nil
}

func printCheckReport(rep checkReport, res driver.Result) {
	printInfo("\nChecking %s (%d ops)...\n\n", rep.Trace, rep.Ops)
	if rep.Valid {
		printInfo("  ✓ Every payload aligned, in bounds and disjoint\n")
		printInfo("  ✓ Live payloads intact\n")
		printInfo("  ✓ Heap consistent after every op\n")
		printInfo("\n  Peak live: %s, heap: %s (util %.1f%%)\n",
			formatBytes(res.PeakLive), formatBytes(res.HeapBytes), res.Util()*100)
		return
	}

	printInfo("  ✗ Failed at op %d", rep.FailedOp)
	if rep.Operation != "" {
		printInfo(" (%s)", rep.Operation)
	}
	printInfo("\n")
	if rep.Type != "" {
		printInfo("  Type:      %s\n", rep.Type)
	}
	if rep.Invariant != "" {
		printInfo("  Invariant: %s\n", rep.Invariant)
	}
	if rep.Offset != "" {
		printInfo("  Offset:    %s\n", rep.Offset)
	}
	if rep.Site != "" {
		printInfo("  Site:      %s\n", rep.Site)
	}
	printInfo("  Error:     %s\n", rep.Error)
}
