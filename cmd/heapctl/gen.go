package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/internal/trace"
)

var (
	genOutput  string
	genOpts    trace.GenOptions
	genSeedSet bool
)

func init() {
	cmd := newGenCmd()
	cmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output trace file (.zst or .lz4 to compress)")
	cmd.Flags().IntVar(&genOpts.Ops, "ops", 1000, "Approximate number of operations")
	cmd.Flags().IntVar(&genOpts.IDs, "ids", 0, "Distinct block ids (default --ops)")
	cmd.Flags().IntVar(&genOpts.MaxSize, "max-size", 4096, "Largest request in bytes")
	cmd.Flags().Float64Var(&genOpts.ReallocRatio, "realloc", 0.25, "Share of non-allocating steps that reallocate")
	cmd.Flags().Int64Var(&genOpts.Seed, "seed", 0, "Random seed (default: current time)")
	_ = cmd.MarkFlagRequired("output")
	rootCmd.AddCommand(cmd)
}

func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen -o <trace>",
		Short: "Generate a random well-formed trace",
		Long: `The gen command writes a random trace in which every id is allocated
once, may be reallocated, and is released before the end. Request sizes are
spread evenly across power-of-two bands up to --max-size.

Example:
  heapctl gen -o random.rep --ops 5000 --seed 7
  heapctl gen -o big.rep.zst --ops 200000 --ids 5000 --max-size 65536`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			genSeedSet = cmd.Flags().Changed("seed")
			return runGen()
		},
	}
	return cmd
}

func runGen() error {
	opts := genOpts
	if !genSeedSet {
		opts.Seed = time.Now().UnixNano()
	}
	printVerbose("Generating %d ops (seed %d)\n", opts.Ops, opts.Seed)

	tr := trace.Generate(opts)
	if err := trace.Save(genOutput, tr); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}

	if jsonOut {
		return printJSON(map[string]any{
			"file":           genOutput,
			"ops":            len(tr.Ops),
			"ids":            tr.NumIDs,
			"suggested_heap": tr.SuggestedHeap,
			"seed":           opts.Seed,
		})
	}

	printInfo("\nTrace written:\n")
	printInfo("  File: %s\n", genOutput)
	if stat, err := os.Stat(genOutput); err == nil {
		printInfo("  Size: %s\n", formatBytes(stat.Size()))
	}
	printInfo("  Ops: %d\n", len(tr.Ops))
	printInfo("  IDs: %d\n", tr.NumIDs)
	printInfo("  Peak live: %s\n", formatBytes(int64(tr.SuggestedHeap)))
	printInfo("  Seed: %d\n", opts.Seed)
	return nil
}
