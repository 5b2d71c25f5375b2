// Package driver replays allocator traces against heapkit heaps.
//
// Each trace runs twice on its own heap. The first pass validates: every
// payload is checked for alignment, bounds and overlap, filled with a
// per-id pattern, and verified again before it is reallocated or released.
// The second pass replays the same ops on the reset heap without any
// validation and is timed for throughput. Utilization is the peak of live
// requested bytes divided by the final arena size.
//
// Several traces run in parallel, each on an independent heap and provider.
// With Options.Persist the validated arena is flushed to its provider instead
// of being timed, which leaves a file-backed heap for later inspection.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/dirty"
	"github.com/joshuapare/heapkit/heap/memlib"
	"github.com/joshuapare/heapkit/internal/trace"
)

// ProviderFunc creates the arena for one trace.
type ProviderFunc func(tr *trace.Trace) (memlib.Provider, error)

// Options configures Run.
type Options struct {
	// Check runs the heap consistency checker after every op.
	Check bool

	// Jobs bounds the number of traces replayed at once.
	// Default: GOMAXPROCS
	Jobs int

	// SkipTiming disables the unvalidated throughput pass.
	SkipTiming bool

	// Persist tracks the pages every heap writes and flushes them once the
	// validation pass ends, so a file-backed arena keeps the final heap on
	// disk. The timing pass would truncate the arena, so Persist skips it.
	Persist bool

	// Heap configures every heap (chunk size, minimal buckets, tracker).
	// The logger is replaced by Logger with a trace attribute.
	Heap alloc.Options

	// NewProvider creates the arena for a trace.
	// Default: a memlib.Slice with the default reservation.
	NewProvider ProviderFunc

	// Logger receives per-trace progress at debug level. Default: discard.
	Logger *slog.Logger
}

func (o Options) normalized() Options {
	if o.Jobs <= 0 {
		o.Jobs = runtime.GOMAXPROCS(0)
	}
	if o.NewProvider == nil {
		o.NewProvider = func(*trace.Trace) (memlib.Provider, error) { return memlib.NewSlice(0) }
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Result is the outcome of one trace.
type Result struct {
	Trace     string
	Weight    int
	Ops       int
	Valid     bool
	Err       error         // First validation or allocator failure
	PeakLive  int64         // Peak sum of live requested payload bytes
	HeapBytes int64         // Arena size after the validation pass
	Elapsed   time.Duration // Unvalidated pass; zero when skipped or invalid
	Stats     alloc.Stats   // Heap counters after the validation pass
	Summary   alloc.Summary // Block census after the validation pass
}

// Util returns PeakLive / HeapBytes, or 0 for an empty heap.
func (r Result) Util() float64 {
	if r.HeapBytes == 0 {
		return 0
	}
	return float64(r.PeakLive) / float64(r.HeapBytes)
}

// OpsPerSec returns the throughput of the timing pass, or 0 if it did not run.
func (r Result) OpsPerSec() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Elapsed.Seconds()
}

// Run replays every trace with at most opts.Jobs in flight and returns the
// results in input order. Per-trace failures are reported in Result.Err; the
// returned error is non-nil only when ctx is cancelled.
func Run(ctx context.Context, traces []*trace.Trace, opts Options) ([]Result, error) {
	opts = opts.normalized()
	results := make([]Result, len(traces))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)
	for i, tr := range traces {
		g.Go(func() error {
			res, err := RunTrace(ctx, tr, opts)
			results[i] = res
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// RunTrace validates and times a single trace on a fresh heap.
func RunTrace(ctx context.Context, tr *trace.Trace, opts Options) (Result, error) {
	opts = opts.normalized()
	res := Result{Trace: tr.Name, Weight: tr.Weight, Ops: len(tr.Ops)}
	log := opts.Logger.With("trace", tr.Name)

	p, err := opts.NewProvider(tr)
	if err != nil {
		res.Err = fmt.Errorf("provider: %w", err)
		return res, res.Err
	}
	if c, ok := p.(io.Closer); ok {
		defer c.Close()
	}

	heapOpts := opts.Heap
	heapOpts.Logger = log
	if opts.Persist {
		heapOpts.Tracker = dirty.NewTracker()
	}
	h := alloc.New(p, &heapOpts)

	log.Debug("validating", "ops", len(tr.Ops), "check", opts.Check)
	res.PeakLive, err = Validate(ctx, h, tr, opts.Check)
	res.HeapBytes = int64(len(h.Bytes()))
	res.Stats = h.Stats()
	res.Summary = h.Summary()
	if err != nil {
		res.Err = err
		log.Debug("validation failed", "error", err)
		return res, err
	}
	res.Valid = true

	if opts.Persist {
		if err := h.Flush(ctx); err != nil {
			res.Err = fmt.Errorf("flush: %w", err)
			return res, res.Err
		}
		log.Debug("flushed arena", "bytes", res.HeapBytes)
		return res, nil
	}
	if opts.SkipTiming {
		return res, nil
	}
	if err := h.Reset(); err != nil {
		res.Err = fmt.Errorf("reset before timing: %w", err)
		return res, res.Err
	}
	start := time.Now()
	if err := Time(ctx, h, tr); err != nil {
		res.Err = err
		return res, err
	}
	res.Elapsed = time.Since(start)
	log.Debug("timed", "elapsed", res.Elapsed, "util", res.Util())
	return res, nil
}

// Totals aggregates results the way the classic driver scores a run.
type Totals struct {
	Traces    int
	Valid     int
	Ops       int
	Elapsed   time.Duration
	Util      float64 // Weighted mean utilization of valid traces
	OpsPerSec float64
}

// Aggregate sums results. Traces with zero weight count as weight 1.
func Aggregate(results []Result) Totals {
	var (
		t        Totals
		weighted float64
		weights  int
	)
	for _, r := range results {
		t.Traces++
		if !r.Valid {
			continue
		}
		w := max(r.Weight, 1)
		t.Valid++
		t.Ops += r.Ops
		t.Elapsed += r.Elapsed
		weighted += r.Util() * float64(w)
		weights += w
	}
	if weights > 0 {
		t.Util = weighted / float64(weights)
	}
	if t.Elapsed > 0 {
		t.OpsPerSec = float64(t.Ops) / t.Elapsed.Seconds()
	}
	return t
}
