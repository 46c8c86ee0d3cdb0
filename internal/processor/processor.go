package processor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"towebp/internal/scan"
)

// Execute scans root and converts every discovered item. A scan error is
// fatal: it is returned with an empty Summary and nothing is dispatched.
func Execute(ctx context.Context, root string, opts Options, conv Converter, updates chan<- ProgressUpdate) (Summary, error) {
	items, err := Discover(root, opts)
	if err != nil {
		return Summary{}, err
	}
	return Run(ctx, items, opts, conv, updates), nil
}

// Discover scans root for work items, pruning opts.OutputDir so a run never
// picks up its own output.
func Discover(root string, opts Options) ([]scan.WorkItem, error) {
	var scanOpts []scan.Option
	if opts.OutputDir != "" {
		scanOpts = append(scanOpts, scan.WithExclude(opts.OutputDir))
	}

	items, err := scan.Scan(root, scanOpts...)
	if err != nil {
		return nil, err
	}
	opts.Log.Info("Found %d images under %s", len(items), root)
	return items, nil
}

// Run fans items out to a fixed pool of opts.Workers goroutines and returns
// once every worker has exited. Each item is claimed by exactly one worker.
// Cancelling ctx stops dispatch; the Summary then reports Canceled.
func Run(ctx context.Context, items []scan.WorkItem, opts Options, conv Converter, updates chan<- ProgressUpdate) Summary {
	started := time.Now()
	summary := Summary{RunID: uuid.NewString(), Total: len(items)}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	opts.Log.Info("Run %s: %d items, %d workers, output %s", summary.RunID, len(items), workers, opts.OutputDir)
	if updates != nil && len(items) > 0 {
		updates <- ProgressUpdate{TotalDelta: len(items)}
	}

	var counters Counters
	var claims claimSet
	jobs := make(chan scan.WorkItem)
	results := make(chan Result, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, opts, conv, &counters, &claims)
		}()
	}

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			if res.Outcome == OutcomeFailed {
				summary.Failures = append(summary.Failures, ItemFailure{
					RelPath: res.RelPath,
					Output:  res.Output,
					Err:     res.Err,
				})
			}
			if updates != nil {
				updates <- progressFor(res)
			}
		}
	}()

	go func() {
		defer close(jobs)
		for _, item := range items {
			select {
			case jobs <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	counters.fill(&summary)
	summary.Canceled = ctx.Err() != nil && !summary.Complete()
	summary.Elapsed = time.Since(started)

	if summary.Canceled {
		opts.Log.Warn("Run %s interrupted: %d of %d items reached a result", summary.RunID, summary.Processed+summary.Skipped, summary.Total)
	}
	return summary
}

func worker(ctx context.Context, jobs <-chan scan.WorkItem, results chan<- Result, opts Options, conv Converter, counters *Counters, claims *claimSet) {
	for item := range jobs {
		if ctx.Err() != nil {
			continue
		}
		results <- processItem(item, opts, conv, counters, claims)
	}
}

// processItem runs the per-item protocol: resolve and prepare the output
// path, skip when another item already claimed it or the output exists,
// otherwise attempt one conversion. Every path through it records exactly
// one terminal outcome.
func processItem(item scan.WorkItem, opts Options, conv Converter, counters *Counters, claims *claimSet) Result {
	started := time.Now()
	res := Result{RelPath: item.RelPath, Display: item.Display}
	res.Output = ResolveOutput(opts.OutputDir, item, opts.Ext)

	if err := EnsureParent(res.Output); err != nil {
		counters.recordFailure()
		res.Outcome = OutcomeFailed
		res.Err = &ItemError{Stage: StageMkdir, Path: res.Output, Err: err}
		opts.Log.Error("Cannot create output directory for %s: %v", item.RelPath, err)
		return res
	}

	if !claims.claim(res.Output) {
		counters.recordSkip()
		res.Outcome = OutcomeSkipped
		opts.Log.Warn("Skip (claimed by another source): %s -> %s", item.RelPath, res.Output)
		return res
	}

	if exists(res.Output) {
		counters.recordSkip()
		res.Outcome = OutcomeSkipped
		opts.Log.Warn("Skip (exists): %s", res.Output)
		return res
	}

	if err := safeConvert(conv, item.Path, res.Output, opts); err != nil {
		counters.recordFailure()
		res.Outcome = OutcomeFailed
		res.Err = &ItemError{Stage: StageConvert, Path: item.Path, Err: err}
		res.Elapsed = time.Since(started)
		opts.Log.Error("Failed %s: %v", item.RelPath, err)
		return res
	}

	res.BytesIn = fileSize(item.Path)
	res.BytesOut = fileSize(res.Output)
	counters.recordConversion(res.BytesIn, res.BytesOut)
	res.Outcome = OutcomeConverted
	res.Elapsed = time.Since(started)
	opts.Log.Success("Converted %s -> %s", item.RelPath, res.Output)
	opts.Log.Debug("  %s: %d -> %d bytes in %s", item.Display, res.BytesIn, res.BytesOut, res.Elapsed.Round(time.Millisecond))
	return res
}

// safeConvert turns a converter panic into an error so it stays scoped to the item.
func safeConvert(conv Converter, src, dst string, opts Options) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("converter panic: %v", r)
		}
	}()
	return conv.Convert(src, dst, opts.Quality, opts.Lossless)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func progressFor(res Result) ProgressUpdate {
	update := ProgressUpdate{
		Event: &Event{Outcome: res.Outcome, Path: res.RelPath, Err: res.Err},
	}
	switch res.Outcome {
	case OutcomeSkipped:
		update.SkippedDelta = 1
	case OutcomeConverted:
		update.ProcessedDelta = 1
		update.BytesSavedDelta = res.BytesIn - res.BytesOut
	case OutcomeFailed:
		update.ProcessedDelta = 1
		update.FailedDelta = 1
	}
	return update
}
