// Package worker is the batch orchestrator: it fans a list of independent
// work items out across a bounded pool, with optional batching and pacing,
// a per-item retry budget with jittered backoff, and per-attempt timeouts.
// Results always come back 1:1 with the input, in input order, regardless of
// completion order.
package worker

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Options tunes a batch run.
type Options struct {
	// Workers caps simultaneous in-flight items.
	Workers int
	// MaxRetries is the number of re-attempts after the first try; an item
	// whose failures stay retryable is attempted MaxRetries+1 times total.
	MaxRetries int
	// AttemptTimeout bounds each attempt. A timed-out attempt counts
	// against the item's retry budget and never stalls its siblings.
	AttemptTimeout time.Duration
	// BatchSize groups items; BatchDelay is slept between groups. Zero
	// BatchSize means one batch.
	BatchSize  int
	BatchDelay time.Duration

	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffJitterFrac float64

	Logger *logrus.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 10
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	if o.BackoffJitterFrac <= 0 {
		o.BackoffJitterFrac = 0.2
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
	return o
}

// Result is the outcome for one input item. Index points back into the
// input slice. Attempted is false when the run's deadline expired before the
// item was ever started.
type Result[Out any] struct {
	Index     int
	Value     Out
	Err       error
	Attempts  int
	Attempted bool
}

// Retryable is implemented by errors that may clear up on a re-attempt.
type Retryable interface {
	Retryable() bool
}

// Run executes fn over every item. Per-item failures never abort the batch;
// each lands in its own Result. The returned slice has len(items) entries in
// input order.
func Run[In any, Out any](
	ctx context.Context,
	items []In,
	fn func(context.Context, In) (Out, error),
	opts Options,
) []Result[Out] {
	opts = opts.withDefaults()

	results := make([]Result[Out], len(items))
	for i := range results {
		results[i] = Result[Out]{Index: i}
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > len(items) {
		batchSize = len(items)
	}

	for start := 0; start < len(items); start += batchSize {
		if ctx.Err() != nil {
			// Deadline hit: everything not yet started stays Attempted=false.
			opts.Logger.WithField("remaining", len(items)-start).
				Warn("batch deadline reached, skipping unstarted items")
			break
		}
		if start > 0 && opts.BatchDelay > 0 {
			if !sleepCtx(ctx, opts.BatchDelay) {
				opts.Logger.WithField("remaining", len(items)-start).
					Warn("batch deadline reached during pacing delay")
				break
			}
		}

		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		runBatch(ctx, items[start:end], start, results, fn, opts)
	}

	return results
}

func runBatch[In any, Out any](
	ctx context.Context,
	batch []In,
	offset int,
	results []Result[Out],
	fn func(context.Context, In) (Out, error),
	opts Options,
) {
	type job struct {
		idx  int
		item In
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	workers := opts.Workers
	if workers > len(batch) {
		workers = len(batch)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.idx] = runItem(ctx, j.idx, j.item, fn, opts)
			}
		}()
	}

	for i, item := range batch {
		select {
		case jobs <- job{idx: offset + i, item: item}:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		}
	}
	close(jobs)
	wg.Wait()
}

// runItem owns one work item for its full lifetime: retry counter and result
// are touched by no other goroutine.
func runItem[In any, Out any](
	ctx context.Context,
	idx int,
	item In,
	fn func(context.Context, In) (Out, error),
	opts Options,
) Result[Out] {
	res := Result[Out]{Index: idx, Attempted: true}

	for attempt := 0; ; attempt++ {
		res.Attempts = attempt + 1

		attemptCtx := ctx
		var cancel context.CancelFunc
		if opts.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, opts.AttemptTimeout)
		}
		out, err := fn(attemptCtx, item)
		if cancel != nil {
			cancel()
		}

		res.Value = out
		res.Err = err
		if err == nil {
			return res
		}

		if ctx.Err() != nil || attempt >= opts.MaxRetries || !IsRetryable(err) {
			return res
		}

		opts.Logger.WithFields(logrus.Fields{
			"item":    idx,
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Debug("retrying work item")

		if !sleepCtx(ctx, backoff(opts, attempt)) {
			return res
		}
	}
}

// IsRetryable classifies a failure: explicit Retryable errors, network
// timeouts and per-attempt deadline expiry may be retried; anything else is
// final for the item.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func backoff(opts Options, attempt int) time.Duration {
	sleep := opts.BackoffInitial
	for i := 0; i < attempt && sleep < opts.BackoffMax; i++ {
		sleep *= 2
		if sleep > opts.BackoffMax {
			sleep = opts.BackoffMax
			break
		}
	}
	j := 1 + (rand.Float64()*2-1)*opts.BackoffJitterFrac
	return time.Duration(float64(sleep) * j)
}

// sleepCtx sleeps for d unless the context ends first. Reports whether the
// full sleep elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
