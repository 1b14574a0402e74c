package search

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/standardbeagle/lgrep/internal/debug"
	lgreperrors "github.com/standardbeagle/lgrep/internal/errors"
)

// resultBuffer sizes the result channel. Workers block on a full
// buffer until the consumer drains or the search is cancelled, so a
// slow consumer throttles scanning instead of growing memory.
const resultBuffer = 256

// Spawn starts a search and returns its handle. This is the engine's
// sole entry point.
//
// Spawn fails synchronously, before any goroutine starts, when no root
// path was provided, when the mandatory first query fails to compile,
// or when an override glob is malformed. An all-empty query list is not
// an error: the returned handle is already finished and polls done
// immediately.
func Spawn(cfg SearchConfig, opts Options) (*PendingSearch, error) {
	if len(cfg.Roots) == 0 {
		return nil, lgreperrors.NewConfigError("search", "roots", errors.New("no search path provided"))
	}

	pipeline, err := CompilePipeline(cfg.Queries)
	if err != nil {
		return nil, err
	}

	overrides, err := ParseOverrides(cfg.Overrides)
	if err != nil {
		return nil, err
	}

	if pipeline == nil {
		return noopSearch(), nil
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
		if threads < 2 {
			threads = 2
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	tasks := make(chan fileTask, threads*2)
	results := make(chan FileResult, resultBuffer)

	p := &PendingSearch{
		results: results,
		cancel:  cancel,
		start:   time.Now(),
	}

	debug.LogSearch("spawning search: %d roots, %d stages, %d workers\n",
		len(cfg.Roots), len(pipeline.stages), threads)

	w := newWalker(cfg.Roots, overrides, opts)
	go func() {
		defer close(tasks)
		w.enumerate(ctx, tasks)
	}()

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(ctx, pipeline.Clone(), tasks, results)
		}()
	}

	go func() {
		wg.Wait()
		p.markFinished()
		close(results)
	}()

	return p, nil
}

// runWorker drains the task channel, scanning one file at a time.
// Cancellation is checked at each file-dispatch boundary: a scan in
// flight completes, but no new scan starts once the worker observes the
// cancelled context. Results from one worker arrive in its dispatch
// order.
func runWorker(ctx context.Context, pipeline *Pipeline, tasks <-chan fileTask, results chan<- FileResult) {
	for task := range tasks {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := pipeline.SearchFile(task.path, task.policy)
		if err != nil {
			// Per-file failures are skips, never session failures.
			debug.LogSearch("skipping %s: %v\n", task.path, err)
			continue
		}

		select {
		case results <- result:
		case <-ctx.Done():
			return
		}
	}
}

// noopSearch returns a handle that is finished from birth. Used when
// every query is empty: zero workers, nothing to report.
func noopSearch() *PendingSearch {
	ch := make(chan FileResult)
	close(ch)
	p := &PendingSearch{
		results: ch,
		cancel:  func() {},
		start:   time.Now(),
	}
	p.finished.Store(true)
	return p
}
