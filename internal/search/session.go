package search

import (
	"context"
	"sync/atomic"
	"time"
)

// PollState reports what a Poll call observed.
type PollState int

const (
	// PollEmpty means the search is still running and no result is
	// queued right now.
	PollEmpty PollState = iota
	// PollReceived means a FileResult was returned.
	PollReceived
	// PollDone means the result stream is closed and fully drained:
	// every producer finished or was cancelled.
	PollDone
)

// PendingSearch is the live handle of one spawned search. The owner
// drains results at its own pace with Poll and may cancel at any time.
// A handle must be Closed (or drained to PollDone) when abandoned;
// superseding a search with a new one requires cancelling the old
// handle first so two searches never race on consumer state.
type PendingSearch struct {
	results <-chan FileResult
	cancel  context.CancelFunc
	start   time.Time

	finished     atomic.Bool
	elapsedNanos atomic.Int64
}

// Poll returns one queued result without blocking. State PollReceived
// carries a result; PollEmpty means try again later; PollDone means the
// search finished and no further result will ever arrive. Results
// queued before a cancellation are still drained.
func (p *PendingSearch) Poll() (FileResult, PollState) {
	select {
	case r, ok := <-p.results:
		if !ok {
			return FileResult{}, PollDone
		}
		return r, PollReceived
	default:
		return FileResult{}, PollEmpty
	}
}

// Cancel requests a cooperative stop. It never blocks and is safe to
// call repeatedly. No new file scans start after a worker observes the
// cancellation; a file scan already in flight completes and its result
// may still be drained.
func (p *PendingSearch) Cancel() {
	p.cancel()
}

// Elapsed returns the time since the search started, frozen at the
// moment the last producer finished.
func (p *PendingSearch) Elapsed() time.Duration {
	if p.finished.Load() {
		return time.Duration(p.elapsedNanos.Load())
	}
	return time.Since(p.start)
}

// Finished reports whether all producers have stopped. Queued results
// may still be available to Poll after this returns true.
func (p *PendingSearch) Finished() bool {
	return p.finished.Load()
}

// Close cancels the search and releases the handle. Background workers
// wind down on their own; none outlives cancellation observably.
func (p *PendingSearch) Close() {
	p.cancel()
}

// markFinished freezes the elapsed time. Called by the closer goroutine
// after every worker has drained, before the channel closes.
func (p *PendingSearch) markFinished() {
	p.elapsedNanos.Store(int64(time.Since(p.start)))
	p.finished.Store(true)
}
