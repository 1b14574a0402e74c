package watch

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures no test in this package leaks goroutines. Stop must
// wind down the event loop, the debouncer, and the underlying watcher.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}
