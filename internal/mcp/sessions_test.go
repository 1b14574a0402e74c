package mcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lgrep/internal/search"
)

// noopHandle spawns a born-finished search: an all-empty query list
// starts no goroutines, so registry tests stay cheap.
func noopHandle(t *testing.T) *search.PendingSearch {
	t.Helper()
	handle, err := search.Spawn(search.SearchConfig{
		Roots:   []string{t.TempDir()},
		Queries: []search.Query{{}},
	}, search.Options{})
	require.NoError(t, err)
	return handle
}

func TestSessionRegistry_Lifecycle(t *testing.T) {
	reg := newSessionRegistry(time.Minute)
	defer reg.close()

	id := reg.register(noopHandle(t))
	require.NotEmpty(t, id)
	assert.Equal(t, 1, reg.count())

	handle, ok := reg.get(id)
	assert.True(t, ok)
	assert.NotNil(t, handle)

	assert.True(t, reg.release(id))
	assert.False(t, reg.release(id), "releasing twice reports unknown")
	_, ok = reg.get(id)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.count())
}

func TestSessionRegistry_DistinctIDs(t *testing.T) {
	reg := newSessionRegistry(time.Minute)
	defer reg.close()

	a := reg.register(noopHandle(t))
	b := reg.register(noopHandle(t))
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, reg.count())
}

func TestSessionRegistry_EvictsIdleSessions(t *testing.T) {
	reg := newSessionRegistry(20 * time.Millisecond)
	defer reg.close()

	reg.register(noopHandle(t))
	require.Equal(t, 1, reg.count())

	// count does not refresh the idle clock, so the reaper will claim
	// the session once the TTL passes.
	require.Eventually(t, func() bool { return reg.count() == 0 },
		2*time.Second, 5*time.Millisecond, "idle session should be evicted")
}

func TestSessionRegistry_CloseReleasesAll(t *testing.T) {
	reg := newSessionRegistry(time.Minute)
	reg.register(noopHandle(t))
	reg.register(noopHandle(t))

	reg.close()
	assert.Equal(t, 0, reg.count())

	// A second close must not panic.
	reg.close()
}
