// Package watch observes filesystem changes below a set of roots and
// delivers debounced batches of changed paths. It exists so watch mode
// can re-run a search only after the filesystem has gone quiet, instead
// of once per editor save event.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/lgrep/internal/debug"
	lgreperrors "github.com/standardbeagle/lgrep/internal/errors"
)

const defaultDebounce = 300 * time.Millisecond

// Config controls what the watcher observes.
type Config struct {
	// Roots are the directories (or single files) to observe.
	Roots []string

	// Excludes are doublestar patterns. Matching directories are not
	// registered and events for matching files are dropped. Filtering
	// here only suppresses noise; the consumer re-applies its own
	// rules when it acts on a batch.
	Excludes []string

	// Hidden also watches dot-directories and reports dot-files.
	Hidden bool

	// Debounce is the quiet period that must pass after the last event
	// before a batch is delivered. Zero or negative selects a default.
	Debounce time.Duration
}

// Watcher reports changed paths below its roots. Batches are
// deduplicated, sorted, and delivered to the onChange callback on the
// watcher's own goroutine.
type Watcher struct {
	cfg      Config
	onChange func(paths []string)

	fsw       *fsnotify.Watcher
	fileRoots map[string]bool
	debouncer *eventDebouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu    sync.RWMutex
	eventsSeen int64
	errorCount int64
	batches    int64
	lastEvent  time.Time
}

// New creates a watcher. onChange runs on the watcher's goroutine and
// must not call Stop.
func New(cfg Config, onChange func(paths []string)) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, lgreperrors.NewWatchError("", fmt.Errorf("no roots to watch"))
	}
	if onChange == nil {
		return nil, lgreperrors.NewWatchError("", fmt.Errorf("nil change callback"))
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, lgreperrors.NewWatchError("", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		cfg:       cfg,
		onChange:  onChange,
		fsw:       fsw,
		fileRoots: make(map[string]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
	w.debouncer = newEventDebouncer(cfg.Debounce, w.deliver)
	return w, nil
}

// Start registers watches for every root and begins processing events.
// A root that does not exist is an error: watching nothing would sit
// silent forever. Every root is attempted before failing, so one error
// report names all the bad roots instead of the first.
func (w *Watcher) Start() error {
	errs := &lgreperrors.MultiError{}
	for _, root := range w.cfg.Roots {
		root = filepath.Clean(root)
		info, err := os.Stat(root)
		if err != nil {
			errs.Add(lgreperrors.NewWatchError(root, err))
			continue
		}
		if !info.IsDir() {
			// A single-file root watches its parent directory, since
			// editors replace files by rename and the watch would die
			// with the old inode. Events for the file itself bypass
			// the hidden/exclude rules, same as explicit walk roots.
			w.fileRoots[root] = true
			if err := w.fsw.Add(filepath.Dir(root)); err != nil {
				errs.Add(lgreperrors.NewWatchError(root, err))
			}
			continue
		}
		if err := w.addWatches(root); err != nil {
			errs.Add(lgreperrors.NewWatchError(root, err))
		}
	}
	if errs.HasErrors() {
		return errs
	}

	w.wg.Add(1)
	go w.processEvents()
	w.wg.Add(1)
	go w.debouncer.run(w.ctx, &w.wg)

	debug.LogWatch("watching %d roots (debounce %v)\n", len(w.cfg.Roots), w.cfg.Debounce)
	return nil
}

// Stop terminates event processing and releases the underlying
// watches. No onChange call happens after Stop returns. Events still
// pending in the debouncer are dropped; the consumer is shutting down
// and a late batch would go nowhere.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	w.debouncer.stopTimer()
	if err != nil {
		return lgreperrors.NewWatchError("", err)
	}
	return nil
}

// addWatches registers root and every directory below it, pruning
// hidden and excluded directories. The root itself is never pruned. A
// visited set of resolved paths guards against symlink cycles, same as
// the search walker.
func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}

		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if path != root && w.ignorePath(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			debug.LogWatch("cannot watch %s: %v\n", path, err)
		}
		return nil
	})
}

// ignorePath applies the noise filters: dot-names unless Hidden, then
// the exclude patterns against the basename and the slashed path, with
// any trailing /** stripped so directory patterns prune the directory
// itself.
func (w *Watcher) ignorePath(path string) bool {
	base := filepath.Base(path)
	if !w.cfg.Hidden && strings.HasPrefix(base, ".") {
		return true
	}

	slashPath := filepath.ToSlash(path)
	for _, pattern := range w.cfg.Excludes {
		dirPattern := strings.TrimSuffix(pattern, "/**")
		if ok, _ := doublestar.Match(dirPattern, base); ok {
			return true
		}
		if ok, _ := doublestar.Match(dirPattern, slashPath); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, slashPath); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.LogWatch("watch error: %v\n", err)
			w.statsMu.Lock()
			w.errorCount++
			w.statsMu.Unlock()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Chmod and other metadata-only events never change search results.
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	path := event.Name
	debug.LogWatch("event %v %s\n", event.Op, path)

	w.statsMu.Lock()
	w.eventsSeen++
	w.lastEvent = time.Now()
	w.statsMu.Unlock()

	// Single-file roots watch their parent directory, so sibling events
	// arrive here too; only the root itself skips the filters.
	if w.fileRoots[path] {
		w.debouncer.add(path)
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Removed or renamed away.
		if !w.ignorePath(path) {
			w.debouncer.add(path)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !w.ignorePath(path) {
			// Register the whole subtree: a directory moved into place
			// can already hold contents whose events we would miss.
			if err := w.addWatches(path); err != nil {
				debug.LogWatch("cannot watch new directory %s: %v\n", path, err)
			}
			w.debouncer.add(path)
		}
		return
	}

	if w.ignorePath(path) {
		return
	}
	w.debouncer.add(path)
}

func (w *Watcher) deliver(paths []string) {
	w.statsMu.Lock()
	w.batches++
	w.statsMu.Unlock()

	debug.LogWatch("delivering %d changed paths\n", len(paths))
	w.onChange(paths)
}

// Stats is a snapshot of watcher activity.
type Stats struct {
	EventsSeen int64
	ErrorCount int64
	Batches    int64
	LastEvent  time.Time
	Active     bool
}

// Stats reports activity counters since Start.
func (w *Watcher) Stats() Stats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return Stats{
		EventsSeen: w.eventsSeen,
		ErrorCount: w.errorCount,
		Batches:    w.batches,
		LastEvent:  w.lastEvent,
		Active:     w.ctx.Err() == nil,
	}
}

// eventDebouncer accumulates changed paths and fires once the stream
// has been quiet for the debounce period. The timer callback only
// signals; the flush itself runs on the run goroutine so shutdown can
// guarantee no flush escapes after run returns.
type eventDebouncer struct {
	mu       sync.Mutex
	pending  map[string]struct{}
	timer    *time.Timer
	debounce time.Duration
	fire     chan struct{}
	flushFn  func(paths []string)
}

func newEventDebouncer(debounce time.Duration, flushFn func([]string)) *eventDebouncer {
	return &eventDebouncer{
		pending:  make(map[string]struct{}),
		debounce: debounce,
		fire:     make(chan struct{}, 1),
		flushFn:  flushFn,
	}
}

// add records a changed path and restarts the quiet-period timer.
func (d *eventDebouncer) add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.signal)
}

func (d *eventDebouncer) signal() {
	select {
	case d.fire <- struct{}{}:
	default:
	}
}

func (d *eventDebouncer) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.fire:
			d.flush()
		}
	}
}

// flush hands the accumulated batch to the consumer, sorted so
// delivery order is deterministic.
func (d *eventDebouncer) flush() {
	d.mu.Lock()
	pending := d.pending
	d.pending = make(map[string]struct{})
	d.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	paths := make([]string, 0, len(pending))
	for path := range pending {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	d.flushFn(paths)
}

func (d *eventDebouncer) stopTimer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
