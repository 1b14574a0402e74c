package search

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/lgrep/internal/debug"
)

// fileTask is one file queued for scanning, with the binary policy its
// discovery mode selected.
type fileTask struct {
	path   string
	policy BinaryPolicy
}

// walker enumerates candidate files under the configured roots. It runs
// on a single goroutine; workers consume its task channel.
type walker struct {
	roots     []string
	overrides *OverrideSet
	opts      Options

	discoveredPolicy BinaryPolicy
	explicitPolicy   BinaryPolicy

	// seen holds hashes of absolute paths already dispatched, so a file
	// reachable from two roots scans once.
	seen map[uint64]struct{}
}

func newWalker(roots []string, overrides *OverrideSet, opts Options) *walker {
	w := &walker{
		roots:            roots,
		overrides:        overrides,
		opts:             opts,
		discoveredPolicy: BinaryQuit,
		explicitPolicy:   BinaryConvert,
		seen:             make(map[uint64]struct{}),
	}
	if opts.SearchBinary {
		w.discoveredPolicy = BinaryScanAll
		w.explicitPolicy = BinaryScanAll
	}
	return w
}

// enumerate walks every root in order, sending tasks until done or the
// context is cancelled. The caller owns closing the channel.
func (w *walker) enumerate(ctx context.Context, tasks chan<- fileTask) {
	for _, root := range w.roots {
		if ctx.Err() != nil {
			return
		}

		info, err := os.Stat(root)
		if err != nil {
			debug.LogWalk("skipping root %s: %v\n", root, err)
			continue
		}

		if !info.IsDir() {
			// Explicitly named files bypass glob and ignore filtering
			// and scan under the convert policy.
			if !info.Mode().IsRegular() {
				debug.LogWalk("skipping non-regular root %s\n", root)
				continue
			}
			w.send(ctx, tasks, root, w.explicitPolicy)
			continue
		}

		var ignore *IgnoreFile
		if w.opts.UseGitignore {
			ignore, err = LoadRoot(root)
			if err != nil {
				debug.LogWalk("gitignore for %s: %v\n", root, err)
			}
		}

		var visited map[string]bool
		if w.opts.FollowSymlinks {
			visited = make(map[string]bool)
			if resolved, err := filepath.EvalSymlinks(root); err == nil {
				visited[resolved] = true
			}
		}

		w.walkDir(ctx, root, root, ignore, visited, tasks)
	}
}

// walkDir recursively enumerates dir. Entries are visited in name order
// so discovery order is deterministic per root.
func (w *walker) walkDir(ctx context.Context, root, dir string, ignore *IgnoreFile, visited map[string]bool, tasks chan<- fileTask) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		debug.LogWalk("reading %s: %v\n", dir, err)
		return
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		path := filepath.Join(dir, entry.Name())
		entryType := entry.Type()

		if entryType&fs.ModeSymlink != 0 {
			w.visitSymlink(ctx, root, path, ignore, visited, tasks)
			continue
		}

		if entryType.IsDir() {
			if w.skipDir(root, path, entry.Name(), ignore) {
				continue
			}
			if visited != nil {
				if resolved, err := filepath.EvalSymlinks(path); err == nil {
					if visited[resolved] {
						continue
					}
					visited[resolved] = true
				}
			}
			w.walkDir(ctx, root, path, ignore, visited, tasks)
			continue
		}

		if !entryType.IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			debug.LogWalk("stat %s: %v\n", path, err)
			continue
		}
		w.visitFile(ctx, root, path, info.Size(), ignore, tasks)
	}
}

// visitSymlink handles a symlink entry. Without follow-symlinks,
// symlinks are skipped entirely. With it, a link to a directory is
// descended unless that would revisit a directory already walked, and
// a link to a regular file is scanned like any discovered file.
func (w *walker) visitSymlink(ctx context.Context, root, path string, ignore *IgnoreFile, visited map[string]bool, tasks chan<- fileTask) {
	if !w.opts.FollowSymlinks {
		return
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		debug.LogWalk("resolving symlink %s: %v\n", path, err)
		return
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return
	}

	if info.IsDir() {
		if w.skipDir(root, path, filepath.Base(path), ignore) {
			return
		}
		if visited[resolved] {
			debug.LogWalk("symlink cycle at %s\n", path)
			return
		}
		visited[resolved] = true
		w.walkDir(ctx, root, path, ignore, visited, tasks)
		return
	}

	if info.Mode().IsRegular() {
		w.visitFile(ctx, root, path, info.Size(), ignore, tasks)
	}
}

// skipDir decides whether to prune a directory before descending.
// Overrides never prune directories: a later glob may re-include files
// beneath an excluded-looking prefix, so directory pruning is left to
// the hidden and gitignore layers.
func (w *walker) skipDir(root, path, name string, ignore *IgnoreFile) bool {
	if isHidden(name) && !w.opts.Hidden {
		return true
	}
	if ignore != nil {
		rel := relSlash(root, path)
		if ignore.Ignored(rel, true) {
			return true
		}
	}
	return false
}

// visitFile applies the filtering layers to a discovered regular file
// and dispatches it. Override verdicts always win: a positive override
// searches the file even when hidden or gitignored, a negative one
// skips it before the lower layers run.
func (w *walker) visitFile(ctx context.Context, root, path string, size int64, ignore *IgnoreFile, tasks chan<- fileTask) {
	rel := relSlash(root, path)

	switch w.overrides.FileVerdict(rel) {
	case verdictExclude:
		return
	case verdictInclude:
	default:
		if isHidden(filepath.Base(path)) && !w.opts.Hidden {
			return
		}
		if ignore != nil && ignore.Ignored(rel, false) {
			return
		}
	}

	if w.opts.MaxFileSize > 0 && size > w.opts.MaxFileSize {
		debug.LogWalk("skipping oversized file %s (%d bytes)\n", path, size)
		return
	}

	w.send(ctx, tasks, path, w.discoveredPolicy)
}

// send dispatches one task unless the file was already dispatched from
// another root or the context is cancelled.
func (w *walker) send(ctx context.Context, tasks chan<- fileTask, path string, policy BinaryPolicy) {
	key := dedupKey(path, w.opts.FollowSymlinks)
	if _, dup := w.seen[key]; dup {
		return
	}
	w.seen[key] = struct{}{}

	select {
	case tasks <- fileTask{path: path, policy: policy}:
	case <-ctx.Done():
	}
}

// dedupKey hashes the canonical absolute path of a file. Symlink
// resolution is only paid for when links are being followed, the one
// mode where two distinct paths can name the same file.
func dedupKey(path string, followSymlinks bool) uint64 {
	canonical := path
	if abs, err := filepath.Abs(path); err == nil {
		canonical = abs
	}
	if followSymlinks {
		if resolved, err := filepath.EvalSymlinks(canonical); err == nil {
			canonical = resolved
		}
	}
	return xxhash.Sum64String(filepath.Clean(canonical))
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}
