package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lgrep/internal/config"
	"github.com/standardbeagle/lgrep/internal/debug"
	"github.com/standardbeagle/lgrep/internal/search"
	"github.com/standardbeagle/lgrep/internal/watch"
	"github.com/standardbeagle/lgrep/pkg/pathutil"
)

func watchCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return runWatch(c, cfg)
}

// runWatch runs the search once, then re-runs it whenever files below
// the roots change. Each run prints a complete result set; a change
// arriving mid-run cancels that run and queues a fresh one.
func runWatch(c *cli.Context, cfg *config.Config) error {
	pattern := c.Args().First()
	if pattern == "" {
		return cli.Exit("usage: lgrep watch <pattern>", 2)
	}
	if c.Int("open") > 0 {
		fmt.Fprintln(os.Stderr, "note: --open is ignored in watch mode")
	}

	searchCfg, opts := buildSearchConfig(c, cfg, pattern)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The callback runs on the watcher goroutine. It cancels the run in
	// flight and queues at most one rerun; bursts collapse into a
	// single tick.
	rerun := make(chan struct{}, 1)
	var mu sync.Mutex
	var current *search.PendingSearch

	onChange := func(paths []string) {
		debug.LogWatch("change batch: %d path(s)\n", len(paths))
		mu.Lock()
		if current != nil {
			current.Cancel()
		}
		mu.Unlock()
		select {
		case rerun <- struct{}{}:
		default:
		}
	}

	watcher, err := watch.New(watch.Config{
		Roots:    searchCfg.Roots,
		Excludes: cfg.Exclude,
		Hidden:   opts.Hidden,
		Debounce: time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
	}, onChange)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := watcher.Start(); err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer watcher.Stop()

	for {
		handle, err := search.Spawn(searchCfg, opts)
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}
		mu.Lock()
		current = handle
		mu.Unlock()

		out := newSearchOutput(c, cfg)
		out.openIndex = 0
		interrupted := drainSearch(ctx, handle, out.file)

		mu.Lock()
		current = nil
		mu.Unlock()
		handle.Close()

		if err := out.finish(pattern, handle.Elapsed()); err != nil {
			return cli.Exit(err.Error(), 2)
		}
		if interrupted {
			return nil
		}

		stats := watcher.Stats()
		fmt.Fprintf(os.Stderr, "[watch] %s: waiting for changes (%d events, %d batches; Ctrl-C to quit)\n",
			pathutil.JoinList(searchCfg.Roots), stats.EventsSeen, stats.Batches)
		select {
		case <-ctx.Done():
			return nil
		case <-rerun:
			fmt.Fprintln(os.Stderr, "[watch] change detected, searching again")
		}
	}
}
