// Command profile_search runs one search under the Go profilers. It
// exists for engine development: point it at a large tree, capture CPU,
// heap, mutex, or block profiles, and compare runs while tuning the
// walker and scanner.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/standardbeagle/lgrep/internal/config"
	"github.com/standardbeagle/lgrep/internal/search"
)

func main() {
	root := flag.String("root", "", "Project path to search")
	pattern := flag.String("pattern", "", "Pattern to search for")
	regex := flag.Bool("regex", false, "Treat the pattern as a regular expression")
	threads := flag.Int("threads", 0, "Scan worker count (0 = hardware parallelism)")
	cpuprofile := flag.String("cpuprofile", "", "Write CPU profile to file")
	memprofile := flag.String("memprofile", "", "Write memory profile to file")
	mutexprofile := flag.String("mutexprofile", "", "Write mutex contention profile to file")
	blockprofile := flag.String("blockprofile", "", "Write blocking profile to file")
	mutexRate := flag.Int("mutexrate", 1, "Mutex profiling rate (1=all, 0=off)")
	blockRate := flag.Int("blockrate", 1, "Block profiling rate (1=all, 0=off)")
	flag.Parse()

	if *root == "" || *pattern == "" {
		fmt.Fprintln(os.Stderr, "Usage: profile_search -root=<path> -pattern=<text> [-regex] [-cpuprofile=<file>] [-memprofile=<file>] [-mutexprofile=<file>] [-blockprofile=<file>]")
		os.Exit(1)
	}

	absPath, err := filepath.Abs(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get absolute path: %v\n", err)
		os.Exit(1)
	}

	if *mutexprofile != "" {
		runtime.SetMutexProfileFraction(*mutexRate)
		fmt.Fprintf(os.Stderr, "Mutex profiling enabled (rate=%d)\n", *mutexRate)
	}
	if *blockprofile != "" {
		runtime.SetBlockProfileRate(*blockRate)
		fmt.Fprintf(os.Stderr, "Block profiling enabled (rate=%d)\n", *blockRate)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	// Load config so the run sees the same exclusions the CLI would.
	cfg, err := config.Load(absPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Project.Root = absPath

	syntax := search.SyntaxLiteral
	if *regex {
		syntax = search.SyntaxRegex
	}

	fmt.Fprintf(os.Stderr, "Profiling: %q over %s\n", *pattern, absPath)
	start := time.Now()

	handle, err := search.Spawn(search.SearchConfig{
		Roots:     []string{absPath},
		Overrides: cfg.Overrides(),
		Queries:   []search.Query{{Pattern: *pattern, Syntax: syntax}},
	}, search.Options{
		Threads:      *threads,
		UseGitignore: cfg.Walk.UseGitignore,
		MaxFileSize:  cfg.Search.MaxFileSize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	defer handle.Close()

	scanned, matchedFiles, matchedLines := 0, 0, 0
	for {
		result, state := handle.Poll()
		if state == search.PollDone {
			break
		}
		if state != search.PollReceived {
			time.Sleep(time.Millisecond)
			continue
		}
		scanned++
		if !result.HasMatches() {
			continue
		}
		matchedFiles++
		for _, entry := range result.Entries {
			for _, line := range entry.Lines {
				if line.IsMatch() {
					matchedLines++
				}
			}
		}
	}
	elapsed := time.Since(start)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	fmt.Fprintf(os.Stderr, "\nResults:\n")
	fmt.Fprintf(os.Stderr, "  Files scanned: %d\n", scanned)
	fmt.Fprintf(os.Stderr, "  Files matched: %d\n", matchedFiles)
	fmt.Fprintf(os.Stderr, "  Lines matched: %d\n", matchedLines)
	fmt.Fprintf(os.Stderr, "  Time: %v\n", elapsed)
	fmt.Fprintf(os.Stderr, "  Heap Alloc: %.2f MB\n", float64(memStats.HeapAlloc)/(1024*1024))
	fmt.Fprintf(os.Stderr, "  Total Alloc: %.2f MB\n", float64(memStats.TotalAlloc)/(1024*1024))
	fmt.Fprintf(os.Stderr, "  Sys: %.2f MB\n", float64(memStats.Sys)/(1024*1024))

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create memory profile: %v\n", err)
		} else {
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write memory profile: %v\n", err)
			}
			f.Close()
			fmt.Fprintf(os.Stderr, "\nMemory profile written to: %s\n", *memprofile)
			fmt.Fprintf(os.Stderr, "Analyze with: go tool pprof -top %s\n", *memprofile)
		}
	}

	if *mutexprofile != "" {
		writeLookupProfile("mutex", *mutexprofile)
	}
	if *blockprofile != "" {
		writeLookupProfile("block", *blockprofile)
	}

	if *cpuprofile != "" {
		fmt.Fprintf(os.Stderr, "\nCPU profile written to: %s\n", *cpuprofile)
		fmt.Fprintf(os.Stderr, "Analyze with: go tool pprof -top %s\n", *cpuprofile)
	}

	fmt.Fprintf(os.Stderr, "\n=== Profiling Tips ===\n")
	fmt.Fprintf(os.Stderr, "Mutex contention: Shows where locks are causing workers to wait\n")
	fmt.Fprintf(os.Stderr, "Block profile: Shows where goroutines are blocked (channels, I/O, etc)\n")
	fmt.Fprintf(os.Stderr, "Interactive analysis: go tool pprof <profile_file>\n")
	fmt.Fprintf(os.Stderr, "  Commands: top, list <func>, web, png, pdf\n")
}

func writeLookupProfile(name, path string) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s profile: %v\n", name, err)
		return
	}
	defer f.Close()
	if p := pprof.Lookup(name); p != nil {
		if err := p.WriteTo(f, 0); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s profile: %v\n", name, err)
			return
		}
	}
	fmt.Fprintf(os.Stderr, "\n%s profile written to: %s\n", name, path)
	fmt.Fprintf(os.Stderr, "Analyze with: go tool pprof -top %s\n", path)
}
