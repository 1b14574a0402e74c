package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lgrep/internal/config"
	"github.com/standardbeagle/lgrep/internal/debug"
	"github.com/standardbeagle/lgrep/internal/editor"
	"github.com/standardbeagle/lgrep/internal/search"
	"github.com/standardbeagle/lgrep/pkg/pathutil"
)

func searchCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return runSearch(c, cfg)
}

func runSearch(c *cli.Context, cfg *config.Config) error {
	pattern := c.Args().First()
	if pattern == "" {
		return cli.Exit("usage: lgrep search <pattern>", 2)
	}

	searchCfg, opts := buildSearchConfig(c, cfg, pattern)
	debug.LogSearch("spawning %q over %d root(s)\n", pattern, len(searchCfg.Roots))

	handle, err := search.Spawn(searchCfg, opts)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer handle.Close()

	// Ctrl-C cancels the search; results already in flight still print.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := newSearchOutput(c, cfg)
	interrupted := drainSearch(ctx, handle, out.file)

	if err := out.finish(pattern, handle.Elapsed()); err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if interrupted {
		return cli.Exit("", 130)
	}
	if out.totalMatches == 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// buildSearchConfig layers CLI flags over the loaded configuration.
// Flags win; config supplies the root, persistent globs, smart case,
// default context, and walker settings.
func buildSearchConfig(c *cli.Context, cfg *config.Config, pattern string) (search.SearchConfig, search.Options) {
	syntax := search.SyntaxLiteral
	if c.Bool("regex") {
		syntax = search.SyntaxRegex
	}

	primary := search.Query{
		Pattern:      pattern,
		Syntax:       syntax,
		Invert:       c.Bool("invert"),
		ExtraContext: c.Int("context"),
	}
	if primary.ExtraContext == 0 && cfg.Search.Context > 0 {
		primary.ExtraContext = cfg.Search.Context
	}

	// Highlight patterns become annotation stages: they add spans on
	// matched lines but never select or drop anything themselves.
	queries := []search.Query{primary}
	for _, h := range c.StringSlice("highlight") {
		queries = append(queries, search.Query{Pattern: h, Syntax: syntax})
	}

	// -i and smart case both request folding; the compiler keeps
	// patterns with literal uppercase case-sensitive either way.
	if c.Bool("ignore-case") || cfg.Search.SmartCase {
		for i := range queries {
			queries[i].CaseInsensitive = true
		}
	}

	var roots []string
	if p := c.String("paths"); p != "" {
		roots = pathutil.SplitList(p)
	}
	if len(roots) == 0 {
		roots = []string{cfg.Project.Root}
	}

	// CLI globs append after config globs so they take precedence.
	overrides := append(cfg.Overrides(), c.StringSlice("glob")...)

	opts := search.Options{
		Threads:        c.Int("threads"),
		SearchBinary:   c.Bool("binary") || cfg.Search.SearchBinary,
		FollowSymlinks: c.Bool("follow-symlinks") || cfg.Walk.FollowSymlinks,
		Hidden:         c.Bool("hidden") || cfg.Walk.Hidden,
		UseGitignore:   cfg.Walk.UseGitignore,
		MaxFileSize:    cfg.Search.MaxFileSize,
	}
	if opts.Threads == 0 {
		opts.Threads = cfg.Walk.Threads
	}

	return search.SearchConfig{
		Roots:     roots,
		Overrides: overrides,
		Queries:   queries,
	}, opts
}

// drainSearch polls the handle until the engine reports completion,
// forwarding each file result to emit. An interrupt cancels the search
// but draining continues so buffered results still reach the caller.
// Reports whether the search was interrupted.
func drainSearch(ctx context.Context, handle *search.PendingSearch, emit func(search.FileResult)) bool {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	cancelled := false
	for {
		result, state := handle.Poll()
		switch state {
		case search.PollReceived:
			emit(result)
		case search.PollDone:
			return cancelled
		default:
			if cancelled {
				// ctx is already done; only the ticker can wake us.
				<-ticker.C
				continue
			}
			select {
			case <-ctx.Done():
				debug.LogSearch("interrupt received, cancelling\n")
				handle.Cancel()
				cancelled = true
			case <-ticker.C:
			}
		}
	}
}

// JSON output shapes. ResultLine content is raw bytes; the CLI assumes
// text files and re-encodes as strings so the JSON stays readable.
type jsonLine struct {
	Line    uint64        `json:"line"`
	Text    string        `json:"text"`
	Matches []search.Span `json:"matches,omitempty"`
}

type jsonEntry struct {
	Lines []jsonLine `json:"lines"`
}

type jsonFile struct {
	Path    string      `json:"path"`
	Entries []jsonEntry `json:"entries"`
	Matches int         `json:"matches"`
}

type openTarget struct {
	path string
	line uint64
}

// searchOutput renders streamed file results in one of the output
// modes. Text, count, and files-with-matches print as results arrive;
// JSON collects and emits a single document at the end.
type searchOutput struct {
	root      string
	jsonMode  bool
	countMode bool
	filesMode bool
	context   int

	editorCmd string
	openIndex int
	targets   []openTarget

	files []jsonFile

	totalFiles   int
	totalMatches int
	scanned      int
	printedEntry bool
}

func newSearchOutput(c *cli.Context, cfg *config.Config) *searchOutput {
	// Same flag-over-config fallback as buildSearchConfig, so context
	// lines render as context even when the window comes from the file.
	contextLines := c.Int("context")
	if contextLines == 0 && cfg.Search.Context > 0 {
		contextLines = cfg.Search.Context
	}
	return &searchOutput{
		root:      cfg.Project.Root,
		jsonMode:  c.Bool("json"),
		countMode: c.Bool("count"),
		filesMode: c.Bool("files-with-matches"),
		context:   contextLines,
		editorCmd: cfg.Editor.Command,
		openIndex: c.Int("open"),
	}
}

func (o *searchOutput) file(r search.FileResult) {
	o.scanned++
	if !r.HasMatches() {
		return
	}
	o.totalFiles++

	matches := 0
	total := 0
	for _, entry := range r.Entries {
		for _, line := range entry.Lines {
			total++
			if line.IsMatch() {
				matches++
				if o.openIndex > 0 {
					o.targets = append(o.targets, openTarget{path: r.Path, line: line.LineNumber})
				}
			}
		}
	}
	// Inverted selections carry no spans; every reported line is a match.
	if matches == 0 {
		matches = total
		if o.openIndex > 0 {
			for _, entry := range r.Entries {
				for _, line := range entry.Lines {
					o.targets = append(o.targets, openTarget{path: r.Path, line: line.LineNumber})
				}
			}
		}
	}
	o.totalMatches += matches

	rel := pathutil.ToRelative(r.Path, o.root)
	switch {
	case o.jsonMode:
		o.files = append(o.files, jsonFileFromResult(rel, r, matches))
	case o.countMode:
		fmt.Printf("%s:%d\n", rel, matches)
	case o.filesMode:
		fmt.Println(rel)
	default:
		o.printText(rel, r)
	}
}

// printText emits classic grep output: matched lines as path:line:text,
// context lines as path-line-text, entries separated by "--" when a
// context window is active.
func (o *searchOutput) printText(rel string, r search.FileResult) {
	for _, entry := range r.Entries {
		if o.context > 0 && o.printedEntry {
			fmt.Println("--")
		}
		o.printedEntry = true
		for _, line := range entry.Lines {
			if line.IsMatch() {
				fmt.Printf("%s:%d:%s\n", rel, line.LineNumber, line.Bytes)
			} else if o.context > 0 {
				fmt.Printf("%s-%d-%s\n", rel, line.LineNumber, line.Bytes)
			} else {
				// Inverted selections reach here: no spans, no window.
				fmt.Printf("%s:%d:%s\n", rel, line.LineNumber, line.Bytes)
			}
		}
	}
}

func jsonFileFromResult(rel string, r search.FileResult, matches int) jsonFile {
	f := jsonFile{Path: rel, Matches: matches}
	for _, entry := range r.Entries {
		je := jsonEntry{}
		for _, line := range entry.Lines {
			je.Lines = append(je.Lines, jsonLine{
				Line:    line.LineNumber,
				Text:    string(line.Bytes),
				Matches: line.Matches,
			})
		}
		f.Entries = append(f.Entries, je)
	}
	return f
}

func (o *searchOutput) finish(pattern string, elapsed time.Duration) error {
	if o.jsonMode {
		output := map[string]interface{}{
			"query":   pattern,
			"time_ms": float64(elapsed.Microseconds()) / 1000.0,
			"count":   o.totalMatches,
			"files":   o.files,
		}
		if err := json.NewEncoder(os.Stdout).Encode(output); err != nil {
			return err
		}
	} else if !o.countMode && !o.filesMode {
		fmt.Fprintf(os.Stderr, "Found %d matches in %d files (%d scanned) in %.1fms\n",
			o.totalMatches, o.totalFiles, o.scanned, float64(elapsed.Microseconds())/1000.0)
	}

	if o.openIndex > 0 {
		return o.open()
	}
	return nil
}

func (o *searchOutput) open() error {
	if o.editorCmd == "" {
		return fmt.Errorf("no editor configured; set editor { command } in .lgrep.kdl")
	}
	if o.openIndex > len(o.targets) {
		return fmt.Errorf("match %d out of range: search produced %d matched lines", o.openIndex, len(o.targets))
	}
	target := o.targets[o.openIndex-1]
	fmt.Fprintf(os.Stderr, "Opening %s:%d\n", pathutil.ToRelative(target.path, o.root), target.line)
	return editor.Launch(o.editorCmd, target.path, target.line)
}
