// Package search implements the concurrent, cancellable, multi-query
// file-content search engine behind lgrep.
//
// A search is spawned from a SearchConfig (roots, override globs, an
// ordered list of queries) plus runtime Options. The engine walks the
// roots in parallel, runs every file through the query pipeline, and
// streams per-file results to the caller through a PendingSearch handle
// that supports non-blocking polling and cooperative cancellation.
package search

// QuerySyntax selects how a query pattern is interpreted.
type QuerySyntax int

const (
	// SyntaxLiteral matches the pattern text verbatim.
	SyntaxLiteral QuerySyntax = iota
	// SyntaxRegex interprets the pattern as a regular expression.
	SyntaxRegex
)

// Query is one stage of the search pipeline. Immutable once compiled.
//
// ExtraContext is symmetric: the same number of lines is captured before
// and after a match. Asymmetric context is unsupported.
type Query struct {
	Pattern         string
	Syntax          QuerySyntax
	CaseInsensitive bool
	Invert          bool
	ExtraContext    int
}

// IsEmpty reports whether the query has no pattern text and therefore
// contributes no pipeline stage.
func (q Query) IsEmpty() bool {
	return q.Pattern == ""
}

// SearchConfig describes one search invocation.
//
// Roots are ordered; the caller has already split any user-facing path
// list syntax into individual entries. A root naming a regular file is
// scanned directly, bypassing glob and ignore filtering. Overrides are
// glob patterns filtering discovered files; a leading '!' negates, and
// later patterns take precedence over earlier ones on conflict.
type SearchConfig struct {
	Roots     []string
	Overrides []string
	Queries   []Query
}

// Options carries runtime settings sourced from configuration.
type Options struct {
	// Threads is the worker count. Zero selects hardware parallelism
	// with a floor of two.
	Threads int
	// SearchBinary scans files with NUL bytes as ordinary text.
	SearchBinary bool
	// FollowSymlinks descends into symlinked directories. Cycles are
	// detected and broken.
	FollowSymlinks bool
	// Hidden includes dotfiles and dot-directories in the walk.
	Hidden bool
	// UseGitignore layers each root's .gitignore under the overrides.
	UseGitignore bool
	// MaxFileSize skips regular files larger than this many bytes
	// during discovery. Zero means no limit.
	MaxFileSize int64
}

// Span is a half-open [Start, End) byte range within one line,
// identifying a pattern occurrence for highlighting.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ResultLine is one emitted line: its 1-based number in the file, its
// content without the trailing line terminator, and the pattern
// occurrences found within it. Empty Matches means a context line.
type ResultLine struct {
	LineNumber uint64 `json:"line_number"`
	Bytes      []byte `json:"bytes"`
	Matches    []Span `json:"matches,omitempty"`
}

// IsMatch reports whether the line carries highlight spans. Inverted
// matches report false here: they are selected lines without pattern
// occurrences to highlight.
func (l ResultLine) IsMatch() bool {
	return len(l.Matches) > 0
}

// ResultEntry is a contiguous group of lines belonging to one match
// neighborhood: one or more matched lines plus their context. Entries
// never merge the context windows of two matches farther apart than the
// window allows.
type ResultEntry struct {
	Lines []ResultLine `json:"lines"`
}

// FileResult holds everything found in one file. Files that were
// scanned but produced no entries are still reported with empty Entries
// so consumers can count files searched.
type FileResult struct {
	Path    string        `json:"path"`
	Entries []ResultEntry `json:"entries"`
}

// HasMatches reports whether the file produced any entries.
func (r FileResult) HasMatches() bool {
	return len(r.Entries) > 0
}
