package search

import (
	"github.com/standardbeagle/lgrep/internal/debug"
)

// Assembler groups line events into contiguous result entries. It
// implements Sink for the first pipeline stage.
//
// With zero extra context every matched line closes immediately as its
// own single-line entry, since no context lines or breaks can occur.
// With context, the open entry accumulates matched and context lines
// and is flushed on a context break or at end of file.
type Assembler struct {
	path         string
	zeroContext  bool
	entries      []ResultEntry
	open         []ResultLine
	openHasMatch bool
}

// NewAssembler creates an assembler for one file scan.
func NewAssembler(path string, zeroContext bool) *Assembler {
	return &Assembler{path: path, zeroContext: zeroContext}
}

// Matched records a selected line with its highlight spans.
func (a *Assembler) Matched(lineNumber uint64, line []byte, spans []Span) {
	rl := ResultLine{
		LineNumber: lineNumber,
		Bytes:      append([]byte(nil), line...),
		Matches:    spans,
	}

	if a.zeroContext {
		a.entries = append(a.entries, ResultEntry{Lines: []ResultLine{rl}})
		return
	}

	a.open = append(a.open, rl)
	a.openHasMatch = true
}

// Context records an unmatched line inside the context window. Before-
// context arrives ahead of its match, so an entry is opened lazily.
func (a *Assembler) Context(lineNumber uint64, line []byte) {
	a.open = append(a.open, ResultLine{
		LineNumber: lineNumber,
		Bytes:      append([]byte(nil), line...),
	})
}

// Break closes the open entry: the gap to the next emitted line exceeds
// the context window.
func (a *Assembler) Break() {
	a.flush()
}

// Finish closes any open entry at end of file.
func (a *Assembler) Finish() {
	a.flush()
}

func (a *Assembler) flush() {
	if len(a.open) == 0 {
		return
	}
	if !a.openHasMatch {
		// Context with no match anywhere in the group means the scanner
		// violated its event contract. Drop the group rather than emit
		// an entry that highlights nothing.
		debug.LogSearch("assembler: dropping %d context lines with no match in %s\n", len(a.open), a.path)
		a.open = nil
		return
	}
	a.entries = append(a.entries, ResultEntry{Lines: a.open})
	a.open = nil
	a.openHasMatch = false
}

// Entries returns the assembled entries in file order.
func (a *Assembler) Entries() []ResultEntry {
	return a.entries
}
