package search

import (
	"os"

	"github.com/standardbeagle/lgrep/internal/debug"
	lgreperrors "github.com/standardbeagle/lgrep/internal/errors"
)

// stage is one compiled query in the pipeline.
type stage struct {
	matcher *Matcher
	invert  bool
}

// Pipeline runs an ordered set of compiled query stages over one file.
//
// The first stage establishes line numbers, entry boundaries, and the
// matched-line set. Later stages only add highlight spans to the lines
// the first stage selected; they never add or remove lines. The file is
// read once: later-stage matchers are evaluated per selected line while
// the first stage streams, which leaves observable results identical to
// rescanning the file per stage.
type Pipeline struct {
	stages  []stage
	context int
}

// CompilePipeline compiles queries into pipeline stages, in order.
// Queries with empty patterns contribute no stage. The first non-empty
// query is mandatory: its compile failure aborts the whole pipeline. A
// later query that fails to compile is logged and dropped, degrading
// annotation rather than failing the search.
//
// A nil pipeline with nil error means every query was empty: the search
// is a no-op.
func CompilePipeline(queries []Query) (*Pipeline, error) {
	var p *Pipeline
	stageIdx := 0
	for _, q := range queries {
		if q.IsEmpty() {
			continue
		}
		matcher, err := CompileQuery(q)
		if err != nil {
			if p == nil {
				if pe, ok := err.(*lgreperrors.PatternError); ok {
					pe.Stage = stageIdx
				}
				return nil, err
			}
			debug.LogSearch("dropping annotation stage %d (%q): %v\n", stageIdx, q.Pattern, err)
			stageIdx++
			continue
		}
		if p == nil {
			p = &Pipeline{context: q.ExtraContext}
		}
		p.stages = append(p.stages, stage{matcher: matcher, invert: q.Invert})
		stageIdx++
	}
	return p, nil
}

// Clone returns an independent pipeline for one worker. Matchers are
// cloned so no per-call state is shared across goroutines.
func (p *Pipeline) Clone() *Pipeline {
	clone := &Pipeline{
		stages:  make([]stage, len(p.stages)),
		context: p.context,
	}
	for i, st := range p.stages {
		clone.stages[i] = stage{matcher: st.matcher.Clone(), invert: st.invert}
	}
	return clone
}

// Context returns the extra-context line count of the entry-defining
// first stage.
func (p *Pipeline) Context() int {
	return p.context
}

// annotator decorates a Sink, adding later-stage highlight spans to
// each matched line as it streams past. Context lines pass through
// untouched: later stages only annotate lines the first stage selected
// as matches. Inverted later stages contribute nothing, since their
// selected lines contain no pattern occurrence to highlight.
type annotator struct {
	sink   Sink
	stages []stage
}

func (a *annotator) Matched(lineNumber uint64, line []byte, spans []Span) {
	for _, st := range a.stages {
		if st.invert {
			continue
		}
		if extra := st.matcher.AllSpans(line); len(extra) > 0 {
			spans = mergeSpans(spans, extra)
		}
	}
	a.sink.Matched(lineNumber, line, spans)
}

func (a *annotator) Context(lineNumber uint64, line []byte) {
	a.sink.Context(lineNumber, line)
}

func (a *annotator) Break() {
	a.sink.Break()
}

func (a *annotator) Finish() {
	a.sink.Finish()
}

// SearchFile scans one file through the pipeline and returns its
// result. Files that produce no entries still return a FileResult so
// callers can count files searched. Read failures are returned as a
// *errors.FileError for the caller to log and skip.
func (p *Pipeline) SearchFile(path string, policy BinaryPolicy) (FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, lgreperrors.NewFileError("read", path, err)
	}
	return p.SearchContent(path, data, policy), nil
}

// SearchContent scans in-memory content. The buffer may be modified in
// place by the binary policy.
func (p *Pipeline) SearchContent(path string, data []byte, policy BinaryPolicy) FileResult {
	data = applyBinaryPolicy(data, policy)

	asm := NewAssembler(path, p.context == 0)
	var sink Sink = asm
	if len(p.stages) > 1 {
		sink = &annotator{sink: asm, stages: p.stages[1:]}
	}

	first := p.stages[0]
	NewScanner(first.matcher, first.invert, p.context).Scan(data, sink)

	return FileResult{Path: path, Entries: asm.Entries()}
}
