package search

import (
	"bytes"
)

// BinaryPolicy controls how NUL bytes in file content are treated.
type BinaryPolicy int

const (
	// BinaryQuit stops scanning at the first NUL byte. The partial line
	// before the NUL is still scanned. Default for files discovered by
	// directory traversal.
	BinaryQuit BinaryPolicy = iota
	// BinaryConvert replaces NUL bytes with line breaks and keeps
	// scanning. Applied to files the caller named explicitly.
	BinaryConvert
	// BinaryScanAll scans every byte as text. Selected by the
	// search-binary option.
	BinaryScanAll
)

// applyBinaryPolicy transforms raw file content per the policy. The
// buffer is owned by the caller and may be modified in place.
func applyBinaryPolicy(data []byte, policy BinaryPolicy) []byte {
	switch policy {
	case BinaryQuit:
		if i := bytes.IndexByte(data, 0); i >= 0 {
			return data[:i]
		}
	case BinaryConvert:
		off := 0
		for {
			i := bytes.IndexByte(data[off:], 0)
			if i < 0 {
				break
			}
			data[off+i] = '\n'
			off += i + 1
		}
	}
	return data
}

// LineScanner iterates over lines in a byte buffer without copying.
// Lines are the ranges between '\n' bytes; a trailing '\r' is stripped
// from the reported content. The final line is reported whether or not
// the buffer ends with a terminator.
//
// Usage:
//
//	scanner := NewLineScanner(data)
//	for scanner.Scan() {
//		line := scanner.Bytes() // valid until the next Scan
//		n := scanner.LineNumber()
//	}
type LineScanner struct {
	data    []byte
	pos     int
	line    []byte
	lineNum uint64
}

// NewLineScanner creates a scanner over data.
func NewLineScanner(data []byte) *LineScanner {
	return &LineScanner{data: data}
}

// Scan advances to the next line. Returns false at end of input.
func (s *LineScanner) Scan() bool {
	if s.pos >= len(s.data) {
		return false
	}

	start := s.pos
	end := len(s.data)
	if i := bytes.IndexByte(s.data[s.pos:], '\n'); i >= 0 {
		end = s.pos + i
		s.pos = end + 1
	} else {
		s.pos = len(s.data)
	}

	line := s.data[start:end]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	s.line = line
	s.lineNum++
	return true
}

// Bytes returns the current line content. The slice aliases the
// underlying buffer and is only valid until the next Scan.
func (s *LineScanner) Bytes() []byte {
	return s.line
}

// LineNumber returns the 1-based number of the current line.
func (s *LineScanner) LineNumber() uint64 {
	return s.lineNum
}

// Sink receives line events from a Scanner in file order.
//
// Matched is called for every line the query selects, Context for
// unmatched lines inside the context window, Break when the gap since
// the last emitted line exceeds the window (forcing consumers to close
// the current entry), and Finish exactly once at end of input. Break is
// only ever emitted when context buffering is active.
type Sink interface {
	Matched(lineNumber uint64, line []byte, spans []Span)
	Context(lineNumber uint64, line []byte)
	Break()
	Finish()
}

// bufferedLine is a pending before-context line held until the scanner
// knows whether a match will claim it.
type bufferedLine struct {
	number uint64
	line   []byte
}

// Scanner streams one file's content through a matcher, emitting
// matched and context line events to a Sink.
type Scanner struct {
	matcher *Matcher
	invert  bool
	context int
}

// NewScanner creates a scanner for one pipeline stage.
func NewScanner(matcher *Matcher, invert bool, context int) *Scanner {
	return &Scanner{matcher: matcher, invert: invert, context: context}
}

// Scan runs the matcher over every line of data, emitting events to
// sink. The match set is inverted when the scanner's invert flag is
// set; inverted matches carry no highlight spans because no pattern
// occurrence exists on those lines.
func (s *Scanner) Scan(data []byte, sink Sink) {
	var (
		before         []bufferedLine // ring of unmatched lines, at most context
		lastEmitted    uint64         // 0 means nothing emitted yet
		afterRemaining int            // after-context lines still owed
	)

	lines := NewLineScanner(data)
	for lines.Scan() {
		line := lines.Bytes()
		n := lines.LineNumber()

		matched := s.matcher.MatchLine(line)
		if s.invert {
			matched = !matched
		}

		if !matched {
			if afterRemaining > 0 {
				sink.Context(n, line)
				lastEmitted = n
				afterRemaining--
			} else if s.context > 0 {
				if len(before) == s.context {
					copy(before, before[1:])
					before = before[:s.context-1]
				}
				before = append(before, bufferedLine{number: n, line: line})
			}
			continue
		}

		var spans []Span
		if !s.invert {
			spans = s.matcher.AllSpans(line)
		}

		if s.context > 0 {
			firstToEmit := n - uint64(len(before))
			if lastEmitted > 0 && firstToEmit > lastEmitted+1 {
				sink.Break()
			}
			for _, b := range before {
				sink.Context(b.number, b.line)
			}
			before = before[:0]
			afterRemaining = s.context
		}

		sink.Matched(n, line, spans)
		lastEmitted = n
	}

	sink.Finish()
}
