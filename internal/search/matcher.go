package search

import (
	"regexp"
	"unicode"

	lgreperrors "github.com/standardbeagle/lgrep/internal/errors"
)

// Matcher is a compiled query pattern. The compiled program is shared
// between clones; each worker operates on its own Matcher instance and
// never shares one across goroutines.
type Matcher struct {
	re      *regexp.Regexp
	pattern string
}

// CompileQuery builds a Matcher from one query.
//
// Literal syntax escapes the pattern so it matches verbatim. Case
// handling is smart: the CaseInsensitive flag only takes effect when
// the pattern contains no literal uppercase character; a pattern with
// literal uppercase always matches case-sensitively, mirroring common
// grep behavior. Matching is line-oriented: the scanner feeds single
// lines, so anchors bind to line boundaries and '.' never crosses them.
func CompileQuery(q Query) (*Matcher, error) {
	expr := q.Pattern
	if q.Syntax == SyntaxLiteral {
		expr = regexp.QuoteMeta(expr)
	}
	if q.CaseInsensitive && !hasLiteralUpper(q.Pattern) {
		expr = "(?i)" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, lgreperrors.NewPatternError(0, q.Pattern, err)
	}
	return &Matcher{re: re, pattern: q.Pattern}, nil
}

// hasLiteralUpper reports whether the pattern contains an uppercase
// letter outside a backslash escape. Escaped characters are skipped so
// class escapes like \S or \P{L} do not defeat smart case.
func hasLiteralUpper(pattern string) bool {
	escaped := false
	for _, r := range pattern {
		if escaped {
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// Pattern returns the original query text.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// MatchLine reports whether the line satisfies the pattern.
func (m *Matcher) MatchLine(line []byte) bool {
	return m.re.Match(line)
}

// FindAt locates the first pattern occurrence starting at-or-after byte
// offset from within line. Returns the half-open occurrence range, or
// ok=false when no further occurrence exists. The whole line is always
// scanned, never a suffix: slicing would rebind ^ and $ to the slice and
// invent occurrences an anchored pattern does not have.
func (m *Matcher) FindAt(line []byte, from int) (start, end int, ok bool) {
	if from < 0 || from > len(line) {
		return 0, 0, false
	}
	for _, loc := range m.re.FindAllIndex(line, -1) {
		if loc[0] >= from {
			return loc[0], loc[1], true
		}
	}
	return 0, 0, false
}

// AllSpans finds every non-overlapping occurrence of the pattern in the
// line, sorted ascending. FindAllIndex keeps anchors bound to the real
// line boundaries and steps past empty-width occurrences on its own.
func (m *Matcher) AllSpans(line []byte) []Span {
	locs := m.re.FindAllIndex(line, -1)
	if len(locs) == 0 {
		return nil
	}
	spans := make([]Span, len(locs))
	for i, loc := range locs {
		spans[i] = Span{Start: loc[0], End: loc[1]}
	}
	return spans
}

// Clone returns an independent Matcher sharing the compiled program.
// Workers clone rather than share because match state must never cross
// goroutines.
func (m *Matcher) Clone() *Matcher {
	clone := *m
	return &clone
}

// mergeSpans unions two ascending, non-overlapping span lists into one,
// coalescing overlapping ranges. Used when later pipeline stages add
// highlight spans to lines the first stage selected.
func mergeSpans(a, b []Span) []Span {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}

	merged := make([]Span, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var next Span
		if j >= len(b) || (i < len(a) && a[i].Start <= b[j].Start) {
			next = a[i]
			i++
		} else {
			next = b[j]
			j++
		}
		if n := len(merged); n > 0 && next.Start < merged[n-1].End {
			if next.End > merged[n-1].End {
				merged[n-1].End = next.End
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}
