package search

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFile holds the parsed patterns of one .gitignore file and
// answers whether a path is ignored. The last matching pattern wins,
// and a '!' pattern re-includes a previously ignored path.
type IgnoreFile struct {
	patterns []ignorePattern
}

// patternKind classifies a pattern for fast matching. Most real-world
// gitignore lines are plain names or *.ext suffixes; classifying once
// at parse time keeps the per-path check cheap.
type patternKind int

const (
	kindExact patternKind = iota
	kindPrefix
	kindSuffix
	kindGlob
)

type ignorePattern struct {
	text     string
	negate   bool
	dirOnly  bool
	anchored bool
	kind     patternKind
}

// NewIgnoreFile creates an empty ignore set.
func NewIgnoreFile() *IgnoreFile {
	return &IgnoreFile{}
}

// LoadRoot reads <root>/.gitignore if present. A missing file is not an
// error: the set simply stays empty.
func LoadRoot(root string) (*IgnoreFile, error) {
	ig := NewIgnoreFile()

	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return ig, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ig.Add(strings.TrimSpace(scanner.Text()))
	}
	return ig, scanner.Err()
}

// Add parses one pattern line into the set. Blank lines and comments
// are skipped.
func (ig *IgnoreFile) Add(line string) {
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	p := ignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") {
		// A separator anywhere in the pattern anchors it to the root,
		// per gitignore rules.
		p.anchored = true
	}

	p.text = line
	p.kind = classifyPattern(line)
	ig.patterns = append(ig.patterns, p)
}

// Empty reports whether no patterns were loaded.
func (ig *IgnoreFile) Empty() bool {
	return len(ig.patterns) == 0
}

func classifyPattern(text string) patternKind {
	if !strings.ContainsAny(text, "*?[{") {
		return kindExact
	}
	simple := strings.Count(text, "*") == 1 && !strings.ContainsAny(text, "?[{")
	if simple && strings.HasPrefix(text, "*") {
		return kindSuffix
	}
	if simple && strings.HasSuffix(text, "*") {
		return kindPrefix
	}
	return kindGlob
}

// Ignored reports whether the slash-separated root-relative path is
// excluded by the loaded patterns.
func (ig *IgnoreFile) Ignored(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)

	ignored := false
	for _, p := range ig.patterns {
		if !ig.matches(p, relPath, isDir) {
			continue
		}
		ignored = !p.negate
	}
	return ignored
}

func (ig *IgnoreFile) matches(p ignorePattern, relPath string, isDir bool) bool {
	if p.dirOnly {
		if isDir {
			return ig.matchAt(p, relPath)
		}
		// A file inside an ignored directory is ignored with it.
		return ig.insideMatchedDir(p, relPath)
	}
	return ig.matchAt(p, relPath)
}

// matchAt applies the pattern either anchored to the root or, for bare
// patterns, against every path suffix so "foo" matches "a/b/foo".
func (ig *IgnoreFile) matchAt(p ignorePattern, relPath string) bool {
	if p.anchored {
		return ig.matchText(p, relPath)
	}
	if ig.matchText(p, relPath) {
		return true
	}
	rest := relPath
	for {
		i := strings.IndexByte(rest, '/')
		if i < 0 {
			return false
		}
		rest = rest[i+1:]
		if ig.matchText(p, rest) {
			return true
		}
	}
}

func (ig *IgnoreFile) insideMatchedDir(p ignorePattern, relPath string) bool {
	// Walk ancestor directories of the path and test each against the
	// directory pattern.
	for dir := relPath; ; {
		i := strings.LastIndexByte(dir, '/')
		if i < 0 {
			return false
		}
		dir = dir[:i]
		if ig.matchAt(p, dir) {
			return true
		}
	}
}

func (ig *IgnoreFile) matchText(p ignorePattern, path string) bool {
	switch p.kind {
	case kindExact:
		return p.text == path
	case kindSuffix:
		return strings.HasSuffix(path, p.text[1:])
	case kindPrefix:
		return strings.HasPrefix(path, p.text[:len(p.text)-1])
	default:
		matched, err := doublestar.Match(p.text, path)
		return err == nil && matched
	}
}
