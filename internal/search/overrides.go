package search

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	lgreperrors "github.com/standardbeagle/lgrep/internal/errors"
)

// overrideVerdict is an OverrideSet decision for one path.
type overrideVerdict int

const (
	// verdictNone means no glob matched and no whitelist is in force;
	// lower filtering layers (hidden, gitignore) decide.
	verdictNone overrideVerdict = iota
	// verdictInclude means the path is searched regardless of lower
	// layers.
	verdictInclude
	// verdictExclude means the path is skipped.
	verdictExclude
)

// OverrideSet evaluates user-supplied override globs against discovered
// files. A leading '!' negates a glob. Later globs take precedence over
// earlier ones: evaluation scans from the last glob backwards and the
// first hit decides. When at least one positive glob exists the set
// acts as a whitelist: files matching no glob are excluded.
//
// Globs without a separator match the file name at any depth; globs
// containing a separator match the whole root-relative path, like
// gitignore patterns.
type OverrideSet struct {
	globs      []overrideGlob
	hasInclude bool
}

type overrideGlob struct {
	pattern  string
	negated  bool
	baseOnly bool
}

// ParseOverrides validates and compiles override globs. Glob order is
// preserved; invalid syntax fails with a *errors.ConfigError so the
// search never starts with a half-working filter.
func ParseOverrides(globs []string) (*OverrideSet, error) {
	set := &OverrideSet{}
	for _, g := range globs {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		og := overrideGlob{}
		if strings.HasPrefix(g, "!") {
			og.negated = true
			g = g[1:]
		}
		g = strings.TrimPrefix(g, "/")
		if !doublestar.ValidatePattern(g) {
			return nil, lgreperrors.NewConfigError("overrides", g, fmt.Errorf("invalid glob syntax"))
		}
		og.pattern = g
		og.baseOnly = !strings.Contains(g, "/")
		if !og.negated {
			set.hasInclude = true
		}
		set.globs = append(set.globs, og)
	}
	return set, nil
}

// Empty reports whether no globs were configured.
func (o *OverrideSet) Empty() bool {
	return len(o.globs) == 0
}

// FileVerdict decides whether a discovered regular file, identified by
// its slash-separated root-relative path, is searched.
func (o *OverrideSet) FileVerdict(relPath string) overrideVerdict {
	relPath = filepath.ToSlash(relPath)
	for i := len(o.globs) - 1; i >= 0; i-- {
		g := o.globs[i]
		target := relPath
		if g.baseOnly {
			target = path.Base(relPath)
		}
		matched, err := doublestar.Match(g.pattern, target)
		if err != nil || !matched {
			continue
		}
		if g.negated {
			return verdictExclude
		}
		return verdictInclude
	}
	if o.hasInclude {
		return verdictExclude
	}
	return verdictNone
}
