// Package pathutil provides utilities for parsing user-supplied path
// lists and for converting between absolute and relative paths.
//
// lgrep uses absolute paths internally for consistency; user-facing
// output uses relative paths for readability. This package is the
// conversion layer between the two representations.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/lgrep/internal/search"
)

// ListSeparator separates entries in a user-supplied path list,
// e.g. "src;vendor/lib;README.md".
const ListSeparator = ";"

// SplitList parses a separator-delimited path list into individual
// entries. Whitespace around entries is trimmed and empty entries are
// dropped, so trailing separators and doubled separators are harmless.
func SplitList(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	parts := strings.Split(list, ListSeparator)
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paths = append(paths, trimmed)
		}
	}
	return paths
}

// JoinList renders path entries back into the list syntax.
func JoinList(paths []string) string {
	return strings.Join(paths, ListSeparator)
}

// ToRelative converts an absolute path to relative based on a root
// directory. Falls back to the original path if conversion fails, the
// path is already relative, or the path lies outside the root.
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}
	// Outside the root: the absolute form is clearer than ../ chains.
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}
	return relPath
}

// ToRelativeResults converts paths in a FileResult slice from absolute
// to relative. Creates a new slice without modifying the originals.
// Intended for output boundaries: CLI printing, JSON serialization,
// MCP responses.
func ToRelativeResults(results []search.FileResult, rootDir string) []search.FileResult {
	if len(results) == 0 {
		return results
	}

	converted := make([]search.FileResult, len(results))
	copy(converted, results)
	for i := range converted {
		converted[i].Path = ToRelative(converted[i].Path, rootDir)
	}
	return converted
}
