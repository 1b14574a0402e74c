package pathutil

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/standardbeagle/lgrep/internal/search"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"single path", "src", []string{"src"}},
		{"multiple paths", "src;vendor/lib;docs", []string{"src", "vendor/lib", "docs"}},
		{"trailing separator", "src;", []string{"src"}},
		{"doubled separator", "src;;docs", []string{"src", "docs"}},
		{"whitespace around entries", " src ; docs ", []string{"src", "docs"}},
		{"absolute and relative mixed", "/opt/data;./local", []string{"/opt/data", "./local"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitList(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitList(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestJoinList_RoundTrip(t *testing.T) {
	paths := []string{"src", "vendor/lib"}
	if got := SplitList(JoinList(paths)); !reflect.DeepEqual(got, paths) {
		t.Errorf("round trip = %v, want %v", got, paths)
	}
}

func TestToRelative(t *testing.T) {
	root := filepath.FromSlash("/home/user/project")
	tests := []struct {
		name string
		abs  string
		want string
	}{
		{"inside root", filepath.FromSlash("/home/user/project/src/main.go"), filepath.FromSlash("src/main.go")},
		{"root itself", root, "."},
		{"outside root stays absolute", filepath.FromSlash("/etc/passwd"), filepath.FromSlash("/etc/passwd")},
		{"already relative", filepath.FromSlash("src/main.go"), filepath.FromSlash("src/main.go")},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToRelative(tt.abs, root); got != tt.want {
				t.Errorf("ToRelative(%q, %q) = %q, want %q", tt.abs, root, got, tt.want)
			}
		})
	}
}

func TestToRelativeResults_DoesNotMutateInput(t *testing.T) {
	root := filepath.FromSlash("/home/user/project")
	abs := filepath.Join(root, "a.txt")
	in := []search.FileResult{{Path: abs}}

	out := ToRelativeResults(in, root)

	if in[0].Path != abs {
		t.Errorf("input was mutated: %q", in[0].Path)
	}
	if out[0].Path != "a.txt" {
		t.Errorf("expected relative path, got %q", out[0].Path)
	}
}
