package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProjectFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDetect_PackageJSONScripts(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "package.json", `{
  "scripts": {
    "build": "tsc --outDir lib",
    "build:prod": "esbuild src/main.ts --outDir 'bundle'"
  }
}`)

	patterns := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	assert.Contains(t, patterns, "**/lib/**")
	assert.Contains(t, patterns, "**/bundle/**")
}

func TestDetect_PackageJSONBuildSection(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "package.json", `{"build": {"outDir": "./output"}}`)

	patterns := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	assert.Equal(t, []string{"**/output/**"}, patterns)
}

func TestDetect_TsconfigOutDir(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "tsconfig.json", `{"compilerOptions": {"outDir": "dist/es2020"}}`)

	patterns := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	assert.Equal(t, []string{"**/dist/es2020/**"}, patterns)
}

func TestDetect_CargoTargetDir(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "Cargo.toml", `
[package]
name = "demo"

[profile.release]
target-dir = "artifacts"
`)

	patterns := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	assert.Equal(t, []string{"**/artifacts/**"}, patterns)
}

func TestDetect_PyprojectPoetry(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "pyproject.toml", `
[tool.poetry]
name = "demo"

[tool.poetry.build]
target-dir = "wheelhouse"
`)

	patterns := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	assert.Equal(t, []string{"**/wheelhouse/**"}, patterns)
}

func TestDetect_UnparseableFilesSkipped(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "package.json", `{not json`)
	writeProjectFile(t, dir, "tsconfig.json", `// jsonc comment
{"compilerOptions": {"outDir": "never"}}`)
	writeProjectFile(t, dir, "Cargo.toml", `[[[broken`)

	patterns := NewBuildArtifactDetector(dir).DetectOutputDirectories()
	assert.Empty(t, patterns)
}

func TestDetect_EmptyProject(t *testing.T) {
	patterns := NewBuildArtifactDetector(t.TempDir()).DetectOutputDirectories()
	assert.Empty(t, patterns)
}

func TestDirPattern(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"dist", "**/dist/**", true},
		{"./dist", "**/dist/**", true},
		{"dist/", "**/dist/**", true},
		{"out/js", "**/out/js/**", true},
		{"", "", false},
		{".", "", false},
		{"..", "", false},
		{"/absolute", "", false},
	}

	for _, tt := range tests {
		got, ok := dirPattern(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestDeduplicatePatterns(t *testing.T) {
	got := DeduplicatePatterns([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
