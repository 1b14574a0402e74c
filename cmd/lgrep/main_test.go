package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBinaryPath is the lgrep binary built once for all tests.
var testBinaryPath string

func TestMain(m *testing.M) {
	tempBinary := filepath.Join(os.TempDir(), fmt.Sprintf("lgrep-test-%d", time.Now().UnixNano()))

	buildCmd := exec.Command("go", "build", "-o", tempBinary, ".")
	var buildOut bytes.Buffer
	buildCmd.Stdout = &buildOut
	buildCmd.Stderr = &buildOut

	if err := buildCmd.Run(); err != nil {
		fmt.Printf("Failed to build lgrep for testing: %v\nBuild output: %s\n", err, buildOut.String())
		os.Exit(1)
	}
	testBinaryPath = tempBinary

	code := m.Run()

	os.Remove(testBinaryPath)
	os.Exit(code)
}

// setupTestProject creates a small tree with known match counts.
func setupTestProject(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	testFiles := map[string]string{
		"main.go": `package main

func main() {
	println(run())
}
`,
		"run.go": `package main

func run() string {
	return "lightning"
}
`,
		"README.md": `# Demo

Lightning strikes twice.
`,
		"node_modules/pkg/index.js": `module.exports = "lightning";`,
	}

	for path, content := range testFiles {
		fullPath := filepath.Join(tempDir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0644))
	}

	return tempDir
}

// runCLI executes the test binary with dir as working directory and
// returns stdout and stderr separately.
func runCLI(dir string, args ...string) (string, string, error) {
	cmd := exec.Command(testBinaryPath, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// exitCode extracts the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func TestSearchCommand_FindsMatches(t *testing.T) {
	dir := setupTestProject(t)

	stdout, stderr, err := runCLI(dir, "search", "lightning")
	require.NoError(t, err, "stderr: %s", stderr)

	assert.Contains(t, stdout, "run.go:4:")
	assert.Contains(t, stdout, `return "lightning"`)
	// Smart case folds the all-lowercase pattern.
	assert.Contains(t, stdout, "README.md:3:")
	assert.Contains(t, stderr, "Found 2 matches")
}

func TestSearchCommand_SmartCaseUppercase(t *testing.T) {
	dir := setupTestProject(t)

	stdout, stderr, err := runCLI(dir, "search", "Lightning")
	require.NoError(t, err, "stderr: %s", stderr)

	assert.Contains(t, stdout, "README.md:3:")
	assert.NotContains(t, stdout, "run.go")
}

func TestSearchCommand_NoMatches(t *testing.T) {
	dir := setupTestProject(t)

	stdout, _, err := runCLI(dir, "search", "no-such-needle")
	assert.Equal(t, 1, exitCode(err), "no matches should exit 1")
	assert.Empty(t, stdout)
}

func TestSearchCommand_BadPattern(t *testing.T) {
	dir := setupTestProject(t)

	_, stderr, err := runCLI(dir, "search", "--regex", "[")
	assert.Equal(t, 2, exitCode(err), "invalid pattern should exit 2")
	assert.Contains(t, stderr, "pattern")
}

func TestSearchCommand_MissingPattern(t *testing.T) {
	dir := setupTestProject(t)

	_, stderr, err := runCLI(dir, "search")
	assert.Equal(t, 2, exitCode(err))
	assert.Contains(t, stderr, "usage")
}

func TestSearchCommand_JSONOutput(t *testing.T) {
	dir := setupTestProject(t)

	stdout, stderr, err := runCLI(dir, "search", "--json", "lightning")
	require.NoError(t, err, "stderr: %s", stderr)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "lightning", result["query"])
	assert.Equal(t, float64(2), result["count"])
	assert.Contains(t, result, "time_ms")

	files, ok := result["files"].([]interface{})
	require.True(t, ok, "files should be an array")
	assert.Len(t, files, 2)
}

func TestSearchCommand_CountMode(t *testing.T) {
	dir := setupTestProject(t)

	stdout, stderr, err := runCLI(dir, "search", "--count", "lightning")
	require.NoError(t, err, "stderr: %s", stderr)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, stdout, "run.go:1")
	assert.Contains(t, stdout, "README.md:1")
}

func TestSearchCommand_FilesWithMatches(t *testing.T) {
	dir := setupTestProject(t)

	stdout, stderr, err := runCLI(dir, "search", "-l", "lightning")
	require.NoError(t, err, "stderr: %s", stderr)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines, "run.go")
	assert.Contains(t, lines, "README.md")
}

func TestSearchCommand_ContextLines(t *testing.T) {
	dir := setupTestProject(t)

	stdout, stderr, err := runCLI(dir, "search", "-C", "1", "strikes")
	require.NoError(t, err, "stderr: %s", stderr)

	// Context lines print with dash separators, matches with colons.
	assert.Contains(t, stdout, "README.md:3:Lightning strikes twice.")
	assert.Contains(t, stdout, "README.md-2-")
}

func TestSearchCommand_Invert(t *testing.T) {
	dir := setupTestProject(t)

	stdout, stderr, err := runCLI(dir, "search", "-v", "-p", "README.md", "Lightning")
	require.NoError(t, err, "stderr: %s", stderr)

	assert.Contains(t, stdout, "README.md:1:# Demo")
	assert.NotContains(t, stdout, "strikes")
}

func TestSearchCommand_GlobFilter(t *testing.T) {
	dir := setupTestProject(t)

	stdout, stderr, err := runCLI(dir, "search", "-g", "*.go", "lightning")
	require.NoError(t, err, "stderr: %s", stderr)

	assert.Contains(t, stdout, "run.go")
	assert.NotContains(t, stdout, "README.md")
}

func TestSearchCommand_DefaultExclusions(t *testing.T) {
	dir := setupTestProject(t)

	stdout, stderr, err := runCLI(dir, "search", "lightning")
	require.NoError(t, err, "stderr: %s", stderr)

	assert.NotContains(t, stdout, "node_modules", "default exclusions should hide node_modules")
}

func TestBareInvocation_RunsSearch(t *testing.T) {
	dir := setupTestProject(t)

	stdout, stderr, err := runCLI(dir, "lightning")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "run.go:4:")
}

func TestBareInvocation_WithFlags(t *testing.T) {
	dir := setupTestProject(t)

	stdout, stderr, err := runCLI(dir, "-l", "lightning")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "run.go")
	assert.NotContains(t, stdout, ":4:")
}

func TestVersionCommand(t *testing.T) {
	stdout, stderr, err := runCLI(t.TempDir(), "version")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Lightning Grep")
	assert.Contains(t, stdout, "0.1.0")
}

func TestConfigCommand_ShowsEffectiveConfig(t *testing.T) {
	dir := setupTestProject(t)

	stdout, stderr, err := runCLI(dir, "config")
	require.NoError(t, err, "stderr: %s", stderr)

	assert.Contains(t, stdout, "project {")
	assert.Contains(t, stdout, "smart_case true")
	assert.Contains(t, stdout, "debounce_ms 300")
	assert.Contains(t, stdout, `max_file_size "10MB"`)
	assert.Contains(t, stdout, "exclude")
}

func TestConfigCommand_ReadsProjectFile(t *testing.T) {
	dir := setupTestProject(t)
	kdl := `
search {
    context 2
    smart_case false
}

watch {
    debounce_ms 150
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lgrep.kdl"), []byte(kdl), 0644))

	stdout, stderr, err := runCLI(dir, "config")
	require.NoError(t, err, "stderr: %s", stderr)

	assert.Contains(t, stdout, "context 2")
	assert.Contains(t, stdout, "smart_case false")
	assert.Contains(t, stdout, "debounce_ms 150")
}

func TestWatchCommand_RerunsOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping slow integration test (spawns process, multi-second sleeps)")
	}
	dir := setupTestProject(t)

	cmd := exec.Command(testBinaryPath, "watch", "lightning")
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	require.NoError(t, cmd.Start())

	// First run completes, then a new matching file appears.
	time.Sleep(1500 * time.Millisecond)
	zap := filepath.Join(dir, "zap.txt")
	require.NoError(t, os.WriteFile(zap, []byte("lightning strikes\n"), 0644))

	// Debounce is 300ms by default; leave room for the rerun to finish.
	time.Sleep(2 * time.Second)
	require.NoError(t, cmd.Process.Signal(os.Interrupt))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		assert.NoError(t, err, "watch should exit cleanly on SIGINT; stderr: %s", stderr.String())
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		t.Fatal("watch did not exit after SIGINT")
	}

	assert.Contains(t, stdout.String(), "run.go:4:", "first run should report existing matches")
	assert.Contains(t, stdout.String(), "zap.txt:1:", "rerun should pick up the new file")
	assert.Contains(t, stderr.String(), "change detected")
	assert.Contains(t, stderr.String(), "waiting for changes", "status line should print between runs")
	assert.Contains(t, stderr.String(), "1 batches", "status line should report watcher activity after the rerun")
}

func TestConfigWarning_UnknownKey(t *testing.T) {
	dir := setupTestProject(t)
	kdl := `
search {
    smartcase true
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lgrep.kdl"), []byte(kdl), 0644))

	_, stderr, err := runCLI(dir, "config")
	require.NoError(t, err)
	assert.Contains(t, stderr, "did you mean")
	assert.Contains(t, stderr, "smart_case")
}
