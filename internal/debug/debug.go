// Package debug provides conditional debug logging for lgrep.
// Output is enabled by the DEBUG environment variable or by a build-time
// flag, and is suppressed entirely while serving MCP over stdio so the
// JSON-RPC stream stays clean.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// EnableDebug can be set at build time to force debug output:
//
//	go build -ldflags "-X github.com/standardbeagle/lgrep/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// MCPMode suppresses all debug output when the process is serving MCP
// over stdio. Set once at startup, before any goroutines log.
var MCPMode = false

var (
	outputMu sync.Mutex
	output   io.Writer = os.Stderr
)

// SetMCPMode enables or disables MCP mode.
func SetMCPMode(enabled bool) {
	MCPMode = enabled
}

// SetOutput redirects debug output. Used by tests and by the CLI when a
// debug log file is requested.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	output = w
}

// Enabled reports whether debug output is active.
func Enabled() bool {
	if MCPMode {
		return false
	}
	return EnableDebug == "true" || os.Getenv("DEBUG") != ""
}

// Printf writes formatted debug output when enabled.
func Printf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	outputMu.Lock()
	defer outputMu.Unlock()
	fmt.Fprintf(output, format, args...)
}

// Log writes a component-tagged debug line when enabled.
func Log(component, format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	outputMu.Lock()
	defer outputMu.Unlock()
	fmt.Fprintf(output, "[%s] ", component)
	fmt.Fprintf(output, format, args...)
}

// LogSearch logs search pipeline activity.
func LogSearch(format string, args ...interface{}) {
	Log("SEARCH", format, args...)
}

// LogWalk logs directory traversal activity.
func LogWalk(format string, args ...interface{}) {
	Log("WALK", format, args...)
}

// LogConfig logs configuration loading activity.
func LogConfig(format string, args ...interface{}) {
	Log("CONFIG", format, args...)
}

// LogWatch logs file watcher activity.
func LogWatch(format string, args ...interface{}) {
	Log("WATCH", format, args...)
}

// LogMCP logs MCP server activity. Silent while actually serving MCP;
// visible when handlers run in-process, as in tests.
func LogMCP(format string, args ...interface{}) {
	Log("MCP", format, args...)
}

// Fatal logs an unrecoverable error and returns it for the caller to
// propagate. Bypasses the enabled check: fatal conditions always print.
func Fatal(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	outputMu.Lock()
	defer outputMu.Unlock()
	fmt.Fprintf(output, "FATAL: %v\n", err)
	return err
}

// FatalAndExit logs an unrecoverable error and terminates the process.
// Only for use at the top of the CLI where no caller can recover.
func FatalAndExit(format string, args ...interface{}) {
	outputMu.Lock()
	fmt.Fprintf(output, "FATAL: ")
	fmt.Fprintf(output, format, args...)
	fmt.Fprintln(output)
	outputMu.Unlock()
	os.Exit(1)
}
