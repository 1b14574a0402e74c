// Package errors provides structured error types for lgrep operations.
// Each type carries enough context to diagnose a failure without string
// parsing, supports errors.Is/As chains via Unwrap, and records when the
// error occurred.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// PatternError indicates a query pattern failed to compile.
type PatternError struct {
	Stage      int    // zero-based pipeline stage index
	Pattern    string // the offending pattern text
	Underlying error
	Timestamp  time.Time
}

// NewPatternError creates a pattern compilation error for a pipeline stage.
func NewPatternError(stage int, pattern string, underlying error) *PatternError {
	return &PatternError{
		Stage:      stage,
		Pattern:    pattern,
		Underlying: underlying,
		Timestamp:  time.Now(),
	}
}

func (e *PatternError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("pattern error in stage %d (%q): %v", e.Stage, e.Pattern, e.Underlying)
	}
	return fmt.Sprintf("pattern error in stage %d (%q)", e.Stage, e.Pattern)
}

func (e *PatternError) Unwrap() error {
	return e.Underlying
}

// ConfigError indicates invalid or missing configuration.
type ConfigError struct {
	Section    string
	Key        string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a configuration error for a section/key pair.
// Key may be empty when the whole section is at fault.
func NewConfigError(section, key string, underlying error) *ConfigError {
	return &ConfigError{
		Section:    section,
		Key:        key,
		Underlying: underlying,
		Timestamp:  time.Now(),
	}
}

func (e *ConfigError) Error() string {
	location := e.Section
	if e.Key != "" {
		location = e.Section + "." + e.Key
	}
	if e.Underlying != nil {
		return fmt.Sprintf("config error in %s: %v", location, e.Underlying)
	}
	return fmt.Sprintf("config error in %s", location)
}

func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// FileError indicates a per-file operation failed. These are recorded
// as skips during a search, never as session-level failures.
type FileError struct {
	Op         string // "open", "read", "stat", "walk"
	Path       string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a file operation error.
func NewFileError(op, path string, underlying error) *FileError {
	return &FileError{
		Op:         op,
		Path:       path,
		Underlying: underlying,
		Timestamp:  time.Now(),
	}
}

func (e *FileError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("file %s failed for %s: %v", e.Op, e.Path, e.Underlying)
	}
	return fmt.Sprintf("file %s failed for %s", e.Op, e.Path)
}

func (e *FileError) Unwrap() error {
	return e.Underlying
}

// WatchError indicates a filesystem watch operation failed.
type WatchError struct {
	Path       string
	Underlying error
	Timestamp  time.Time
}

// NewWatchError creates a watch error for a path.
func NewWatchError(path string, underlying error) *WatchError {
	return &WatchError{
		Path:       path,
		Underlying: underlying,
		Timestamp:  time.Now(),
	}
}

func (e *WatchError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("watch error for %s: %v", e.Path, e.Underlying)
	}
	return fmt.Sprintf("watch error for %s", e.Path)
}

func (e *WatchError) Unwrap() error {
	return e.Underlying
}

// MCPError indicates an MCP operation failed.
type MCPError struct {
	Op         string // tool name, or "serve" for the transport loop
	Underlying error
	Timestamp  time.Time
}

// NewMCPError creates an MCP operation error.
func NewMCPError(op string, underlying error) *MCPError {
	return &MCPError{
		Op:         op,
		Underlying: underlying,
		Timestamp:  time.Now(),
	}
}

func (e *MCPError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("mcp %s failed: %v", e.Op, e.Underlying)
	}
	return fmt.Sprintf("mcp %s failed", e.Op)
}

func (e *MCPError) Unwrap() error {
	return e.Underlying
}

// MultiError aggregates several errors into one. Used where a batch
// operation should report every failure rather than the first.
type MultiError struct {
	Errors []error
}

// NewMultiError creates an aggregate from non-nil errors. Returns nil
// if no non-nil errors were given.
func NewMultiError(errs ...error) *MultiError {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

// Add appends a non-nil error to the aggregate.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether any error was collected.
func (e *MultiError) HasErrors() bool {
	return e != nil && len(e.Errors) > 0
}

func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors occurred:", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
