package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestPatternError(t *testing.T) {
	underlying := fmt.Errorf("missing closing )")
	err := NewPatternError(0, "foo(", underlying)

	if !strings.Contains(err.Error(), "stage 0") {
		t.Errorf("expected stage in message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), `"foo("`) {
		t.Errorf("expected pattern in message, got %q", err.Error())
	}
	if !stderrors.Is(err, underlying) {
		t.Error("expected errors.Is to find the underlying error")
	}

	var pe *PatternError
	wrapped := fmt.Errorf("spawn failed: %w", err)
	if !stderrors.As(wrapped, &pe) {
		t.Fatal("expected errors.As to extract *PatternError")
	}
	if pe.Stage != 0 || pe.Pattern != "foo(" {
		t.Errorf("unexpected fields: stage=%d pattern=%q", pe.Stage, pe.Pattern)
	}
}

func TestConfigError(t *testing.T) {
	tests := []struct {
		name    string
		section string
		key     string
		want    string
	}{
		{"section only", "walk", "", "config error in walk"},
		{"section and key", "search", "context", "config error in search.context"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfigError(tt.section, tt.key, fmt.Errorf("bad value"))
			if !strings.HasPrefix(err.Error(), tt.want) {
				t.Errorf("expected prefix %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestFileError_UnwrapsToFS(t *testing.T) {
	err := NewFileError("open", "/tmp/gone.txt", fs.ErrNotExist)
	if !stderrors.Is(err, fs.ErrNotExist) {
		t.Error("expected errors.Is(err, fs.ErrNotExist)")
	}
	if err.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestMCPError(t *testing.T) {
	underlying := fmt.Errorf("transport closed")
	err := NewMCPError("search_poll", underlying)

	if !strings.Contains(err.Error(), "mcp search_poll failed") {
		t.Errorf("expected op name in message, got %q", err.Error())
	}
	if !stderrors.Is(err, underlying) {
		t.Error("expected errors.Is to find the underlying error")
	}

	bare := NewMCPError("version", nil)
	if bare.Error() != "mcp version failed" {
		t.Errorf("expected bare message, got %q", bare.Error())
	}
}

func TestMultiError(t *testing.T) {
	if me := NewMultiError(nil, nil); me != nil {
		t.Errorf("expected nil for all-nil inputs, got %v", me)
	}

	first := fmt.Errorf("first")
	second := NewWatchError("/some/dir", fmt.Errorf("second"))
	me := NewMultiError(first, nil, second)
	if me == nil || len(me.Errors) != 2 {
		t.Fatalf("expected 2 collected errors, got %v", me)
	}

	if !stderrors.Is(me, first) {
		t.Error("expected errors.Is to find first error through Unwrap []error")
	}
	var we *WatchError
	if !stderrors.As(me, &we) {
		t.Error("expected errors.As to find *WatchError")
	}

	msg := me.Error()
	if !strings.Contains(msg, "2 errors occurred") {
		t.Errorf("expected count header, got %q", msg)
	}
	if !strings.Contains(msg, "first") || !strings.Contains(msg, "second") {
		t.Errorf("expected both messages, got %q", msg)
	}
}

func TestMultiError_SingleCollapses(t *testing.T) {
	me := &MultiError{}
	me.Add(fmt.Errorf("only one"))
	me.Add(nil)

	if !me.HasErrors() {
		t.Fatal("expected HasErrors")
	}
	if me.Error() != "only one" {
		t.Errorf("single error should render bare, got %q", me.Error())
	}
}
