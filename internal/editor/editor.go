// Package editor builds "open in editor" commands from a user-supplied
// template such as "code --goto {file}:{line}". The template is split
// into arguments with shell-like quoting rules, then each argument has
// its {file} and {line} placeholders expanded before the process is
// spawned.
package editor

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/standardbeagle/lgrep/internal/debug"
	lgreperrors "github.com/standardbeagle/lgrep/internal/errors"
)

// SplitArgs splits a command line into arguments using Windows-style
// rules: double quotes group words, a quoted "" yields an empty
// argument, and backslash escapes `"`, `\`, space and tab. A backslash
// before any other character is kept literally. Unbalanced quotes and a
// trailing backslash are errors.
func SplitArgs(cmdline string) ([]string, error) {
	var args []string
	var arg strings.Builder

	inQuote := false
	// Empty arguments are normally dropped, except when an empty
	// builder sits between a closed pair of quotes.
	saveEmpty := false

	for i := 0; i < len(cmdline); i++ {
		c := cmdline[i]
		switch c {
		case '\\':
			if i+1 >= len(cmdline) {
				return nil, fmt.Errorf("trailing backslash with nothing to escape")
			}
			i++
			next := cmdline[i]
			if next != '"' && next != '\\' && next != ' ' && next != '\t' {
				arg.WriteByte(c)
			}
			arg.WriteByte(next)
		case '"':
			inQuote = !inQuote
			saveEmpty = true
		case ' ', '\t':
			if inQuote {
				arg.WriteByte(c)
				break
			}
			if arg.Len() > 0 || saveEmpty {
				args = append(args, arg.String())
				arg.Reset()
				saveEmpty = false
			}
		default:
			arg.WriteByte(c)
		}
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote")
	}
	if arg.Len() > 0 {
		args = append(args, arg.String())
	}
	return args, nil
}

// ExpandTemplate substitutes {key} placeholders in one argument with
// values from replacements. A backslash escapes the next character, so
// `\{` and `\}` are literal braces. Braces cannot nest, every opening
// brace needs a closing one, and a key absent from replacements is an
// error. Inside braces no escape processing happens; the raw text
// between the braces is the key.
func ExpandTemplate(argument string, replacements map[string]string) (string, error) {
	var out strings.Builder
	out.Grow(len(argument))

	openAt := -1 // byte offset of the pending '{', or -1
	for i := 0; i < len(argument); i++ {
		c := argument[i]
		if openAt >= 0 {
			switch c {
			case '{':
				return "", fmt.Errorf("nested '{' at offset %d", i)
			case '}':
				key := argument[openAt+1 : i]
				value, ok := replacements[key]
				if !ok {
					return "", fmt.Errorf("no replacement for key %q", key)
				}
				out.WriteString(value)
				openAt = -1
			}
			continue
		}
		switch c {
		case '\\':
			if i+1 >= len(argument) {
				return "", fmt.Errorf("trailing backslash with nothing to escape")
			}
			i++
			out.WriteByte(argument[i])
		case '{':
			openAt = i
		case '}':
			return "", fmt.Errorf("'}' without matching '{' at offset %d", i)
		default:
			out.WriteByte(c)
		}
	}

	if openAt >= 0 {
		return "", fmt.Errorf("unclosed '{' at offset %d", openAt)
	}
	return out.String(), nil
}

// Command builds the editor process for opening file at line. The first
// token of the template names the program and is taken verbatim;
// placeholders expand only in the remaining arguments. Errors wrap a
// ConfigError for the editor.command key since the template always
// comes from configuration.
func Command(template, file string, line uint64) (*exec.Cmd, error) {
	args, err := SplitArgs(template)
	if err != nil {
		return nil, lgreperrors.NewConfigError("editor", "command", err)
	}
	if len(args) == 0 {
		return nil, lgreperrors.NewConfigError("editor", "command",
			fmt.Errorf("expected a path to a program"))
	}

	replacements := map[string]string{
		"file": file,
		"line": strconv.FormatUint(line, 10),
	}

	expanded := make([]string, 0, len(args)-1)
	for _, argument := range args[1:] {
		value, err := ExpandTemplate(argument, replacements)
		if err != nil {
			return nil, lgreperrors.NewConfigError("editor", "command", err)
		}
		expanded = append(expanded, value)
	}

	return exec.Command(args[0], expanded...), nil
}

// Launch starts the editor and does not wait for it to exit. The
// child's stdio stays detached so a spawned GUI editor never holds the
// terminal open.
func Launch(template, file string, line uint64) error {
	cmd, err := Command(template, file, line)
	if err != nil {
		return err
	}
	debug.Log("EDITOR", "launching %v\n", cmd.Args)
	if err := cmd.Start(); err != nil {
		return lgreperrors.NewConfigError("editor", "command",
			fmt.Errorf("starting %s: %w", cmd.Args[0], err))
	}
	return cmd.Process.Release()
}
