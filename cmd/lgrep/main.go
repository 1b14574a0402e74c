// Command lgrep is a concurrent content search tool. It scans file
// trees with compiled query pipelines, re-runs searches on filesystem
// changes, and can serve its engine to coding agents over MCP.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lgrep/internal/config"
	"github.com/standardbeagle/lgrep/internal/debug"
	"github.com/standardbeagle/lgrep/internal/version"
)

// loadConfigWithOverrides resolves the effective configuration: config
// files first, then CLI flag overrides on top.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}

	var cfg *config.Config
	var err error
	if configPath := c.String("config"); configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("root") {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
		}
		cfg.Project.Root = absRoot
	}

	for _, w := range cfg.Warnings {
		fmt.Fprintf(os.Stderr, "config warning: %s\n", w)
	}
	return cfg, nil
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Explicit config file (default: ~/.lgrep.kdl overlaid by <root>/.lgrep.kdl)",
		},
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   "Project root directory (overrides config)",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug output on stderr",
		},
	}
}

// searchFlags are shared by the search and watch commands and also
// registered at the app level so the bare `lgrep <pattern>` form
// accepts them.
func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "paths",
			Aliases: []string{"p"},
			Usage:   "Semicolon-separated files or directories to search (e.g. 'src;vendor/lib;README.md')",
		},
		&cli.StringSliceFlag{
			Name:    "glob",
			Aliases: []string{"g"},
			Usage:   "Override glob; prefix with ! to exclude (e.g. -g '*.go' -g '!*_test.go')",
		},
		&cli.BoolFlag{
			Name:    "regex",
			Aliases: []string{"E"},
			Usage:   "Interpret the pattern as an RE2 regular expression",
		},
		&cli.BoolFlag{
			Name:    "ignore-case",
			Aliases: []string{"i"},
			Usage:   "Case-insensitive matching (a pattern with uppercase stays sensitive)",
		},
		&cli.BoolFlag{
			Name:    "invert",
			Aliases: []string{"v"},
			Usage:   "Select lines that do NOT match the pattern",
		},
		&cli.StringSliceFlag{
			Name:  "highlight",
			Usage: "Extra pattern to highlight within matched lines (repeatable)",
		},
		&cli.IntFlag{
			Name:    "context",
			Aliases: []string{"C"},
			Usage:   "Lines of context before and after each match",
		},
		&cli.BoolFlag{
			Name:  "binary",
			Usage: "Also search files containing NUL bytes",
		},
		&cli.BoolFlag{
			Name:  "hidden",
			Usage: "Also search hidden files and directories",
		},
		&cli.BoolFlag{
			Name:  "follow-symlinks",
			Usage: "Follow symbolic links while walking",
		},
		&cli.IntFlag{
			Name:    "threads",
			Aliases: []string{"j"},
			Usage:   "Scan worker count (default: CPU count)",
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"J"},
			Usage:   "Output results as JSON with match-span offsets",
		},
		&cli.BoolFlag{
			Name:    "count",
			Aliases: []string{"c"},
			Usage:   "Print match counts per file instead of lines",
		},
		&cli.BoolFlag{
			Name:    "files-with-matches",
			Aliases: []string{"l"},
			Usage:   "Print only the names of files with matches",
		},
		&cli.IntFlag{
			Name:  "open",
			Usage: "Open the nth matched line in the configured editor",
		},
	}
}

func main() {
	// -v belongs to --invert, as in grep. Version moves to -V.
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "Print the version",
	}

	app := &cli.App{
		Name:                   "lgrep",
		Usage:                  "Lightning fast concurrent content search",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags:                  append(globalFlags(), searchFlags()...),
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				debug.EnableDebug = "true"
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Search for a pattern under the project root",
				ArgsUsage: "<pattern>",
				Flags:     searchFlags(),
				Action:    searchCommand,
			},
			{
				Name:      "watch",
				Aliases:   []string{"w"},
				Usage:     "Search, then re-run automatically when files change",
				ArgsUsage: "<pattern>",
				Flags:     searchFlags(),
				Action:    watchCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve search tools to AI assistants over stdio (Model Context Protocol)",
				Action: mcpCommand,
			},
			{
				Name:   "config",
				Usage:  "Print the effective merged configuration as KDL",
				Action: configCommand,
			},
			{
				Name:   "version",
				Usage:  "Print version and build information",
				Action: versionCommand,
			},
		},
		Action: func(c *cli.Context) error {
			// A bare pattern argument means search; watch { enabled }
			// in config makes the bare form live-reload instead.
			if c.NArg() > 0 {
				cfg, err := loadConfigWithOverrides(c)
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
				if cfg.Watch.Enabled {
					return runWatch(c, cfg)
				}
				return runSearch(c, cfg)
			}
			// MCP clients often exec the binary with no arguments and
			// JSON-RPC on stdin.
			if isMCPMode() {
				debug.LogMCP("auto-detected MCP mode\n")
				return mcpCommand(c)
			}
			return cli.ShowAppHelp(c)
		},
	}

	// cli.Exit errors are handled (printed, exit code set) by urfave
	// before Run returns; anything else lands here.
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func configCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return printConfig(os.Stdout, cfg)
}

// printConfig renders the effective configuration as a KDL document
// that can be saved as .lgrep.kdl.
func printConfig(w io.Writer, cfg *config.Config) error {
	_, err := fmt.Fprintf(w, `// Effective lgrep configuration

project {
    name %q
    root %q
}

search {
    context %d
    smart_case %t
    search_binary %t
    max_file_size %q
}

walk {
    threads %d
    follow_symlinks %t
    hidden %t
    use_gitignore %t
}

watch {
    enabled %t
    debounce_ms %d
}

editor {
    command %q
}
`,
		cfg.Project.Name, cfg.Project.Root,
		cfg.Search.Context, cfg.Search.SmartCase, cfg.Search.SearchBinary, formatSize(cfg.Search.MaxFileSize),
		cfg.Walk.Threads, cfg.Walk.FollowSymlinks, cfg.Walk.Hidden, cfg.Walk.UseGitignore,
		cfg.Watch.Enabled, cfg.Watch.DebounceMs,
		cfg.Editor.Command)
	if err != nil {
		return err
	}

	if len(cfg.Include) > 0 {
		if err := printPatternNode(w, "include", cfg.Include); err != nil {
			return err
		}
	}
	if len(cfg.Exclude) > 0 {
		if err := printPatternNode(w, "exclude", cfg.Exclude); err != nil {
			return err
		}
	}
	return nil
}

func printPatternNode(w io.Writer, name string, patterns []string) error {
	if _, err := fmt.Fprintf(w, "\n%s", name); err != nil {
		return err
	}
	for _, p := range patterns {
		if _, err := fmt.Fprintf(w, " %q", p); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// formatSize renders a byte count the way config files write it.
func formatSize(size int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case size >= gb && size%gb == 0:
		return fmt.Sprintf("%dGB", size/gb)
	case size >= mb && size%mb == 0:
		return fmt.Sprintf("%dMB", size/mb)
	case size >= kb && size%kb == 0:
		return fmt.Sprintf("%dKB", size/kb)
	default:
		return fmt.Sprintf("%dB", size)
	}
}

func versionCommand(c *cli.Context) error {
	fmt.Println(version.FullInfo())
	return nil
}

// isMCPMode detects whether the bare invocation should serve MCP.
func isMCPMode() bool {
	if v := os.Getenv("LGREP_MCP_MODE"); v == "1" || v == "true" {
		return true
	}

	// Non-terminal stdin means a client is piping JSON-RPC at us.
	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		return true
	}

	if len(os.Args) > 0 {
		arg0 := strings.ToLower(filepath.Base(os.Args[0]))
		if strings.Contains(arg0, "mcp") {
			return true
		}
	}
	return false
}
