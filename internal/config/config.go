// Package config loads lgrep settings from KDL files. A global
// ~/.lgrep.kdl provides the user's base configuration; a project-level
// .lgrep.kdl overrides it. Missing files are never errors: every
// setting has a default.
package config

import (
	"os"
	"path/filepath"
)

// ConfigFileName is the file looked up in the home and project
// directories.
const ConfigFileName = ".lgrep.kdl"

const defaultMaxFileSize = 10 * 1024 * 1024

type Config struct {
	Project Project
	Search  Search
	Walk    Walk
	Watch   Watch
	Editor  Editor

	// Include and Exclude are glob patterns applied to discovered files.
	// Exclusions always win over inclusions.
	Include []string
	Exclude []string

	// Warnings collects non-fatal problems found while parsing, such as
	// unknown setting names. The CLI surfaces them once at startup.
	Warnings []string
}

type Project struct {
	Root string
	Name string
}

type Search struct {
	// Context is the default number of lines captured before and after
	// each match.
	Context int
	// SmartCase makes case-insensitive queries sensitive again when the
	// pattern contains an uppercase letter.
	SmartCase bool
	// SearchBinary scans files containing NUL bytes as ordinary text.
	SearchBinary bool
	// MaxFileSize skips files larger than this many bytes. Zero means
	// no limit.
	MaxFileSize int64
}

type Walk struct {
	// Threads is the scan worker count. Zero lets the engine pick from
	// the CPU count.
	Threads        int
	FollowSymlinks bool
	Hidden         bool
	UseGitignore   bool
}

type Watch struct {
	Enabled    bool
	DebounceMs int
}

type Editor struct {
	// Command is the editor launch template. {file} and {line} expand
	// to the selected result's location.
	Command string
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Config {
	return &Config{
		Project: Project{Root: dir},
		Search: Search{
			Context:     0,
			SmartCase:   true,
			MaxFileSize: defaultMaxFileSize,
		},
		Walk: Walk{
			Threads:      0,
			UseGitignore: true,
		},
		Watch: Watch{
			Enabled:    false,
			DebounceMs: 300,
		},
		Include: []string{},
		Exclude: defaultExclusions(),
	}
}

// Load resolves the configuration for a project directory: built-in
// defaults, overlaid by ~/.lgrep.kdl when present, overlaid by
// <dir>/.lgrep.kdl when present. The project root is made absolute.
// Out-of-range values fail the load with a *errors.ConfigError.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = "."
	}

	var base *Config
	if home, err := os.UserHomeDir(); err == nil {
		if globalCfg, err := LoadKDL(home); err == nil && globalCfg != nil {
			base = globalCfg
		}
	}

	project, err := LoadKDL(dir)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	switch {
	case base != nil && project != nil:
		cfg = mergeConfigs(base, project)
	case project != nil:
		cfg = project
	case base != nil:
		cfg = base
		cfg.Project.Root = absOrSelf(dir)
	default:
		cfg = Default(absOrSelf(dir))
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	cfg.EnrichExclusions()
	return cfg, nil
}

// LoadFile loads one explicit config file over the defaults, for the
// --config flag. Unlike Load it fails when the file is absent.
func LoadFile(path string) (*Config, error) {
	dir := filepath.Dir(path)
	cfg, err := loadKDLFile(path, dir)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	cfg.EnrichExclusions()
	return cfg, nil
}

// mergeConfigs overlays a project config on the user's base config.
// Project settings win wholesale; only the pattern lists are combined,
// so global exclusions keep applying inside projects.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(append([]string{}, base.Exclude...), project.Exclude...))
	}
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}
	if len(base.Warnings) > 0 {
		merged.Warnings = append(append([]string{}, base.Warnings...), project.Warnings...)
	}

	return &merged
}

// Overrides flattens the pattern lists into the override glob list the
// search engine consumes: inclusions first, then exclusions negated
// with '!' so they take precedence.
func (c *Config) Overrides() []string {
	out := make([]string, 0, len(c.Include)+len(c.Exclude))
	out = append(out, c.Include...)
	for _, pattern := range c.Exclude {
		out = append(out, "!"+pattern)
	}
	return out
}

// EnrichExclusions adds build output directories found in the project's
// language configs (package.json, Cargo.toml, ...) to the exclusions.
func (c *Config) EnrichExclusions() {
	if c.Project.Root == "" {
		return
	}

	detected := NewBuildArtifactDetector(c.Project.Root).DetectOutputDirectories()
	if len(detected) > 0 {
		c.Exclude = DeduplicatePatterns(append(c.Exclude, detected...))
	}
}

func absOrSelf(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// defaultExclusions lists the generated trees nobody greps on purpose.
// Binary formats need no patterns here: the scanner's NUL handling
// already keeps them quiet.
func defaultExclusions() []string {
	return []string{
		// Dependency trees
		"**/node_modules/**",
		"**/vendor/**",
		"**/bower_components/**",

		// Build output
		"**/target/**",
		"**/dist/**",
		"**/build/**",
		"**/out/**",
		"**/obj/**",

		// Generated bundles
		"**/*.min.js",
		"**/*.min.css",
		"**/*.bundle.js",
		"**/*.chunk.js",

		// Compiled python
		"**/__pycache__/**",
		"**/*.pyc",
	}
}
