// Build output detection from language build configs. Output
// directories named in package.json, tsconfig.json, Cargo.toml, or
// pyproject.toml become exclusion patterns so searches skip generated
// trees the defaults do not know about.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// BuildArtifactDetector finds language-specific build output
// directories under one project root.
type BuildArtifactDetector struct {
	projectRoot string
}

func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

// DetectOutputDirectories returns glob patterns for every build output
// directory the project's config files declare. Unparseable files are
// skipped; detection is best-effort enrichment, never an error.
func (d *BuildArtifactDetector) DetectOutputDirectories() []string {
	var patterns []string
	patterns = append(patterns, d.javascriptOutputs()...)
	patterns = append(patterns, d.rustOutputs()...)
	patterns = append(patterns, d.pythonOutputs()...)
	return DeduplicatePatterns(patterns)
}

type packageJSON struct {
	Scripts map[string]string `json:"scripts"`
	Build   struct {
		OutDir string `json:"outDir"`
	} `json:"build"`
}

type tsconfigJSON struct {
	CompilerOptions struct {
		OutDir string `json:"outDir"`
	} `json:"compilerOptions"`
}

func (d *BuildArtifactDetector) javascriptOutputs() []string {
	var patterns []string

	var pkg packageJSON
	if d.decodeJSON("package.json", &pkg) {
		for _, script := range pkg.Scripts {
			patterns = append(patterns, outDirsFromScript(script)...)
		}
		if p, ok := dirPattern(pkg.Build.OutDir); ok {
			patterns = append(patterns, p)
		}
	}

	// tsconfig.json with comments fails to decode and is skipped.
	var tsconfig tsconfigJSON
	if d.decodeJSON("tsconfig.json", &tsconfig) {
		if p, ok := dirPattern(tsconfig.CompilerOptions.OutDir); ok {
			patterns = append(patterns, p)
		}
	}

	return patterns
}

type cargoTOML struct {
	Profile map[string]struct {
		TargetDir string `toml:"target-dir"`
	} `toml:"profile"`
}

func (d *BuildArtifactDetector) rustOutputs() []string {
	var cargo cargoTOML
	if !d.decodeTOML("Cargo.toml", &cargo) {
		return nil
	}

	var patterns []string
	for _, profile := range cargo.Profile {
		if p, ok := dirPattern(profile.TargetDir); ok {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

type pyprojectTOML struct {
	Tool struct {
		Poetry struct {
			Build struct {
				TargetDir string `toml:"target-dir"`
			} `toml:"build"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func (d *BuildArtifactDetector) pythonOutputs() []string {
	var pyproject pyprojectTOML
	if !d.decodeTOML("pyproject.toml", &pyproject) {
		return nil
	}

	if p, ok := dirPattern(pyproject.Tool.Poetry.Build.TargetDir); ok {
		return []string{p}
	}
	return nil
}

func (d *BuildArtifactDetector) decodeJSON(name string, v any) bool {
	data, err := os.ReadFile(filepath.Join(d.projectRoot, name))
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func (d *BuildArtifactDetector) decodeTOML(name string, v any) bool {
	data, err := os.ReadFile(filepath.Join(d.projectRoot, name))
	if err != nil {
		return false
	}
	return toml.Unmarshal(data, v) == nil
}

// outDirsFromScript extracts --outDir flag values from a build script
// command line.
func outDirsFromScript(script string) []string {
	if !strings.Contains(script, "outDir") {
		return nil
	}

	var patterns []string
	parts := strings.Fields(script)
	for i, part := range parts {
		if (part == "--outDir" || part == "-outDir") && i+1 < len(parts) {
			if p, ok := dirPattern(strings.Trim(parts[i+1], `"'`)); ok {
				patterns = append(patterns, p)
			}
		}
	}
	return patterns
}

// dirPattern turns a declared output directory into an exclusion glob.
func dirPattern(dir string) (string, bool) {
	dir = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(dir), "./"), "/")
	if dir == "" || dir == "." || dir == ".." || strings.HasPrefix(dir, "/") {
		return "", false
	}
	return "**/" + dir + "/**", true
}

// DeduplicatePatterns removes duplicate patterns, keeping first
// occurrences in order.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if !seen[pattern] {
			seen[pattern] = true
			result = append(result, pattern)
		}
	}
	return result
}
