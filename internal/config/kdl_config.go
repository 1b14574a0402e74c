package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hbollon/go-edlib"
	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	lgreperrors "github.com/standardbeagle/lgrep/internal/errors"
)

// LoadKDL loads <dir>/.lgrep.kdl. Returns (nil, nil) when the file
// does not exist so callers can fall back to defaults.
func LoadKDL(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return loadKDLFile(path, dir)
}

func loadKDLFile(path, dir string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, lgreperrors.NewConfigError("file", path, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	// A relative root is relative to the config file's directory.
	if cfg.Project.Root != "" {
		if !filepath.IsAbs(cfg.Project.Root) {
			cfg.Project.Root = filepath.Join(dir, cfg.Project.Root)
		}
		cfg.Project.Root = filepath.Clean(cfg.Project.Root)
	} else {
		cfg.Project.Root = absOrSelf(dir)
	}

	return cfg, nil
}

// sectionKeys names every recognized setting, for unknown-key
// suggestions.
var sectionKeys = map[string][]string{
	"project": {"root", "name"},
	"search":  {"context", "smart_case", "search_binary", "max_file_size"},
	"walk":    {"threads", "follow_symlinks", "hidden", "use_gitignore"},
	"watch":   {"enabled", "debounce_ms"},
	"editor":  {"command"},
}

var topLevelNames = []string{"project", "search", "walk", "watch", "editor", "include", "exclude"}

func parseKDL(content string) (*Config, error) {
	cfg := Default("")

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, lgreperrors.NewConfigError("file", ConfigFileName, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "root":
					assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				case "name":
					assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
				default:
					cfg.warnUnknownKey("project", nodeName(cn))
				}
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "context":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.Context = v
					}
				case "smart_case":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Search.SmartCase = b
					}
				case "search_binary":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Search.SearchBinary = b
					}
				case "max_file_size":
					// Accepts a byte count or a size string like "10MB".
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxFileSize = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						if size, err := parseSize(s); err == nil {
							cfg.Search.MaxFileSize = size
						} else {
							cfg.warn(fmt.Sprintf("invalid size %q for search.max_file_size", s))
						}
					}
				default:
					cfg.warnUnknownKey("search", nodeName(cn))
				}
			}
		case "walk":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "threads":
					if v, ok := firstIntArg(cn); ok {
						cfg.Walk.Threads = v
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Walk.FollowSymlinks = b
					}
				case "hidden":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Walk.Hidden = b
					}
				case "use_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Walk.UseGitignore = b
					}
				default:
					cfg.warnUnknownKey("walk", nodeName(cn))
				}
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watch.Enabled = b
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				default:
					cfg.warnUnknownKey("watch", nodeName(cn))
				}
			}
		case "editor":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "command":
					assignSimpleString(cn, "command", func(v string) { cfg.Editor.Command = v })
				default:
					cfg.warnUnknownKey("editor", nodeName(cn))
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			// An exclude block replaces the default exclusions entirely.
			cfg.Exclude = collectStringArgs(n)
		default:
			cfg.warnUnknownSection(nodeName(n))
		}
	}

	return cfg, nil
}

func (c *Config) warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

func (c *Config) warnUnknownKey(section, key string) {
	if suggestion, ok := closestName(key, sectionKeys[section]); ok {
		c.warn(fmt.Sprintf("unknown setting %q in %s (did you mean %q?)", key, section, suggestion))
		return
	}
	c.warn(fmt.Sprintf("unknown setting %q in %s", key, section))
}

func (c *Config) warnUnknownSection(name string) {
	if suggestion, ok := closestName(name, topLevelNames); ok {
		c.warn(fmt.Sprintf("unknown section %q (did you mean %q?)", name, suggestion))
		return
	}
	c.warn(fmt.Sprintf("unknown section %q", name))
}

// closestName finds the candidate with the smallest edit distance,
// suggesting it only when the distance is small enough to be a likely
// typo.
func closestName(input string, candidates []string) (string, bool) {
	best := ""
	bestDistance := 1000

	for _, candidate := range candidates {
		distance := edlib.LevenshteinDistance(input, candidate)
		if distance < bestDistance {
			bestDistance = distance
			best = candidate
		}
	}

	if best == "" || bestDistance > 3 {
		return "", false
	}
	return best, true
}

// Helpers over the kdl-go document model.
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case bool:
		return v, true
	case string:
		return parseFlexibleBool(v)
	default:
		return false, false
	}
}

// parseFlexibleBool accepts the spellings config files use in the
// wild, quoted: "yes", "on", "1" and their negatives.
func parseFlexibleBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block form: each child node's name (or first argument) is one
	// pattern, as in exclude { "**/dist/**" }.
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}
