package config

import (
	"errors"
	"fmt"

	lgreperrors "github.com/standardbeagle/lgrep/internal/errors"
)

// maxContextLines bounds the context window. Larger values make every
// match drag in effectively the whole file.
const maxContextLines = 1000

// Validator validates configuration and fills runtime defaults.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults checks every section and applies defaults for
// settings left at zero. Returns a *errors.ConfigError naming the
// offending section on failure.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProject(&cfg.Project); err != nil {
		return lgreperrors.NewConfigError("project", "", err)
	}
	if err := v.validateSearch(&cfg.Search); err != nil {
		return lgreperrors.NewConfigError("search", "", err)
	}
	if err := v.validateWalk(&cfg.Walk); err != nil {
		return lgreperrors.NewConfigError("walk", "", err)
	}
	if err := v.validateWatch(&cfg.Watch); err != nil {
		return lgreperrors.NewConfigError("watch", "", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProject(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateSearch(search *Search) error {
	if search.Context < 0 {
		return fmt.Errorf("context cannot be negative, got %d", search.Context)
	}
	if search.Context > maxContextLines {
		return fmt.Errorf("context must not exceed %d lines, got %d", maxContextLines, search.Context)
	}
	if search.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size cannot be negative, got %d", search.MaxFileSize)
	}
	return nil
}

func (v *Validator) validateWalk(walk *Walk) error {
	// Threads: 0 means the engine auto-detects from the CPU count.
	if walk.Threads < 0 {
		return fmt.Errorf("threads cannot be negative, got %d", walk.Threads)
	}
	if walk.Threads > 1024 {
		return fmt.Errorf("threads must not exceed 1024, got %d", walk.Threads)
	}
	return nil
}

func (v *Validator) validateWatch(watch *Watch) error {
	if watch.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms cannot be negative, got %d", watch.DebounceMs)
	}
	return nil
}

func (v *Validator) setSmartDefaults(cfg *Config) {
	// An explicit zero debounce would re-run the search on every write
	// event of a save burst.
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 300
	}
}

// ValidateConfig is a convenience function for quick validation.
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
