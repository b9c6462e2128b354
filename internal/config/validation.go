package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
)

// Validate checks a defaulted configuration.
func Validate(cfg *Config) error {
	var errs []error
	if cfg.Generator.VersionConstraint != "" {
		if _, err := semver.NewConstraint(cfg.Generator.VersionConstraint); err != nil {
			errs = append(errs, fmt.Errorf("generator.version_constraint %q: %w", cfg.Generator.VersionConstraint, err))
		}
	}
	for _, arg := range cfg.Generator.Args {
		if isModeFlag(arg) {
			errs = append(errs, fmt.Errorf("generator.args must not contain %s; it is set by generator and task options", arg))
		}
	}
	if len(cfg.Styles.Dest) == 0 || len(cfg.Scripts.Dest) == 0 || len(cfg.Images.Dest) == 0 {
		errs = append(errs, errors.New("styles, scripts and images need at least one dest"))
	}
	for _, g := range cfg.Scripts.Sources {
		errs = append(errs, validateGlob("scripts.sources", g))
	}
	for _, g := range cfg.Images.Sources {
		errs = append(errs, validateGlob("images.sources", g))
	}
	if cfg.Images.JPEGQuality < 1 || cfg.Images.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("images.jpeg_quality must be within 1..100, got %d", cfg.Images.JPEGQuality))
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", cfg.Server.Port))
	}
	if _, err := cfg.Watch.DebounceDuration(); err != nil {
		errs = append(errs, err)
	}
	for i, r := range cfg.Watch.Rules {
		if r.Task == "" {
			errs = append(errs, fmt.Errorf("watch.rules[%d]: task is required", i))
		}
		if len(r.Globs) == 0 {
			errs = append(errs, fmt.Errorf("watch.rules[%d]: at least one glob is required", i))
		}
		for _, g := range r.Globs {
			errs = append(errs, validateGlob(fmt.Sprintf("watch.rules[%d]", i), g))
		}
	}
	return errors.Join(errs...)
}

// DebounceDuration parses Debounce; empty means zero.
func (w WatchConfig) DebounceDuration() (time.Duration, error) {
	if w.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(w.Debounce)
	if err != nil {
		return 0, fmt.Errorf("watch.debounce %q: %w", w.Debounce, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("watch.debounce must not be negative: %s", w.Debounce)
	}
	return d, nil
}

// isModeFlag reports whether arg is a generator flag derived from build options.
func isModeFlag(arg string) bool {
	name, _, _ := strings.Cut(arg, "=")
	switch name {
	case "--incremental", "-I", "--drafts", "-D", "--watch", "-w":
		return true
	}
	return false
}

func validateGlob(field, pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%s: empty glob", field)
	}
	if _, err := glob.Compile(pattern, '/'); err != nil {
		return fmt.Errorf("%s: invalid glob %q: %w", field, pattern, err)
	}
	return nil
}
