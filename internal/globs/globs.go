// Package globs matches project-relative, slash-separated paths against
// source globs such as "src/img/**/*.{jpg,png,gif}".
//
// "**" spans directory separators and also matches zero directories, so
// "src/js/**/*.js" matches both "src/js/main.js" and "src/js/vendor/a.js".
package globs

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Set is a compiled list of patterns; a path matches when any pattern does.
type Set struct {
	patterns []string
	matchers []glob.Glob
}

// Compile compiles every pattern in patterns.
func Compile(patterns ...string) (*Set, error) {
	s := &Set{patterns: append([]string(nil), patterns...)}
	for _, p := range patterns {
		if p == "" {
			return nil, fmt.Errorf("empty glob")
		}
		for _, variant := range expandZeroDirs(filepath.ToSlash(p)) {
			g, err := glob.Compile(variant, '/')
			if err != nil {
				return nil, fmt.Errorf("compile glob %q: %w", p, err)
			}
			s.matchers = append(s.matchers, g)
		}
	}
	return s, nil
}

// MustCompile is Compile that panics on error. Intended for static tables.
func MustCompile(patterns ...string) *Set {
	s, err := Compile(patterns...)
	if err != nil {
		panic(err)
	}
	return s
}

// Patterns returns the source patterns.
func (s *Set) Patterns() []string { return append([]string(nil), s.patterns...) }

// Match reports whether rel (relative to the project root) matches any pattern.
func (s *Set) Match(rel string) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	for _, m := range s.matchers {
		if m.Match(rel) {
			return true
		}
	}
	return false
}

// Expand walks root and returns the sorted slash-separated relative paths of
// regular files matching any pattern. Walking starts at the static prefix of
// each pattern so unrelated trees are not visited.
func Expand(root string, patterns ...string) ([]string, error) {
	set, err := Compile(patterns...)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, p := range patterns {
		start := filepath.Join(root, filepath.FromSlash(Base(p)))
		err := filepath.WalkDir(start, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if path == start && errorsIsNotExist(walkErr) {
					return filepath.SkipDir
				}
				return walkErr
			}
			if d.IsDir() {
				if path != start && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}
			rel = filepath.ToSlash(rel)
			if set.Match(rel) {
				seen[rel] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", p, err)
		}
	}
	out := make([]string, 0, len(seen))
	for rel := range seen {
		out = append(out, rel)
	}
	sort.Strings(out)
	return out, nil
}

// Base returns the directory prefix of pattern that holds no glob syntax,
// or "." when the first segment is already a pattern.
func Base(pattern string) string {
	segments := strings.Split(filepath.ToSlash(pattern), "/")
	var static []string
	for _, seg := range segments[:len(segments)-1] {
		if strings.ContainsAny(seg, "*?[{") {
			break
		}
		static = append(static, seg)
	}
	if len(static) == 0 {
		return "."
	}
	return strings.Join(static, "/")
}

// expandZeroDirs returns pattern plus every variant where a "**/" matches no directory.
func expandZeroDirs(pattern string) []string {
	variants := []string{pattern}
	for i := 0; i < len(variants); i++ {
		v := variants[i]
		if strings.HasPrefix(v, "**/") {
			variants = append(variants, v[3:])
		}
		for off := 0; ; {
			idx := strings.Index(v[off:], "/**/")
			if idx < 0 {
				break
			}
			at := off + idx
			variants = append(variants, v[:at]+"/"+v[at+4:])
			off = at + 1
		}
		variants = dedupe(variants)
	}
	return variants
}

func errorsIsNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
