// Package scaffold writes the starter configuration and source layout of a new project.
package scaffold

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed all:templates
var templates embed.FS

const templateRoot = "templates"

// ErrExists is returned when files would be overwritten without force.
var ErrExists = errors.New("scaffold files already exist")

// Files returns the slash-separated paths the scaffold writes, sorted.
func Files() []string {
	var out []string
	_ = fs.WalkDir(templates, templateRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		out = append(out, strings.TrimPrefix(p, templateRoot+"/"))
		return nil
	})
	sort.Strings(out)
	return out
}

// Write creates the scaffold under root and returns the files written.
// Existing files are left untouched and reported unless force is set.
func Write(root string, force bool) ([]string, error) {
	files := Files()
	if !force {
		var existing []string
		for _, rel := range files {
			if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err == nil {
				existing = append(existing, rel)
			}
		}
		if len(existing) > 0 {
			return nil, fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, strings.Join(existing, ", "))
		}
	}

	written := make([]string, 0, len(files))
	for _, rel := range files {
		data, err := templates.ReadFile(path.Join(templateRoot, rel))
		if err != nil {
			return written, fmt.Errorf("read template %s: %w", rel, err)
		}
		dst := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return written, fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, data, 0o600); err != nil {
			return written, fmt.Errorf("write %s: %w", dst, err)
		}
		written = append(written, rel)
	}
	for _, dir := range []string{"src/img", "_posts", "_drafts", "_includes", "_layouts"} {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o750); err != nil {
			return written, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return written, nil
}
