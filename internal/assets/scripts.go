package assets

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/tdewolff/minify/v2"

	"git.home.luguber.info/inful/sitepipe/internal/config"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/globs"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
)

// Scripts concatenates and minifies the project's JavaScript sources.
type Scripts struct {
	cfg      config.ScriptsConfig
	root     string
	dests    []string
	minify   bool
	minifier *minify.M
	opts     options
}

// NewScripts builds the script bundler from cfg.
func NewScripts(cfg *config.Config, opts ...Option) *Scripts {
	return &Scripts{
		cfg:      cfg.Scripts,
		root:     cfg.Root,
		dests:    cfg.Paths(cfg.Scripts.Dest),
		minify:   config.BoolOr(cfg.Scripts.Minify, true),
		minifier: newMinifier(),
		opts:     buildOptions(opts),
	}
}

// Name implements Compiler.
func (s *Scripts) Name() string { return "scripts" }

// Compile bundles every matching source in sorted path order, writes the bundle
// to each destination and signals a reload.
func (s *Scripts) Compile(ctx context.Context) (Result, error) {
	var res Result
	files, err := globs.Expand(s.root, s.cfg.Sources...)
	if err != nil {
		return res, ferrors.WrapError(err, ferrors.CategoryFileSystem, "expand script sources").Build()
	}
	if len(files) == 0 {
		s.opts.logger.Warn("No script sources matched", logfields.Glob(joinPatterns(s.cfg.Sources)))
	}

	failures := &fileFailures{compiler: s.Name(), logger: s.opts.logger}
	var bundle bytes.Buffer
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		data, readErr := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
		if readErr != nil {
			failures.add(rel, readErr)
			continue
		}
		if bundle.Len() > 0 {
			bundle.WriteByte('\n')
		}
		bundle.Write(data)
		res.Files++
	}
	res.Failed = failures.files
	if res.Files == 0 {
		// Nothing to bundle; an existing bundle stays in place.
		return res, failures.err()
	}

	out := bundle.Bytes()
	if s.minify {
		minified, minErr := s.minifier.Bytes(mediaJS, out)
		if minErr != nil {
			return res, ferrors.WrapError(minErr, ferrors.CategoryCompile, "minify script bundle").
				WithContext("output", s.cfg.Output).
				Build()
		}
		out = minified
	}

	outputs, err := writeOutput(s.dests, s.cfg.Output, out, nil)
	res.Outputs = outputs
	if err != nil {
		return res, ferrors.WrapError(err, ferrors.CategoryFileSystem, "write script bundle").Build()
	}
	res.Bytes = len(out)
	s.opts.notifier.Reload()
	s.opts.logger.Debug("Scripts bundled", logfields.Files(res.Files), logfields.Bytes(len(out)))
	return res, failures.err()
}
