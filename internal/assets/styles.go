package assets

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"

	"git.home.luguber.info/inful/sitepipe/internal/config"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
)

// Styles compiles the entry stylesheet into the configured CSS output.
type Styles struct {
	cfg      config.StylesConfig
	root     string
	siteDir  string
	entry    string
	dests    []string
	compress bool
	minifier *minify.M
	opts     options
}

// NewStyles builds the stylesheet compiler from cfg.
func NewStyles(cfg *config.Config, opts ...Option) *Styles {
	return &Styles{
		cfg:      cfg.Styles,
		root:     cfg.Root,
		siteDir:  cfg.Path(cfg.Site.Dir),
		entry:    cfg.Path(cfg.Styles.Entry),
		dests:    cfg.Paths(cfg.Styles.Dest),
		compress: config.BoolOr(cfg.Styles.Compress, true),
		minifier: newMinifier(),
		opts:     buildOptions(opts),
	}
}

// Name implements Compiler.
func (s *Styles) Name() string { return "styles" }

// Compile produces the stylesheet. The notifier receives a CSS inject event
// after the first destination is written.
func (s *Styles) Compile(ctx context.Context) (Result, error) {
	var res Result
	src, err := s.render(ctx)
	if err != nil {
		res.Failed = []string{s.cfg.Entry}
		return res, err
	}
	if s.compress {
		minified, minErr := s.minifier.Bytes(mediaCSS, src)
		if minErr != nil {
			res.Failed = []string{s.cfg.Entry}
			return res, ferrors.WrapError(minErr, ferrors.CategoryCompile, "minify stylesheet").
				WithContext("entry", s.cfg.Entry).
				Build()
		}
		src = minified
	}

	outputs, err := writeOutput(s.dests, s.cfg.Output, src, func(written string) {
		s.opts.notifier.InjectCSS(s.publicPath(written))
	})
	res.Outputs = outputs
	if err != nil {
		return res, ferrors.WrapError(err, ferrors.CategoryFileSystem, "write stylesheet").Build()
	}
	res.Files = 1
	res.Bytes = len(src)
	s.opts.logger.Debug("Stylesheet compiled", logfields.Path(s.cfg.Entry), logfields.Bytes(len(src)), logfields.Files(len(outputs)))
	return res, nil
}

// render returns the CSS for the entry, either from the external compiler's
// stdout or by reading the entry verbatim when no command is configured.
func (s *Styles) render(ctx context.Context) ([]byte, error) {
	if s.cfg.Command == "" {
		data, err := os.ReadFile(s.entry)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryCompile, "read stylesheet entry").
				WithContext("entry", s.cfg.Entry).
				Build()
		}
		return data, nil
	}

	args := append(append([]string(nil), s.cfg.Args...), s.entry)
	// #nosec G204 -- compiler command comes from project configuration
	cmd := exec.CommandContext(ctx, s.cfg.Command, args...)
	cmd.Dir = s.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	s.opts.logger.Debug("Running stylesheet compiler", logfields.Command(s.cfg.Command), logfields.Args(args))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, ferrors.WrapError(fmt.Errorf("%s", msg), ferrors.CategoryCompile, "stylesheet compiler failed").
			UserAction().
			WithContext("command", s.cfg.Command).
			WithContext("entry", s.cfg.Entry).
			Build()
	}
	return stdout.Bytes(), nil
}

// publicPath maps a written file to its URL path when it lies inside the site
// directory, falling back to the file name.
func (s *Styles) publicPath(written string) string {
	rel, err := filepath.Rel(s.siteDir, written)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path.Join("/", s.cfg.Output)
	}
	return path.Join("/", filepath.ToSlash(rel))
}
