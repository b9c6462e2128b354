package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
)

// Notifier receives reload signals once compiled output is on disk.
type Notifier interface {
	Reload()
	InjectCSS(path string)
}

// Compiler turns project sources into output files.
type Compiler interface {
	Name() string
	Compile(ctx context.Context) (Result, error)
}

// Result summarizes one compiler pass.
type Result struct {
	Files   int      // sources processed successfully
	Failed  []string // sources that could not be processed
	Outputs []string // files written
	Bytes   int      // bytes written per destination
}

type nopNotifier struct{}

func (nopNotifier) Reload()          {}
func (nopNotifier) InjectCSS(string) {}

// Option customizes a compiler.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	notifier Notifier
}

// WithLogger sets the compiler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithNotifier sets the reload notifier signalled after writes.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), notifier: nopNotifier{}}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// writeOutput writes data as name into every dest directory, in order.
// afterFirst runs once the first destination is written.
func writeOutput(dests []string, name string, data []byte, afterFirst func(path string)) ([]string, error) {
	written := make([]string, 0, len(dests))
	for i, dir := range dests {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return written, fmt.Errorf("create output directory %s: %w", dir, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		if i == 0 && afterFirst != nil {
			afterFirst(path)
		}
	}
	return written, nil
}

// fileFailures collects per-file errors without stopping the pass.
type fileFailures struct {
	compiler string
	logger   *slog.Logger
	files    []string
	errs     []error
}

func (f *fileFailures) add(path string, err error) {
	f.logger.Error("Asset processing failed",
		slog.String("compiler", f.compiler),
		logfields.Path(path),
		logfields.Error(err))
	f.files = append(f.files, path)
	f.errs = append(f.errs, fmt.Errorf("%s: %w", path, err))
}

func (f *fileFailures) err() error {
	if len(f.errs) == 0 {
		return nil
	}
	sort.Strings(f.files)
	return ferrors.CompileError(fmt.Sprintf("%s: %d file(s) failed", f.compiler, len(f.files))).
		WithCause(errors.Join(f.errs...)).
		WithContext("files", append([]string(nil), f.files...)).
		Build()
}
