// Package generator invokes the external static site generator as a child process.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/Masterminds/semver/v3"

	"git.home.luguber.info/inful/sitepipe/internal/config"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
)

// ErrGeneratorNotFound is returned when the generator command is not on PATH.
var ErrGeneratorNotFound = errors.New("site generator not found")

// Invoker runs the site generator in the project root.
type Invoker struct {
	command    string
	dir        string
	strict     bool
	constraint *semver.Constraints
	stdout     io.Writer
	stderr     io.Writer
	logger     *slog.Logger

	versionMu      sync.Mutex
	versionChecked bool
	versionErr     error
}

// Option customizes an Invoker.
type Option func(*Invoker)

// WithOutput redirects the child's stdout and stderr (default: inherited).
func WithOutput(stdout, stderr io.Writer) Option {
	return func(i *Invoker) {
		i.stdout = stdout
		i.stderr = stderr
	}
}

// WithLogger sets the logger used for invocation records.
func WithLogger(l *slog.Logger) Option {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// New builds an Invoker from the generator section of cfg.
func New(cfg *config.Config, opts ...Option) (*Invoker, error) {
	command := cfg.Generator.Command
	if runtime.GOOS == "windows" && cfg.Generator.WindowsCommand != "" {
		command = cfg.Generator.WindowsCommand
	}
	inv := &Invoker{
		command: command,
		dir:     cfg.Root,
		strict:  cfg.Generator.Strict,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		logger:  slog.Default(),
	}
	if cfg.Generator.VersionConstraint != "" {
		c, err := semver.NewConstraint(cfg.Generator.VersionConstraint)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid generator version constraint").
				Fatal().
				WithContext("constraint", cfg.Generator.VersionConstraint).
				Build()
		}
		inv.constraint = c
	}
	for _, o := range opts {
		o(inv)
	}
	return inv, nil
}

// Command returns the resolved generator command name.
func (i *Invoker) Command() string { return i.command }

// DefaultOptions derives the base build options from cfg.
func DefaultOptions(cfg *config.Config) Options {
	return Options{
		Incremental: config.BoolOr(cfg.Generator.Incremental, true),
		Watch:       cfg.Generator.Watch,
		Extra:       append([]string(nil), cfg.Generator.Args...),
	}
}

// Build runs the generator and blocks until it exits. Cancelling ctx kills the process.
// A non-zero exit is logged and swallowed unless the invoker is strict.
func (i *Invoker) Build(ctx context.Context, opts Options) error {
	if err := i.checkVersion(ctx); err != nil {
		return err
	}
	path, err := exec.LookPath(i.command)
	if err != nil {
		return ferrors.WrapError(fmt.Errorf("%w: %w", ErrGeneratorNotFound, err), ferrors.CategoryGenerator, "site generator not found").
			UserAction().
			WithContext("command", i.command).
			Build()
	}

	args := opts.Args()
	// #nosec G204 -- command and args come from project configuration
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = i.dir
	cmd.Stdout = i.stdout
	cmd.Stderr = i.stderr
	i.logger.Info("Running site generator", logfields.Command(i.command), logfields.Args(args), logfields.Path(i.dir))

	err = cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ferrors.WrapError(err, ferrors.CategoryGenerator, "site generator could not start").
			WithContext("command", i.command).
			Build()
	}
	code := exitErr.ExitCode()
	if !i.strict {
		i.logger.Warn("Site generator exited with non-zero status", logfields.Command(i.command), logfields.ExitCode(code))
		return nil
	}
	return ferrors.WrapError(err, ferrors.CategoryGenerator, "site generator failed").
		WithContext("command", i.command).
		WithContext("exit_code", code).
		Build()
}

// checkVersion verifies the generator version once. A failure caused by
// ctx ending is returned as ctx.Err() and not remembered.
func (i *Invoker) checkVersion(ctx context.Context) error {
	if i.constraint == nil {
		return nil
	}
	i.versionMu.Lock()
	defer i.versionMu.Unlock()
	if i.versionChecked {
		return i.versionErr
	}
	err := i.verifyVersion(ctx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	i.versionChecked, i.versionErr = true, err
	return err
}

func (i *Invoker) verifyVersion(ctx context.Context) error {
	v, err := DetectVersion(ctx, i.command)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGenerator, "could not determine site generator version").
			UserAction().
			WithContext("command", i.command).
			Build()
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryGenerator, "unparsable site generator version").Build()
	}
	if ok, reasons := i.constraint.Validate(sv); !ok {
		return ferrors.GeneratorError("site generator version does not satisfy constraint").
			UserAction().
			WithCause(errors.Join(reasons...)).
			WithContext("version", v).
			WithContext("constraint", i.constraint.String()).
			Build()
	}
	i.logger.Debug("Site generator version accepted", logfields.Command(i.command), slog.String("version", v))
	return nil
}
