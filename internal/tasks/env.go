package tasks

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/sitepipe/internal/assets"
	"git.home.luguber.info/inful/sitepipe/internal/config"
	"git.home.luguber.info/inful/sitepipe/internal/generator"
	"git.home.luguber.info/inful/sitepipe/internal/watch"
)

// Profile holds per-invocation build options chosen by the target.
type Profile struct {
	Drafts bool
}

// Generator builds the site.
type Generator interface {
	Build(ctx context.Context, opts generator.Options) error
	Command() string
}

// Notifier pushes events to connected browsers.
type Notifier interface {
	Reload()
	InjectCSS(path string)
	Notify(message string)
}

// DevServer serves the generated site.
type DevServer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Running() bool
	URL() string
}

// Watcher blocks until ctx is cancelled, dispatching file changes.
type Watcher interface {
	Run(ctx context.Context) error
}

// WatcherFactory builds a watcher that calls run for each matched change.
type WatcherFactory func(run watch.TaskFunc) (Watcher, error)

// Services are the collaborators built-in tasks operate on. Nil members make
// the tasks that need them fail.
type Services struct {
	Config     *config.Config
	Styles     assets.Compiler
	Scripts    assets.Compiler
	Images     assets.Compiler
	Generator  Generator
	Build      generator.Options
	Notifier   Notifier
	Server     DevServer
	NewWatcher WatcherFactory
}

// Env is what a task sees during one invocation.
type Env struct {
	*Services
	Profile Profile
	Target  string
	RunID   string
	Logger  *slog.Logger

	runner *Runner
}

// GeneratorOptions returns the build options for this invocation.
func (e *Env) GeneratorOptions() generator.Options {
	opts := e.Build
	if e.Profile.Drafts {
		opts = opts.WithDrafts()
	}
	return opts
}

// Trigger runs task and its prerequisites afresh with this invocation's
// profile. Safe to call concurrently.
func (e *Env) Trigger(ctx context.Context, task string) error {
	return e.runner.runTarget(ctx, task, e.Profile, e.RunID, map[string]bool{})
}
