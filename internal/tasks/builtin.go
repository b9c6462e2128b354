package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/sitepipe/internal/assets"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
)

// DefaultTarget runs when no task is named.
const DefaultTarget = "default"

// Browser notices shown while the site rebuilds.
const (
	msgRunning   = `<span style="color: grey">Running:</span> $ %s build`
	msgReloading = `<span style="color: grey">Reloading...</span>`
)

var drafts = &Profile{Drafts: true}

// Builtin returns the stock task list and the aliases for the original task names.
func Builtin() ([]Task, map[string]string) {
	list := []Task{
		{Name: "styles", Description: "Compile the entry stylesheet into main.css", Run: compile(func(e *Env) assets.Compiler { return e.Styles }), ContinueOnError: true},
		{Name: "scripts", Description: "Concatenate and minify JavaScript into main.js", Run: compile(func(e *Env) assets.Compiler { return e.Scripts }), ContinueOnError: true},
		{Name: "images", Description: "Optimize images into assets/img", Run: compile(func(e *Env) assets.Compiler { return e.Images }), ContinueOnError: true},
		{Name: "site-build", Description: "Build the site with the generator", Run: siteBuild},
		{Name: "site-build-drafts", Description: "Build the site including drafts", Run: siteBuild, Profile: drafts},
		{Name: "site-rebuild", Description: "Rebuild the site and reload browsers", Run: siteRebuild},
		{Name: "reload", Description: "Reload connected browsers", Run: reload},
		{Name: "serve", Description: "Build the site, then start the dev server", Deps: []string{"site-build"}, Run: serve},
		{Name: "watch", Description: "Re-run tasks when sources change", Run: watchSources},
		{Name: "build", Description: "Compile assets and build the site", Deps: []string{"scripts", "styles", "images", "site-build"}},
		{Name: DefaultTarget, Description: "Compile, serve and watch", Deps: []string{"scripts", "styles", "serve", "watch"}},
		{Name: "drafts", Description: "Compile, serve and watch including drafts", Deps: []string{"scripts", "styles", "serve", "watch"}, Profile: drafts},
	}
	aliases := map[string]string{
		"stylus":              "styles",
		"js":                  "scripts",
		"imagemin":            "images",
		"jekyll-build":        "site-build",
		"jekyll-build-drafts": "site-build-drafts",
		"jekyll-rebuild":      "site-rebuild",
		"jekyll-reload":       "reload",
		"browser-sync":        "serve",
		"watch-drafts":        "drafts",
	}
	return list, aliases
}

// NewBuiltinGraph returns the validated stock graph.
func NewBuiltinGraph() (*Graph, error) {
	list, aliases := Builtin()
	return NewGraph(list, aliases)
}

func compile(pick func(*Env) assets.Compiler) Func {
	return func(ctx context.Context, env *Env) error {
		c := pick(env)
		if c == nil {
			return errMissing("compiler")
		}
		res, err := c.Compile(ctx)
		env.Logger.Debug("Compiler finished",
			slog.String("compiler", c.Name()),
			logfields.Files(res.Files),
			logfields.Bytes(res.Bytes),
			slog.Int("failed", len(res.Failed)))
		return err
	}
}

func siteBuild(ctx context.Context, env *Env) error {
	if env.Generator == nil {
		return errMissing("site generator")
	}
	return env.Generator.Build(ctx, env.GeneratorOptions())
}

func siteRebuild(ctx context.Context, env *Env) error {
	if env.Generator == nil {
		return errMissing("site generator")
	}
	notify(env, fmt.Sprintf(msgRunning, env.Generator.Command()))
	err := env.Generator.Build(ctx, env.GeneratorOptions())
	if ctx.Err() != nil {
		return err
	}
	notify(env, msgReloading)
	if env.Notifier != nil {
		env.Notifier.Reload()
	}
	return err
}

func reload(_ context.Context, env *Env) error {
	if env.Notifier != nil {
		env.Notifier.Reload()
	}
	return nil
}

func serve(ctx context.Context, env *Env) error {
	if env.Server == nil {
		return errMissing("dev server")
	}
	if env.Server.Running() {
		return nil
	}
	return env.Server.Start(ctx)
}

func watchSources(ctx context.Context, env *Env) error {
	if env.NewWatcher == nil {
		return errMissing("watcher")
	}
	w, err := env.NewWatcher(func(ctx context.Context, task, path string) {
		if err := env.Trigger(ctx, task); err != nil && !errors.Is(err, context.Canceled) {
			env.Logger.Error("Watch-triggered task failed", logfields.Task(task), logfields.Path(path), logfields.Error(err))
		}
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWatch, "could not start watcher").Build()
	}
	return w.Run(ctx)
}

func notify(env *Env, msg string) {
	if env.Notifier != nil {
		env.Notifier.Notify(msg)
	}
}

func errMissing(what string) error {
	return ferrors.InternalError(what + " is not configured").Build()
}
