package commands

import (
	"context"
	"log/slog"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitepipe/internal/assets"
	"git.home.luguber.info/inful/sitepipe/internal/config"
	"git.home.luguber.info/inful/sitepipe/internal/devserver"
	"git.home.luguber.info/inful/sitepipe/internal/generator"
	"git.home.luguber.info/inful/sitepipe/internal/globs"
	"git.home.luguber.info/inful/sitepipe/internal/history"
	"git.home.luguber.info/inful/sitepipe/internal/livereload"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/metrics"
	"git.home.luguber.info/inful/sitepipe/internal/tasks"
	"git.home.luguber.info/inful/sitepipe/internal/watch"
)

// pipeline wires configuration into a task runner and owns its resources.
type pipeline struct {
	runner  *tasks.Runner
	server  *devserver.Server
	hub     *livereload.Hub
	history history.Store
	logger  *slog.Logger
}

// newPipeline builds every collaborator the built-in tasks need. Metrics are
// collected only when serving, since the dev server is their only reader.
func newPipeline(cfg *config.Config, graph *tasks.Graph, serving bool, logger *slog.Logger) (*pipeline, error) {
	var (
		recorder metrics.Recorder = metrics.NoopRecorder{}
		registry *prom.Registry
	)
	if serving && config.BoolOr(cfg.Server.Metrics, true) {
		registry = prom.NewRegistry()
		metrics.RegisterRuntimeCollectors(registry)
		recorder = metrics.NewPrometheusRecorder(registry)
	}

	hub := livereload.NewHub(livereload.WithRecorder(recorder), livereload.WithLogger(logger))
	notify := assets.WithNotifier(hub)
	log := assets.WithLogger(logger)

	inv, err := generator.New(cfg, generator.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	serverOpts := []devserver.Option{devserver.WithLogger(logger)}
	if registry != nil {
		serverOpts = append(serverOpts, devserver.WithRegistry(registry))
	}
	server := devserver.New(cfg, hub, serverOpts...)

	table, err := watch.TableFromConfig(cfg.Watch)
	if err != nil {
		return nil, err
	}
	debounce, err := cfg.Watch.DebounceDuration()
	if err != nil {
		return nil, err
	}
	watchOpts := []watch.Option{
		watch.WithDebounce(debounce),
		watch.WithSkipDirs(cfg.Site.Dir, "node_modules"),
		watch.WithRecorder(recorder),
		watch.WithLogger(logger),
	}
	if len(cfg.Watch.Ignore) > 0 {
		ignore, err := globs.Compile(cfg.Watch.Ignore...)
		if err != nil {
			return nil, err
		}
		watchOpts = append(watchOpts, watch.WithIgnore(ignore))
	}

	services := &tasks.Services{
		Config:    cfg,
		Styles:    assets.NewStyles(cfg, notify, log),
		Scripts:   assets.NewScripts(cfg, notify, log),
		Images:    assets.NewImages(cfg, notify, log),
		Generator: inv,
		Build:     generator.DefaultOptions(cfg),
		Notifier:  hub,
		Server:    server,
		NewWatcher: func(run watch.TaskFunc) (tasks.Watcher, error) {
			return watch.New(cfg.Root, table, run, watchOpts...), nil
		},
	}

	p := &pipeline{server: server, hub: hub, logger: logger}
	runnerOpts := []tasks.RunnerOption{
		tasks.WithReporter(tasks.NewReporter(os.Stdout)),
		tasks.WithRecorder(recorder),
		tasks.WithStrict(cfg.Strict),
		tasks.WithLogger(logger),
	}
	if cfg.History.Path != "" {
		store, err := history.NewSQLiteStore(cfg.Path(cfg.History.Path))
		if err != nil {
			logger.Warn("Run history disabled", logfields.Path(cfg.History.Path), logfields.Error(err))
		} else {
			p.history = store
			runnerOpts = append(runnerOpts, tasks.WithHistory(store))
		}
	}
	p.runner = tasks.NewRunner(graph, services, runnerOpts...)
	return p, nil
}

// Close stops the dev server and releases the history database.
func (p *pipeline) Close(ctx context.Context) {
	if err := p.server.Stop(ctx); err != nil {
		p.logger.Warn("Dev server shutdown error", logfields.Error(err))
	}
	p.hub.Shutdown()
	if p.history != nil {
		if err := p.history.Close(); err != nil {
			p.logger.Warn("Failed to close run history", logfields.Error(err))
		}
	}
}
