package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/history"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/metrics"
)

// HistoryRecorder receives one record per executed task.
type HistoryRecorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Runner executes targets of a Graph against Services.
type Runner struct {
	graph    *Graph
	services *Services
	reporter *Reporter
	recorder metrics.Recorder
	history  HistoryRecorder
	logger   *slog.Logger
	strict   bool
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithReporter sets the console reporter.
func WithReporter(r *Reporter) RunnerOption {
	return func(rn *Runner) {
		if r != nil {
			rn.reporter = r
		}
	}
}

// WithRecorder reports task durations and results.
func WithRecorder(rec metrics.Recorder) RunnerOption {
	return func(rn *Runner) {
		if rec != nil {
			rn.recorder = rec
		}
	}
}

// WithHistory records every task run.
func WithHistory(h HistoryRecorder) RunnerOption {
	return func(rn *Runner) { rn.history = h }
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(rn *Runner) {
		if l != nil {
			rn.logger = l
		}
	}
}

// WithStrict makes every task failure end the invocation, including tasks
// marked ContinueOnError.
func WithStrict(strict bool) RunnerOption {
	return func(rn *Runner) { rn.strict = strict }
}

// NewRunner returns a runner for g.
func NewRunner(g *Graph, services *Services, opts ...RunnerOption) *Runner {
	if services == nil {
		services = &Services{}
	}
	r := &Runner{
		graph:    g,
		services: services,
		reporter: NewReporter(nil),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Graph returns the runner's graph.
func (r *Runner) Graph() *Graph { return r.graph }

// Run executes each target in order. A task shared by several targets runs
// once. A target's own Profile applies to its whole plan; other targets run
// with the zero Profile.
func (r *Runner) Run(ctx context.Context, targets ...string) error {
	invocation := uuid.NewString()
	ran := map[string]bool{}
	for _, target := range targets {
		t, ok := r.graph.Task(target)
		if !ok {
			return ferrors.WrapError(unknownTask(target), ferrors.CategoryValidation, "unknown task").
				UserAction().
				WithContext("task", target).
				Build()
		}
		var profile Profile
		if t.Profile != nil {
			profile = *t.Profile
		}
		if err := r.runTarget(ctx, target, profile, invocation, ran); err != nil {
			return err
		}
	}
	return nil
}

// runTarget runs the tasks of target's plan not yet in ran.
func (r *Runner) runTarget(ctx context.Context, target string, profile Profile, invocation string, ran map[string]bool) error {
	plan, err := r.graph.Plan(target)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "unknown task").
			WithContext("task", target).
			Build()
	}
	env := &Env{
		Services: r.services,
		Profile:  profile,
		Target:   target,
		RunID:    invocation,
		Logger:   r.logger.With(logfields.Target(target), logfields.RunID(invocation)),
		runner:   r,
	}
	for _, name := range plan {
		if ran[name] {
			continue
		}
		ran[name] = true
		t := r.graph.tasks[name]
		err := r.runTask(ctx, env, t)
		if err == nil {
			continue
		}
		if t.ContinueOnError && !r.strict && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
			env.Logger.Warn("Task failed, continuing", logfields.Task(name), logfields.Error(err))
			continue
		}
		return err
	}
	return nil
}

func (r *Runner) runTask(ctx context.Context, env *Env, t *Task) error {
	if t.Run == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.reporter.Start(t.Name)
	start := time.Now()
	err := t.Run(ctx, env)
	d := time.Since(start)

	status := history.StatusSuccess
	result := metrics.ResultSuccess
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil):
		status, result = history.StatusCanceled, metrics.ResultCanceled
	case err != nil:
		status, result = history.StatusFailed, metrics.ResultFailed
	}
	r.recorder.ObserveTaskDuration(t.Name, d)
	r.recorder.IncTaskResult(t.Name, result)
	r.record(ctx, env, t.Name, status, start, d, err)

	if err == nil {
		r.reporter.Finish(t.Name, d)
		return nil
	}
	r.reporter.Fail(t.Name, d, err)
	if status == history.StatusCanceled {
		return err
	}
	env.Logger.Debug("Task failed", logfields.Task(t.Name), logfields.DurationMS(float64(d.Microseconds())/1000), logfields.Error(err))
	if ferrors.IsClassified(err) {
		return fmt.Errorf("task %q: %w", t.Name, err)
	}
	return ferrors.WrapError(err, ferrors.CategoryTask, fmt.Sprintf("task %q failed", t.Name)).
		WithContext("task", t.Name).
		Build()
}

func (r *Runner) record(ctx context.Context, env *Env, task string, status history.Status, start time.Time, d time.Duration, runErr error) {
	if r.history == nil {
		return
	}
	run := history.Run{
		ID:         uuid.NewString(),
		Invocation: env.RunID,
		Target:     env.Target,
		Task:       task,
		Status:     status,
		StartedAt:  start,
		Duration:   d,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := r.history.Record(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Warn("Failed to record task run", logfields.Task(task), logfields.Error(err))
	}
}
