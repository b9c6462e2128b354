package commands

import (
	"context"

	"git.home.luguber.info/inful/sitepipe/internal/tasks"
)

// RunCmd implements the default command: run the named tasks.
type RunCmd struct {
	Tasks []string `arg:"" optional:"" name:"task" help:"Tasks to run; 'sitepipe tasks' lists them"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	graph, err := tasks.NewBuiltinGraph()
	if err != nil {
		return err
	}
	targets := r.Tasks
	if len(targets) == 0 {
		targets = []string{tasks.DefaultTarget}
	}

	p, err := newPipeline(cfg, graph, plansInclude(graph, targets, "serve"), g.logger())
	if err != nil {
		return err
	}
	defer p.Close(context.Background())

	ctx := g.ctx()
	if err := p.runner.Run(ctx, targets...); err != nil {
		return err
	}
	// A target that started the server without watching keeps serving until interrupted.
	if p.server.Running() && ctx.Err() == nil {
		g.logger().Info("Serving; press Ctrl+C to stop")
		<-ctx.Done()
	}
	return nil
}

// plansInclude reports whether any target's plan contains task.
func plansInclude(g *tasks.Graph, targets []string, task string) bool {
	for _, t := range targets {
		plan, err := g.Plan(t)
		if err != nil {
			continue
		}
		for _, name := range plan {
			if name == task {
				return true
			}
		}
	}
	return false
}
