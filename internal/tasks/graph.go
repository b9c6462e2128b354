// Package tasks defines the named build tasks, their prerequisites, and the
// runner that executes a target's prerequisites depth-first, each at most once.
package tasks

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Func is the body of a task.
type Func func(ctx context.Context, env *Env) error

// Task is a named unit of work. A task without Run only groups its prerequisites.
type Task struct {
	Name        string
	Description string
	Deps        []string
	Run         Func
	// Profile, when set on the invoked target, applies to every task of the invocation.
	Profile *Profile
	// ContinueOnError reports a failure and lets the rest of the plan run,
	// unless the runner is strict.
	ContinueOnError bool
}

// Graph is a validated set of tasks plus aliases.
type Graph struct {
	tasks   map[string]*Task
	order   []string
	aliases map[string]string
}

// NewGraph validates tasks and aliases: names must be unique and non-empty,
// prerequisites must exist, and the graph must be acyclic.
func NewGraph(tasks []Task, aliases map[string]string) (*Graph, error) {
	g := &Graph{tasks: make(map[string]*Task, len(tasks)), aliases: map[string]string{}}
	for i := range tasks {
		t := tasks[i]
		if t.Name == "" {
			return nil, invalidf("task %d has no name", i)
		}
		if _, dup := g.tasks[t.Name]; dup {
			return nil, invalidf("duplicate task %q", t.Name)
		}
		t.Deps = append([]string(nil), t.Deps...)
		g.tasks[t.Name] = &t
		g.order = append(g.order, t.Name)
	}
	for _, name := range g.order {
		for _, dep := range g.tasks[name].Deps {
			if dep == name {
				return nil, invalidf("task %q depends on itself", name)
			}
			if _, ok := g.tasks[dep]; !ok {
				return nil, invalidf("task %q depends on unknown task %q", name, dep)
			}
		}
	}
	for alias, target := range aliases {
		if _, clash := g.tasks[alias]; clash {
			return nil, invalidf("alias %q shadows a task", alias)
		}
		if _, ok := g.tasks[target]; !ok {
			return nil, invalidf("alias %q points to unknown task %q", alias, target)
		}
		g.aliases[alias] = target
	}
	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// Resolve maps name or an alias to a task name.
func (g *Graph) Resolve(name string) (string, error) {
	if _, ok := g.tasks[name]; ok {
		return name, nil
	}
	if target, ok := g.aliases[name]; ok {
		return target, nil
	}
	return "", unknownTask(name)
}

// Task returns the task called name (aliases resolved).
func (g *Graph) Task(name string) (Task, bool) {
	resolved, err := g.Resolve(name)
	if err != nil {
		return Task{}, false
	}
	return *g.tasks[resolved], true
}

// Names returns task names in declaration order.
func (g *Graph) Names() []string { return append([]string(nil), g.order...) }

// Aliases returns a copy of the alias table.
func (g *Graph) Aliases() map[string]string {
	out := make(map[string]string, len(g.aliases))
	for k, v := range g.aliases {
		out[k] = v
	}
	return out
}

// Plan returns the tasks to run for target: prerequisites depth-first in
// declared order, then the target, each name once.
func (g *Graph) Plan(target string) ([]string, error) {
	name, err := g.Resolve(target)
	if err != nil {
		return nil, err
	}
	var plan []string
	seen := map[string]bool{}
	var visit func(string)
	visit = func(n string) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, dep := range g.tasks[n].Deps {
			visit(dep)
		}
		plan = append(plan, n)
	}
	visit(name)
	return plan, nil
}

// validateAcyclic reports the first cycle found by a DFS in declaration order.
func (g *Graph) validateAcyclic() error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.tasks))
	var stack []string
	var dfs func(string) []string
	dfs = func(n string) []string {
		color[n] = gray
		stack = append(stack, n)
		for _, dep := range g.tasks[n].Deps {
			switch color[dep] {
			case gray:
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				return append(append([]string(nil), stack[start:]...), dep)
			case white:
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return nil
	}
	for _, n := range g.order {
		if color[n] != white {
			continue
		}
		if cycle := dfs(n); cycle != nil {
			return cycleError(cycle)
		}
	}
	return nil
}

// WriteTree prints every task with its description and prerequisite tree,
// followed by the alias table.
func (g *Graph) WriteTree(w io.Writer) error {
	width := 0
	for _, n := range g.order {
		width = max(width, len(n))
	}
	var b strings.Builder
	for _, n := range g.order {
		t := g.tasks[n]
		fmt.Fprintf(&b, "%-*s  %s\n", width, n, t.Description)
		g.writeDeps(&b, t, 1)
	}
	if len(g.aliases) > 0 {
		names := make([]string, 0, len(g.aliases))
		for a := range g.aliases {
			names = append(names, a)
		}
		sort.Strings(names)
		b.WriteString("\nAliases:\n")
		for _, a := range names {
			fmt.Fprintf(&b, "  %s -> %s\n", a, g.aliases[a])
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (g *Graph) writeDeps(b *strings.Builder, t *Task, depth int) {
	for i, dep := range t.Deps {
		branch := "├── "
		if i == len(t.Deps)-1 {
			branch = "└── "
		}
		fmt.Fprintf(b, "%s%s%s\n", strings.Repeat("    ", depth-1), branch, dep)
		g.writeDeps(b, g.tasks[dep], depth+1)
	}
}
