package commands

import (
	"os"

	"git.home.luguber.info/inful/sitepipe/internal/tasks"
)

// TasksCmd implements the 'tasks' command.
type TasksCmd struct{}

func (t *TasksCmd) Run(_ *Global, _ *CLI) error {
	graph, err := tasks.NewBuiltinGraph()
	if err != nil {
		return err
	}
	return graph.WriteTree(os.Stdout)
}
