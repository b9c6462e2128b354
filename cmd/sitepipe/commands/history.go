package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of runs to show (0 for all)" default:"20"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return ferrors.ConfigError("run history is disabled (history.path is empty)").UserAction().Build()
	}
	store, err := history.NewSQLiteStore(cfg.Path(cfg.History.Path))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to open run history").Build()
	}
	defer func() { _ = store.Close() }()

	runs, err := store.Recent(g.ctx(), h.Limit)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to read run history").Build()
	}
	return writeRuns(os.Stdout, runs)
}

func writeRuns(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded yet.")
		return err
	}
	status := map[history.Status]func(a ...interface{}) string{
		history.StatusSuccess:  color.New(color.FgGreen).SprintFunc(),
		history.StatusFailed:   color.New(color.FgRed).SprintFunc(),
		history.StatusCanceled: color.New(color.FgYellow).SprintFunc(),
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tTARGET\tTASK\tSTATUS\tDURATION\tERROR")
	for _, r := range runs {
		paint, ok := status[r.Status]
		if !ok {
			paint = fmt.Sprint
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Target, r.Task, paint(string(r.Status)),
			r.Duration.Round(time.Millisecond), r.Error)
	}
	return tw.Flush()
}
