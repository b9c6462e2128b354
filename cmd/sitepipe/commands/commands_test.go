package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitepipe/internal/history"
	"git.home.luguber.info/inful/sitepipe/internal/tasks"
)

func TestPlansInclude(t *testing.T) {
	g, err := tasks.NewBuiltinGraph()
	require.NoError(t, err)

	assert.True(t, plansInclude(g, []string{"default"}, "serve"))
	assert.True(t, plansInclude(g, []string{"browser-sync"}, "serve"))
	assert.False(t, plansInclude(g, []string{"build"}, "serve"))
	assert.False(t, plansInclude(g, []string{"no-such-task"}, "serve"))
}

func TestWriteRuns(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	require.NoError(t, writeRuns(&buf, nil))
	assert.Equal(t, "No runs recorded yet.\n", buf.String())

	buf.Reset()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, writeRuns(&buf, []history.Run{
		{Target: "build", Task: "styles", Status: history.StatusSuccess, StartedAt: start, Duration: 12 * time.Millisecond},
		{Target: "build", Task: "site-build", Status: history.StatusFailed, StartedAt: start, Duration: time.Second, Error: "exit status 1"},
	}))
	out := buf.String()
	assert.Contains(t, out, "STARTED")
	assert.Contains(t, out, "styles")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "exit status 1")
}

func TestCLIParse(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("sitepipe"), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"build", "images"})
	require.NoError(t, err)
	assert.Contains(t, ctx.Command(), "run")
	assert.Equal(t, []string{"build", "images"}, cli.Run.Tasks)

	ctx, err = parser.Parse([]string{"history", "-n", "5"})
	require.NoError(t, err)
	assert.Equal(t, "history", ctx.Command())
	assert.Equal(t, 5, cli.History.Limit)
}

func TestInitCmdWritesScaffold(t *testing.T) {
	dir := t.TempDir()
	color.NoColor = true

	cmd := &InitCmd{Dir: dir}
	require.NoError(t, cmd.Run(&Global{}, &CLI{}))
	_, err := os.Stat(filepath.Join(dir, "sitepipe.yaml"))
	require.NoError(t, err)

	err = cmd.Run(&Global{}, &CLI{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
}
