package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitepipe/internal/config"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
)

// Global carries process-wide state into commands.
type Global struct {
	Logger  *slog.Logger
	Context context.Context
}

func (g *Global) ctx() context.Context {
	if g == nil || g.Context == nil {
		return context.Background()
	}
	return g.Context
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path (.yaml, .yml or .toml)" default:"sitepipe.yaml"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log output format" enum:"text,json" default:"text"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run     RunCmd     `cmd:"" default:"withargs" help:"Run tasks (default: default)"`
	Tasks   TasksCmd   `cmd:"" help:"List tasks and their prerequisites"`
	Init    InitCmd    `cmd:"" help:"Write a starter configuration and source layout"`
	History HistoryCmd `cmd:"" help:"Show recent task runs"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig reads the configuration named by the global flag.
func loadConfig(root *CLI) (*config.Config, error) {
	path := config.DefaultFile
	if root != nil && root.Config != "" {
		path = root.Config
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to load configuration").
			UserAction().
			WithContext("path", path).
			Build()
	}
	return cfg, nil
}
