package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/scaffold"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool   `help:"Overwrite existing files"`
	Dir   string `arg:"" optional:"" help:"Project directory" default:"." type:"path"`
}

func (i *InitCmd) Run(_ *Global, _ *CLI) error {
	fmt.Printf("Initializing sitepipe project in %s\n", i.Dir)
	written, err := scaffold.Write(i.Dir, i.Force)
	if errors.Is(err, scaffold.ErrExists) {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "project already initialized").
			UserAction().
			Build()
	}
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write project files").Build()
	}
	created := color.New(color.FgGreen).SprintFunc()
	for _, rel := range written {
		fmt.Printf("  %s %s\n", created("create"), filepath.FromSlash(rel))
	}
	fmt.Println("initialized successfully")
	return nil
}
